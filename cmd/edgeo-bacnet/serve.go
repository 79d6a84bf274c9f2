// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgeo-scada/bacnet/bacnet"
)

var (
	serveDeviceName string
	serveVendorID   uint16
	serveSimulate   bool
	serveAIMin      float32
	serveAIMax      float32
	serveAOMin      float32
	serveAOMax      float32
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Host a local BACnet object model and answer requests",
	Long: `Serve starts a BACnet/IP server backed by an in-memory object
registry. It answers Who-Is with an I-Am for its own device instance,
and ReadProperty/WriteProperty against the objects it hosts.

Examples:
  # Host device 1234 with one simulated analog input/output pair
  edgeo-bacnet serve -d 1234 --simulate`,

	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveDeviceName, "device-name", "edgeo-bacnet-server", "Object name for the hosted device object")
	serveCmd.Flags().Uint16Var(&serveVendorID, "vendor-id", 260, "BACnet vendor identifier to report in I-Am")
	serveCmd.Flags().BoolVar(&serveSimulate, "simulate", false, "Drive the hosted analog-input with a noisy sine wave")
	serveCmd.Flags().Float32Var(&serveAIMin, "ai-min", 0, "Minimum accepted present-value for the hosted analog-input")
	serveCmd.Flags().Float32Var(&serveAIMax, "ai-max", 100, "Maximum accepted present-value for the hosted analog-input")
	serveCmd.Flags().Float32Var(&serveAOMin, "ao-min", 0, "Minimum accepted present-value for the hosted analog-output")
	serveCmd.Flags().Float32Var(&serveAOMax, "ao-max", 100, "Maximum accepted present-value for the hosted analog-output")
}

func runServe(cmd *cobra.Command, args []string) error {
	if deviceID == 0 {
		return fmt.Errorf("device ID is required (-d or --device)")
	}

	registry := bacnet.NewRegistry()
	device := bacnet.NewDeviceObject(deviceID, serveDeviceName, serveVendorID, registry)
	if err := registry.Add(device); err != nil {
		return fmt.Errorf("register device object: %w", err)
	}

	ai := bacnet.NewAnalogInputObject(1, "room-temp", bacnet.UnitsDegreesCelsius)
	ai.SetRange(serveAIMin, serveAIMax)
	if err := registry.Add(ai); err != nil {
		return fmt.Errorf("register analog-input: %w", err)
	}

	ao := bacnet.NewAnalogOutputObject(1, "damper-command", bacnet.UnitsPercent, 0)
	ao.SetRange(serveAOMin, serveAOMax)
	if err := registry.Add(ao); err != nil {
		return fmt.Errorf("register analog-output: %w", err)
	}

	server, err := bacnet.NewServer(registry, deviceID, clientOptionsFromConfig(config, logger)...)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nStopping server...")
		cancel()
	}()

	if serveSimulate {
		go simulatePresentValue(ctx, ai)
	}

	fmt.Printf("Hosting device %d (%s) with %d objects. Press Ctrl+C to stop.\n",
		deviceID, serveDeviceName, len(registry.List()))

	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return server.Stop()
}

// simulatePresentValue feeds a noisy sine wave into an analog-input's
// present-value, standing in for a real sensor poll.
func simulatePresentValue(ctx context.Context, ai *bacnet.AnalogInputObject) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			elapsed := time.Since(start).Seconds()
			value := 21.0 + 2.0*math.Sin(elapsed/10) + (rand.Float64()-0.5)*0.2
			ai.SetPresentValue(float32(value))
		}
	}
}
