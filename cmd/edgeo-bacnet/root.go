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
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/edgeo-scada/bacnet/bacnet"
)

var (
	cfgFile      string
	host         string
	port         int
	deviceID     uint32
	timeout      time.Duration
	retries      int
	outputFmt    string
	verbose      bool
	localAddress string

	broadcastMode    string
	directedAddress  string
	maxInflight      uint8
	maxAPDULen       uint16
	segmentationMode string

	client *bacnet.Client
	logger *slog.Logger
	config Configuration
)

// Configuration is the fully-resolved set of knobs a client or server
// instance runs with, bound from flags/env/config-file via viper and
// unmarshalled with mapstructure tags so a config file can set any of
// them by their wire name.
type Configuration struct {
	BindAddress         string `mapstructure:"bind-address"`
	Port                uint16 `mapstructure:"port"`
	BroadcastMode       string `mapstructure:"broadcast-mode"`
	DirectedAddress     string `mapstructure:"directed-address"`
	DefaultTimeoutMS    uint32 `mapstructure:"default-timeout-ms"`
	MaxInflight         uint8  `mapstructure:"max-inflight"`
	MaxAPDULen          uint16 `mapstructure:"max-apdu-len"`
	SegmentationSupport string `mapstructure:"segmentation-support"`
}

// clientOptionsFromConfig translates a resolved Configuration into the
// functional options NewClient/NewServer take.
func clientOptionsFromConfig(cfg Configuration, logger *slog.Logger) []bacnet.Option {
	opts := []bacnet.Option{
		bacnet.WithTimeout(time.Duration(cfg.DefaultTimeoutMS) * time.Millisecond),
		bacnet.WithRetries(retries),
		bacnet.WithLogger(logger),
		bacnet.WithMaxAPDULength(cfg.MaxAPDULen),
		bacnet.WithMaxInflight(cfg.MaxInflight),
	}

	switch cfg.SegmentationSupport {
	case "both":
		opts = append(opts, bacnet.WithSegmentation(bacnet.SegmentationBoth))
	case "transmit":
		opts = append(opts, bacnet.WithSegmentation(bacnet.SegmentationTransmit))
	case "receive":
		opts = append(opts, bacnet.WithSegmentation(bacnet.SegmentationReceive))
	default:
		opts = append(opts, bacnet.WithSegmentation(bacnet.SegmentationNone))
	}

	if cfg.BroadcastMode == "directed" && cfg.DirectedAddress != "" {
		opts = append(opts, bacnet.WithDirectedBroadcast(cfg.DirectedAddress))
	} else {
		opts = append(opts, bacnet.WithGlobalBroadcast())
	}

	if cfg.BindAddress != "" {
		opts = append(opts, bacnet.WithLocalAddress(cfg.BindAddress))
	}

	return opts
}

var rootCmd = &cobra.Command{
	Use:   "edgeo-bacnet",
	Short: "A comprehensive BACnet/IP client CLI",
	Long: `edgeo-bacnet is a command-line tool for communicating with BACnet/IP devices.

It supports device discovery, property read/write operations, hosting a
local object model as a server, and various diagnostic functions for
building automation systems.

Examples:
  # Discover devices on the network
  edgeo-bacnet scan

  # Read a property from a device
  edgeo-bacnet read -d 1234 -O analog-input:1 -P present-value

  # Write a value to a device
  edgeo-bacnet write -d 1234 -O analog-output:1 -P present-value -V 75.5

  # Watch for value changes
  edgeo-bacnet watch -d 1234 -O analog-input:1`,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Setup logger
		logLevel := slog.LevelInfo
		if verbose {
			logLevel = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		}))

		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.edgeo-bacnet.yaml)")
	rootCmd.PersistentFlags().StringVarP(&host, "host", "H", "", "Target device IP address")
	rootCmd.PersistentFlags().IntVarP(&port, "port", "p", bacnet.DefaultPort, "BACnet/IP port")
	rootCmd.PersistentFlags().Uint32VarP(&deviceID, "device", "d", 0, "Target device instance ID")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 3*time.Second, "Request timeout")
	rootCmd.PersistentFlags().IntVar(&retries, "retries", 3, "Retry count stored in the client options (requests are sent once, not retransmitted)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format (table, json, csv, raw)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&localAddress, "local", "", "Local address to bind to (e.g., 0.0.0.0:47808)")
	rootCmd.PersistentFlags().StringVar(&broadcastMode, "broadcast-mode", "global", "Who-Is broadcast mode (global, directed)")
	rootCmd.PersistentFlags().StringVar(&directedAddress, "directed-address", "", "Target IP for --broadcast-mode=directed")
	rootCmd.PersistentFlags().Uint8Var(&maxInflight, "max-inflight", 255, "Maximum concurrent in-flight requests (1-255)")
	rootCmd.PersistentFlags().Uint16Var(&maxAPDULen, "max-apdu-len", bacnet.MaxAPDULength, "Maximum APDU length advertised to peers")
	rootCmd.PersistentFlags().StringVar(&segmentationMode, "segmentation-support", "none", "Segmentation support (both, transmit, receive, none)")

	// Bind flags to viper
	viper.BindPFlag("host", rootCmd.PersistentFlags().Lookup("host"))
	viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("device", rootCmd.PersistentFlags().Lookup("device"))
	viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	viper.BindPFlag("retries", rootCmd.PersistentFlags().Lookup("retries"))
	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("local", rootCmd.PersistentFlags().Lookup("local"))
	viper.BindPFlag("bind-address", rootCmd.PersistentFlags().Lookup("local"))
	viper.BindPFlag("broadcast-mode", rootCmd.PersistentFlags().Lookup("broadcast-mode"))
	viper.BindPFlag("directed-address", rootCmd.PersistentFlags().Lookup("directed-address"))
	viper.BindPFlag("max-inflight", rootCmd.PersistentFlags().Lookup("max-inflight"))
	viper.BindPFlag("max-apdu-len", rootCmd.PersistentFlags().Lookup("max-apdu-len"))
	viper.BindPFlag("segmentation-support", rootCmd.PersistentFlags().Lookup("segmentation-support"))

	// Add subcommands
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(interactiveCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.SetConfigName(".edgeo-bacnet")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("BACNET")
	viper.AutomaticEnv()
	viper.SetDefault("default-timeout-ms", uint32(5000))

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}

	if err := viper.Unmarshal(&config); err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}
	// --timeout is the long-standing per-request flag; let an explicit
	// use of it override the config file's default-timeout-ms too,
	// since both ultimately set the same request timeout.
	if rootCmd.PersistentFlags().Changed("timeout") {
		config.DefaultTimeoutMS = uint32(timeout / time.Millisecond)
	}
}

// createClient creates a BACnet client with current configuration
func createClient() (*bacnet.Client, error) {
	return bacnet.NewClient(clientOptionsFromConfig(config, logger)...)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("edgeo-bacnet version 1.0.0")
	},
}
