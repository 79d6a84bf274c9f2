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

package bacnet

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Manager tracks BACnet devices discovered on the network. A Client owns
// one Manager; it also backs a standalone device registry for callers who
// only need passive discovery bookkeeping without the confirmed-service
// half of Client.
type Manager struct {
	mu      sync.RWMutex
	devices map[uint32]*DeviceInfo

	subsMu sync.Mutex
	subs   []chan *DeviceInfo
}

// NewManager creates an empty device manager
func NewManager() *Manager {
	return &Manager{
		devices: make(map[uint32]*DeviceInfo),
	}
}

// Get returns a cached device by instance number
func (m *Manager) Get(deviceID uint32) (*DeviceInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dev, ok := m.devices[deviceID]
	return dev, ok
}

// List returns all cached devices
func (m *Manager) List() []*DeviceInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*DeviceInfo, 0, len(m.devices))
	for _, dev := range m.devices {
		out = append(out, dev)
	}
	return out
}

// observe records a device discovered via I-Am and fans it out to any
// discovery sessions currently in progress. Returns true if the device
// was not already known.
func (m *Manager) observe(dev *DeviceInfo) bool {
	m.mu.Lock()
	_, existed := m.devices[dev.ObjectID.Instance]
	m.devices[dev.ObjectID.Instance] = dev
	m.mu.Unlock()

	m.subsMu.Lock()
	for _, ch := range m.subs {
		select {
		case ch <- dev:
		default:
		}
	}
	m.subsMu.Unlock()

	return !existed
}

func (m *Manager) subscribe() chan *DeviceInfo {
	ch := make(chan *DeviceInfo, 64)
	m.subsMu.Lock()
	m.subs = append(m.subs, ch)
	m.subsMu.Unlock()
	return ch
}

func (m *Manager) unsubscribe(ch chan *DeviceInfo) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for i, s := range m.subs {
		if s == ch {
			m.subs = append(m.subs[:i], m.subs[i+1:]...)
			break
		}
	}
}

// Discover runs one Who-Is discovery window: it opens a subscription to
// I-Am replies, invokes send to broadcast the request, then collects
// replies until the window elapses or ctx is cancelled. The two
// concerns (listening and sending) run concurrently via errgroup so a
// slow broadcast never eats into the listening window.
func (m *Manager) Discover(ctx context.Context, window time.Duration, lowLimit, highLimit *uint32, send func(context.Context) error) ([]*DeviceInfo, error) {
	sub := m.subscribe()
	defer m.unsubscribe(sub)

	windowCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	found := make(map[uint32]*DeviceInfo)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return send(gctx)
	})

	g.Go(func() error {
		for {
			select {
			case <-windowCtx.Done():
				return nil
			case dev, ok := <-sub:
				if !ok {
					return nil
				}
				if lowLimit != nil && dev.ObjectID.Instance < *lowLimit {
					continue
				}
				if highLimit != nil && dev.ObjectID.Instance > *highLimit {
					continue
				}
				found[dev.ObjectID.Instance] = dev
			}
		}
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	devices := make([]*DeviceInfo, 0, len(found))
	for _, dev := range found {
		devices = append(devices, dev)
	}
	return devices, nil
}
