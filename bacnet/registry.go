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
	"fmt"
	"sync"

	"golang.org/x/exp/slices"
)

// PriorityArray is the 16-slot commandable-value array BACnet uses for
// every writable property: the lowest occupied slot (1 is highest)
// wins, and slot 16 (relinquish-default) should always stay occupied
// so Effective never comes back empty.
type PriorityArray struct {
	mu    sync.RWMutex
	slots [16]*Value
}

// Set occupies a priority slot (1-16). Slot 0 is invalid.
func (p *PriorityArray) Set(priority uint8, v Value) error {
	if priority < 1 || priority > 16 {
		return fmt.Errorf("%w: priority %d out of range 1-16", ErrInvalidValueType, priority)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	val := v
	p.slots[priority-1] = &val
	return nil
}

// Relinquish empties a priority slot, letting a lower-priority (higher
// numbered) write take effect.
func (p *PriorityArray) Relinquish(priority uint8) {
	if priority < 1 || priority > 16 {
		return
	}
	p.mu.Lock()
	p.slots[priority-1] = nil
	p.mu.Unlock()
}

// Effective returns the value of the highest-priority occupied slot.
func (p *PriorityArray) Effective() (Value, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.slots {
		if s != nil {
			return *s, true
		}
	}
	return Value{}, false
}

// Occupied reports, per slot, whether a priority is currently written
// -- the shape the priority-array property itself reads back as.
func (p *PriorityArray) Occupied() []bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]bool, len(p.slots))
	for i, s := range p.slots {
		out[i] = s != nil
	}
	return out
}

type objectKey struct {
	Type     ObjectType
	Instance uint32
}

// Registry is the server-side object store a Server dispatches
// ReadProperty/WriteProperty/Who-Is requests against. One Registry
// backs one local BACnet device.
type Registry struct {
	mu      sync.RWMutex
	objects map[objectKey]Object
}

// NewRegistry creates an empty object registry.
func NewRegistry() *Registry {
	return &Registry{objects: make(map[objectKey]Object)}
}

// Add registers a new object. Re-adding an already-present identity is
// rejected with ErrDuplicateObject rather than silently overwriting it.
func (r *Registry) Add(obj Object) error {
	key := objectKey{obj.Identity().Type, obj.Identity().Instance}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.objects[key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateObject, obj.Identity())
	}
	r.objects[key] = obj
	return nil
}

// Remove deletes an object from the registry. Removing an identity
// that isn't present fails with ErrUnknownObject rather than silently
// no-opping, so a caller can tell the two calls of a double-remove
// apart.
func (r *Registry) Remove(id ObjectIdentifier) error {
	key := objectKey{id.Type, id.Instance}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.objects[key]; !exists {
		return fmt.Errorf("%w: %s", ErrUnknownObject, id)
	}
	delete(r.objects, key)
	return nil
}

// Get looks up an object by identity.
func (r *Registry) Get(id ObjectIdentifier) (Object, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obj, ok := r.objects[objectKey{id.Type, id.Instance}]
	return obj, ok
}

// List returns every registered object's identity, sorted by type then
// instance so a repeated ObjectList read is stable across calls.
func (r *Registry) List() []ObjectIdentifier {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ObjectIdentifier, 0, len(r.objects))
	for key := range r.objects {
		out = append(out, ObjectIdentifier{Type: key.Type, Instance: key.Instance})
	}
	slices.SortFunc(out, func(a, b ObjectIdentifier) int {
		if a.Type != b.Type {
			return int(a.Type) - int(b.Type)
		}
		return int(a.Instance) - int(b.Instance)
	})
	return out
}
