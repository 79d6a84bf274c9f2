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
)

// ValueKind tags the concrete BACnet primitive carried by a Value.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindBoolean
	KindUnsigned
	KindSigned
	KindReal
	KindDouble
	KindEnumerated
	KindCharacterString
	KindBitString
	KindDate
	KindTime
	KindObjectIdentifier
	KindOctetString
)

// Value is a tagged variant of the primitives an object's properties can
// carry. Unlike the client's decode path (which hands callers a bare
// interface{} for CLI convenience), the object model needs to know a
// property's tag up front to validate writes and re-encode reads, so it
// carries the kind alongside the payload instead of relying on a type
// switch over interface{}.
type Value struct {
	Kind ValueKind

	Bool   bool
	Uint   uint32
	Int    int32
	Real   float32
	Double float64
	Str    string
	Bits   []bool
	Date   Date
	Time   Time
	Object ObjectIdentifier
	Octets []byte
}

func NullValue() Value                         { return Value{Kind: KindNull} }
func BoolValue(v bool) Value                    { return Value{Kind: KindBoolean, Bool: v} }
func UnsignedValue(v uint32) Value              { return Value{Kind: KindUnsigned, Uint: v} }
func SignedValue(v int32) Value                 { return Value{Kind: KindSigned, Int: v} }
func RealValue(v float32) Value                 { return Value{Kind: KindReal, Real: v} }
func DoubleValue(v float64) Value               { return Value{Kind: KindDouble, Double: v} }
func EnumeratedValue(v uint32) Value            { return Value{Kind: KindEnumerated, Uint: v} }
func StringValue(v string) Value                { return Value{Kind: KindCharacterString, Str: v} }
func BitStringValue(v []bool) Value             { return Value{Kind: KindBitString, Bits: v} }
func DateValue(v Date) Value                    { return Value{Kind: KindDate, Date: v} }
func TimeValue(v Time) Value                    { return Value{Kind: KindTime, Time: v} }
func ObjectIDValue(v ObjectIdentifier) Value     { return Value{Kind: KindObjectIdentifier, Object: v} }
func OctetStringValue(v []byte) Value           { return Value{Kind: KindOctetString, Octets: v} }

// Encode renders the value as an application-tagged primitive, the form
// ReadProperty responses and COV-free property echoes put on the wire.
func (v Value) Encode() []byte {
	switch v.Kind {
	case KindNull:
		return EncodeTag(uint8(TagNull), TagClassApplication, 0)
	case KindBoolean:
		return EncodeBooleanTag(v.Bool)
	case KindUnsigned:
		return EncodeUnsignedTag(v.Uint)
	case KindSigned:
		data := EncodeSigned(v.Int)
		return append(EncodeTag(uint8(TagSignedInt), TagClassApplication, len(data)), data...)
	case KindReal:
		return EncodeRealTag(v.Real)
	case KindDouble:
		data := EncodeDouble(v.Double)
		return append(EncodeTag(uint8(TagDouble), TagClassApplication, len(data)), data...)
	case KindEnumerated:
		return EncodeEnumeratedTag(v.Uint)
	case KindCharacterString:
		return EncodeCharacterStringTag(v.Str)
	case KindBitString:
		return EncodeBitStringTag(v.Bits)
	case KindDate:
		return EncodeDateTag(v.Date)
	case KindTime:
		return EncodeTimeTag(v.Time)
	case KindObjectIdentifier:
		return EncodeObjectIdentifierTag(v.Object)
	case KindOctetString:
		return EncodeOctetStringTag(v.Octets)
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBoolean:
		return fmt.Sprintf("%v", v.Bool)
	case KindUnsigned, KindEnumerated:
		return fmt.Sprintf("%d", v.Uint)
	case KindSigned:
		return fmt.Sprintf("%d", v.Int)
	case KindReal:
		return fmt.Sprintf("%g", v.Real)
	case KindDouble:
		return fmt.Sprintf("%g", v.Double)
	case KindCharacterString:
		return v.Str
	case KindObjectIdentifier:
		return v.Object.String()
	default:
		return fmt.Sprintf("%+v", v)
	}
}

// Object is anything the server's Registry can hold and dispatch
// ReadProperty/WriteProperty service requests against.
type Object interface {
	Identity() ObjectIdentifier
	Name() string
	Read(prop PropertyIdentifier, index *uint32) (Value, error)
	Write(prop PropertyIdentifier, v Value, index *uint32, priority *uint8) error
}

// propertyAccessor is the pure-data hook a concrete object kind registers
// per property it supports. get/set are plain closures over the owning
// struct's fields, never reflection, so property support is exhaustive
// and testable per object kind.
type propertyAccessor struct {
	get func() (Value, error)
	set func(v Value, priority *uint8) error
}

// baseObject carries the fields every BACnet object shares: identity,
// name, description, and the property-id to accessor table. Concrete
// kinds embed it and register their accessors in that table. There is
// no separate store for proprietary properties: a property with no
// registered accessor reads and writes as ErrUnknownProperty.
type baseObject struct {
	mu          sync.RWMutex
	id          ObjectIdentifier
	name        string
	description string
	accessors   map[PropertyIdentifier]propertyAccessor
}

func newBaseObject(id ObjectIdentifier, name string) baseObject {
	return baseObject{
		id:        id,
		name:      name,
		accessors: make(map[PropertyIdentifier]propertyAccessor),
	}
}

func (o *baseObject) Identity() ObjectIdentifier { return o.id }

func (o *baseObject) Name() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.name
}

func (o *baseObject) register(prop PropertyIdentifier, a propertyAccessor) {
	o.accessors[prop] = a
}

func (o *baseObject) Read(prop PropertyIdentifier, index *uint32) (Value, error) {
	o.mu.RLock()
	a, ok := o.accessors[prop]
	o.mu.RUnlock()
	if !ok {
		return Value{}, fmt.Errorf("%w: %s on %s", ErrUnknownProperty, prop, o.id)
	}
	return a.get()
}

func (o *baseObject) Write(prop PropertyIdentifier, v Value, index *uint32, priority *uint8) error {
	o.mu.Lock()
	a, ok := o.accessors[prop]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s on %s", ErrUnknownProperty, prop, o.id)
	}
	if a.set == nil {
		return fmt.Errorf("%w: %s on %s", ErrReadOnlyProperty, prop, o.id)
	}
	return a.set(v, priority)
}

func (o *baseObject) commonAccessors(objType ObjectType) {
	o.register(PropertyObjectIdentifier, propertyAccessor{
		get: func() (Value, error) { return ObjectIDValue(o.id), nil },
	})
	o.register(PropertyObjectType, propertyAccessor{
		get: func() (Value, error) { return EnumeratedValue(uint32(objType)), nil },
	})
	o.register(PropertyObjectName, propertyAccessor{
		get: func() (Value, error) {
			o.mu.RLock()
			defer o.mu.RUnlock()
			return StringValue(o.name), nil
		},
	})
	o.register(PropertyDescription, propertyAccessor{
		get: func() (Value, error) {
			o.mu.RLock()
			defer o.mu.RUnlock()
			return StringValue(o.description), nil
		},
	})
}

// DeviceObject is the one mandatory object every BACnet device exposes
// at Type=Device, Instance=its own device ID; it answers Who-Is and
// carries the device's static capability properties.
type DeviceObject struct {
	baseObject
	vendorID            uint16
	vendorName          string
	modelName           string
	maxAPDULength       uint32
	segmentation        Segmentation
	registry            *Registry
}

func NewDeviceObject(instance uint32, name string, vendorID uint16, registry *Registry) *DeviceObject {
	d := &DeviceObject{
		baseObject:    newBaseObject(ObjectIdentifier{Type: ObjectTypeDevice, Instance: instance}, name),
		vendorID:      vendorID,
		maxAPDULength: uint32(MaxAPDULength),
		segmentation:  SegmentationNone,
		registry:      registry,
	}
	d.commonAccessors(ObjectTypeDevice)
	d.register(PropertyVendorIdentifier, propertyAccessor{
		get: func() (Value, error) { return UnsignedValue(uint32(d.vendorID)), nil },
	})
	d.register(PropertyMaxAPDULengthAccepted, propertyAccessor{
		get: func() (Value, error) { return UnsignedValue(d.maxAPDULength), nil },
	})
	d.register(PropertySegmentationSupported, propertyAccessor{
		get: func() (Value, error) { return EnumeratedValue(uint32(d.segmentation)), nil },
	})
	d.register(PropertyObjectList, propertyAccessor{
		get: func() (Value, error) {
			// Returns the registry's object count for any array index
			// (or none); serveReadProperty sends it as a single
			// unsigned, not as a list of identifiers.
			return UnsignedValue(uint32(len(d.registry.List()))), nil
		},
	})
	return d
}

// AnalogInputObject models a read-driven analog point: present-value is
// fed by the owning application (a sensor poll, a simulator) via
// SetPresentValue, and a WriteProperty of a Real to present-value is
// also accepted, subject to the bounds installed by SetRange.
type AnalogInputObject struct {
	baseObject
	presentValue    float32
	units           EngineeringUnits
	reliability     Reliability
	statusFlags     StatusFlags
	minPresentValue float32
	maxPresentValue float32
	rangeSet        bool
}

func NewAnalogInputObject(instance uint32, name string, units EngineeringUnits) *AnalogInputObject {
	a := &AnalogInputObject{
		baseObject: newBaseObject(ObjectIdentifier{Type: ObjectTypeAnalogInput, Instance: instance}, name),
		units:      units,
	}
	a.commonAccessors(ObjectTypeAnalogInput)
	a.register(PropertyPresentValue, propertyAccessor{
		get: func() (Value, error) {
			a.mu.RLock()
			defer a.mu.RUnlock()
			return RealValue(a.presentValue), nil
		},
		set: func(v Value, _ *uint8) error {
			if v.Kind != KindReal {
				return fmt.Errorf("%w: analog-input present-value wants Real, got kind %d", ErrInvalidValueType, v.Kind)
			}
			a.mu.Lock()
			defer a.mu.Unlock()
			if a.rangeSet && (v.Real < a.minPresentValue || v.Real > a.maxPresentValue) {
				return NewBACnetError(ErrorClassProperty, ErrorCodeValueOutOfRange)
			}
			a.presentValue = v.Real
			return nil
		},
	})
	a.register(PropertyUnits, propertyAccessor{
		get: func() (Value, error) { return EnumeratedValue(uint32(a.units)), nil },
	})
	a.register(PropertyStatusFlags, propertyAccessor{
		get: func() (Value, error) {
			a.mu.RLock()
			defer a.mu.RUnlock()
			return BitStringValue(a.statusFlags.Bits()), nil
		},
	})
	a.register(PropertyReliability, propertyAccessor{
		get: func() (Value, error) {
			a.mu.RLock()
			defer a.mu.RUnlock()
			return EnumeratedValue(uint32(a.reliability)), nil
		},
	})
	a.register(PropertyMinPresValue, propertyAccessor{
		get: func() (Value, error) {
			a.mu.RLock()
			defer a.mu.RUnlock()
			return RealValue(a.minPresentValue), nil
		},
	})
	a.register(PropertyMaxPresValue, propertyAccessor{
		get: func() (Value, error) {
			a.mu.RLock()
			defer a.mu.RUnlock()
			return RealValue(a.maxPresentValue), nil
		},
	})
	return a
}

// SetPresentValue updates the point's value from the owning application,
// e.g. a sensor poll or simulator, bypassing the min/max range check a
// network WriteProperty is held to.
func (a *AnalogInputObject) SetPresentValue(v float32) {
	a.mu.Lock()
	a.presentValue = v
	a.mu.Unlock()
}

// SetRange installs the min-present-value/max-present-value bounds a
// WriteProperty against present-value is checked against. Until called,
// present-value accepts any Real.
func (a *AnalogInputObject) SetRange(min, max float32) {
	a.mu.Lock()
	a.minPresentValue = min
	a.maxPresentValue = max
	a.rangeSet = true
	a.mu.Unlock()
}

// AnalogOutputObject models a commandable point: present-value is
// writable over BACnet and backed by a 16-level priority array, with
// the relinquish-default (priority 16 being the lowest) surfacing when
// every higher priority slot is empty.
type AnalogOutputObject struct {
	baseObject
	priorities      PriorityArray
	units           EngineeringUnits
	statusFlags     StatusFlags
	minPresentValue float32
	maxPresentValue float32
	rangeSet        bool
}

func NewAnalogOutputObject(instance uint32, name string, units EngineeringUnits, relinquishDefault float32) *AnalogOutputObject {
	o := &AnalogOutputObject{
		baseObject: newBaseObject(ObjectIdentifier{Type: ObjectTypeAnalogOutput, Instance: instance}, name),
		units:      units,
	}
	o.priorities.Set(RelinquishDefaultPriority, RealValue(relinquishDefault))
	o.commonAccessors(ObjectTypeAnalogOutput)
	o.register(PropertyPresentValue, propertyAccessor{
		get: func() (Value, error) {
			v, ok := o.priorities.Effective()
			if !ok {
				return RealValue(0), nil
			}
			return v, nil
		},
		set: func(v Value, priority *uint8) error {
			if v.Kind != KindReal && v.Kind != KindNull {
				return fmt.Errorf("%w: analog-output present-value wants Real, got kind %d", ErrInvalidValueType, v.Kind)
			}
			p := CommandablePriority(priority)
			if v.Kind == KindNull {
				o.priorities.Relinquish(p)
				return nil
			}
			o.mu.RLock()
			rangeSet, min, max := o.rangeSet, o.minPresentValue, o.maxPresentValue
			o.mu.RUnlock()
			if rangeSet && (v.Real < min || v.Real > max) {
				return NewBACnetError(ErrorClassProperty, ErrorCodeValueOutOfRange)
			}
			return o.priorities.Set(p, v)
		},
	})
	o.register(PropertyUnits, propertyAccessor{
		get: func() (Value, error) { return EnumeratedValue(uint32(o.units)), nil },
	})
	o.register(PropertyStatusFlags, propertyAccessor{
		get: func() (Value, error) {
			o.mu.RLock()
			defer o.mu.RUnlock()
			return BitStringValue(o.statusFlags.Bits()), nil
		},
	})
	o.register(PropertyPriorityArray, propertyAccessor{
		get: func() (Value, error) {
			return BitStringValue(o.priorities.Occupied()), nil
		},
	})
	o.register(PropertyMinPresValue, propertyAccessor{
		get: func() (Value, error) {
			o.mu.RLock()
			defer o.mu.RUnlock()
			return RealValue(o.minPresentValue), nil
		},
	})
	o.register(PropertyMaxPresValue, propertyAccessor{
		get: func() (Value, error) {
			o.mu.RLock()
			defer o.mu.RUnlock()
			return RealValue(o.maxPresentValue), nil
		},
	})
	return o
}

// SetRange installs the min-present-value/max-present-value bounds a
// WriteProperty against present-value is checked against. Until called,
// present-value accepts any Real.
func (o *AnalogOutputObject) SetRange(min, max float32) {
	o.mu.Lock()
	o.minPresentValue = min
	o.maxPresentValue = max
	o.rangeSet = true
	o.mu.Unlock()
}

// RelinquishDefaultPriority is the lowest commandable priority slot
// (16); a write without an explicit priority lands here.
const RelinquishDefaultPriority uint8 = 16

// CommandablePriority clamps an optional write priority into the valid
// 1-16 range, defaulting to the relinquish-default slot.
func CommandablePriority(priority *uint8) uint8 {
	if priority == nil {
		return RelinquishDefaultPriority
	}
	p := *priority
	if p < 1 {
		p = 1
	}
	if p > 16 {
		p = 16
	}
	return p
}
