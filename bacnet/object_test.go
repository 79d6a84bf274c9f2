package bacnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueEncodeRoundTripsThroughApplicationTag(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		tag  ApplicationTag
	}{
		{"null", NullValue(), TagNull},
		{"bool-true", BoolValue(true), TagBoolean},
		{"unsigned", UnsignedValue(4200), TagUnsignedInt},
		{"signed", SignedValue(-17), TagSignedInt},
		{"real", RealValue(72.5), TagReal},
		{"double", DoubleValue(3.25), TagDouble},
		{"enumerated", EnumeratedValue(3), TagEnumerated},
		{"string", StringValue("room-1"), TagCharacterString},
		{"bitstring", BitStringValue([]bool{true, false, true}), TagBitString},
		{"date", DateValue(Date{Year: 124, Month: 1, Day: 1, Weekday: 1}), TagDate},
		{"time", TimeValue(Time{Hour: 8, Minute: 0, Second: 0, Hundredths: 0}), TagTime},
		{"objectid", ObjectIDValue(NewObjectIdentifier(ObjectTypeAnalogInput, 1)), TagObjectID},
		{"octetstring", OctetStringValue([]byte{0x01, 0x02}), TagOctetString},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			encoded := c.v.Encode()
			tagNum, class, _, _, err := DecodeTagNumber(encoded)
			require.NoError(t, err)
			assert.Equal(t, TagClassApplication, class)
			assert.Equal(t, uint8(c.tag), tagNum)
		})
	}
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "null", NullValue().String())
	assert.Equal(t, "true", BoolValue(true).String())
	assert.Equal(t, "room-1", StringValue("room-1").String())
}

func TestPriorityArrayEffectivePicksHighestPriority(t *testing.T) {
	var p PriorityArray

	_, ok := p.Effective()
	assert.False(t, ok, "empty array has no effective value")

	require.NoError(t, p.Set(16, RealValue(1)))
	v, ok := p.Effective()
	require.True(t, ok)
	assert.Equal(t, float32(1), v.Real)

	require.NoError(t, p.Set(8, RealValue(2)))
	v, ok = p.Effective()
	require.True(t, ok)
	assert.Equal(t, float32(2), v.Real, "priority 8 beats priority 16")

	p.Relinquish(8)
	v, ok = p.Effective()
	require.True(t, ok)
	assert.Equal(t, float32(1), v.Real, "relinquishing 8 falls back to 16")
}

func TestPriorityArrayRejectsOutOfRange(t *testing.T) {
	var p PriorityArray
	assert.Error(t, p.Set(0, RealValue(1)))
	assert.Error(t, p.Set(17, RealValue(1)))
}

func TestPriorityArrayOccupied(t *testing.T) {
	var p PriorityArray
	require.NoError(t, p.Set(1, RealValue(1)))
	require.NoError(t, p.Set(16, RealValue(2)))

	occupied := p.Occupied()
	require.Len(t, occupied, 16)
	assert.True(t, occupied[0])
	assert.True(t, occupied[15])
	assert.False(t, occupied[1])
}

func TestCommandablePriorityDefaultsAndClamps(t *testing.T) {
	assert.Equal(t, RelinquishDefaultPriority, CommandablePriority(nil))

	zero := uint8(0)
	assert.Equal(t, uint8(1), CommandablePriority(&zero))

	tooHigh := uint8(200)
	assert.Equal(t, uint8(16), CommandablePriority(&tooHigh))

	mid := uint8(5)
	assert.Equal(t, uint8(5), CommandablePriority(&mid))
}

func TestDeviceObjectProperties(t *testing.T) {
	reg := NewRegistry()
	d := NewDeviceObject(1000, "test-device", 260, reg)
	require.NoError(t, reg.Add(d))

	name, err := d.Read(PropertyObjectName, nil)
	require.NoError(t, err)
	assert.Equal(t, "test-device", name.Str)

	vendor, err := d.Read(PropertyVendorIdentifier, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(260), vendor.Uint)

	otype, err := d.Read(PropertyObjectType, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(ObjectTypeDevice), otype.Uint)
}

func TestDeviceObjectUnknownPropertyRejected(t *testing.T) {
	reg := NewRegistry()
	d := NewDeviceObject(1, "d", 1, reg)
	_, err := d.Read(PropertyPresentValue, nil)
	assert.ErrorIs(t, err, ErrUnknownProperty)
}

func TestAnalogInputWritableWithinRange(t *testing.T) {
	ai := NewAnalogInputObject(1, "room-temp", UnitsDegreesCelsius)
	ai.SetPresentValue(21.5)

	v, err := ai.Read(PropertyPresentValue, nil)
	require.NoError(t, err)
	assert.Equal(t, float32(21.5), v.Real)

	require.NoError(t, ai.Write(PropertyPresentValue, RealValue(99), nil, nil))
	v, err = ai.Read(PropertyPresentValue, nil)
	require.NoError(t, err)
	assert.Equal(t, float32(99), v.Real)
}

func TestAnalogInputRejectsWrongType(t *testing.T) {
	ai := NewAnalogInputObject(1, "room-temp", UnitsDegreesCelsius)
	err := ai.Write(PropertyPresentValue, StringValue("nope"), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidValueType)
}

func TestAnalogInputOutOfRangeWriteRejected(t *testing.T) {
	ai := NewAnalogInputObject(1, "room-temp", UnitsDegreesCelsius)
	ai.SetRange(0, 100)

	err := ai.Write(PropertyPresentValue, RealValue(250), nil, nil)
	var bacnetErr *BACnetError
	require.ErrorAs(t, err, &bacnetErr)
	assert.Equal(t, ErrorClassProperty, bacnetErr.Class)
	assert.Equal(t, ErrorCodeValueOutOfRange, bacnetErr.Code)

	v, err := ai.Read(PropertyPresentValue, nil)
	require.NoError(t, err)
	assert.Equal(t, float32(0), v.Real, "rejected write must not change present-value")

	require.NoError(t, ai.Write(PropertyPresentValue, RealValue(50), nil, nil))
	v, err = ai.Read(PropertyPresentValue, nil)
	require.NoError(t, err)
	assert.Equal(t, float32(50), v.Real)
}

func TestAnalogOutputOutOfRangeWriteRejected(t *testing.T) {
	ao := NewAnalogOutputObject(1, "damper", UnitsPercent, 0)
	ao.SetRange(0, 100)

	err := ao.Write(PropertyPresentValue, RealValue(250), nil, nil)
	var bacnetErr *BACnetError
	require.ErrorAs(t, err, &bacnetErr)
	assert.Equal(t, ErrorClassProperty, bacnetErr.Class)
	assert.Equal(t, ErrorCodeValueOutOfRange, bacnetErr.Code)
}

func TestAnalogOutputCommandableWrite(t *testing.T) {
	ao := NewAnalogOutputObject(1, "damper", UnitsPercent, 0)

	v, err := ao.Read(PropertyPresentValue, nil)
	require.NoError(t, err)
	assert.Equal(t, float32(0), v.Real, "relinquish-default before any write")

	priority := uint8(8)
	require.NoError(t, ao.Write(PropertyPresentValue, RealValue(55), nil, &priority))
	v, err = ao.Read(PropertyPresentValue, nil)
	require.NoError(t, err)
	assert.Equal(t, float32(55), v.Real)

	require.NoError(t, ao.Write(PropertyPresentValue, NullValue(), nil, &priority))
	v, err = ao.Read(PropertyPresentValue, nil)
	require.NoError(t, err)
	assert.Equal(t, float32(0), v.Real, "relinquish at priority 8 falls back to default")
}

func TestAnalogOutputRejectsWrongType(t *testing.T) {
	ao := NewAnalogOutputObject(1, "damper", UnitsPercent, 0)
	err := ao.Write(PropertyPresentValue, StringValue("nope"), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidValueType)
}

func TestRegistryAddRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	ai := NewAnalogInputObject(1, "a", UnitsDegreesCelsius)
	require.NoError(t, reg.Add(ai))

	dup := NewAnalogInputObject(1, "b", UnitsDegreesCelsius)
	err := reg.Add(dup)
	assert.ErrorIs(t, err, ErrDuplicateObject)
}

func TestRegistryGetAndRemove(t *testing.T) {
	reg := NewRegistry()
	ai := NewAnalogInputObject(1, "a", UnitsDegreesCelsius)
	require.NoError(t, reg.Add(ai))

	got, ok := reg.Get(ai.Identity())
	require.True(t, ok)
	assert.Equal(t, ai, got)

	require.NoError(t, reg.Remove(ai.Identity()))
	_, ok = reg.Get(ai.Identity())
	assert.False(t, ok)

	err := reg.Remove(ai.Identity())
	assert.ErrorIs(t, err, ErrUnknownObject)
}

func TestRegistryListIsSortedByTypeThenInstance(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Add(NewAnalogInputObject(5, "ai5", UnitsDegreesCelsius)))
	require.NoError(t, reg.Add(NewAnalogInputObject(1, "ai1", UnitsDegreesCelsius)))
	require.NoError(t, reg.Add(NewDeviceObject(9, "dev", 1, reg)))

	list := reg.List()
	require.Len(t, list, 3)
	assert.Equal(t, ObjectTypeAnalogInput, list[0].Type)
	assert.Equal(t, uint32(1), list[0].Instance)
	assert.Equal(t, ObjectTypeAnalogInput, list[1].Type)
	assert.Equal(t, uint32(5), list[1].Instance)
	assert.Equal(t, ObjectTypeDevice, list[2].Type)
}
