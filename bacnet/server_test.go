package bacnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *Registry) {
	t.Helper()
	reg := NewRegistry()
	device := NewDeviceObject(9999, "test-server", 260, reg)
	require.NoError(t, reg.Add(device))

	srv, err := NewServer(reg, 9999)
	require.NoError(t, err)
	return srv, reg
}

func TestNewServerRequiresDeviceObject(t *testing.T) {
	reg := NewRegistry()
	_, err := NewServer(reg, 1)
	assert.ErrorIs(t, err, ErrUnknownObject)
}

func TestDecodeWhoIsRange(t *testing.T) {
	data := append(EncodeContextUnsigned(0, 10), EncodeContextUnsigned(1, 20)...)
	low, high, ok := decodeWhoIsRange(data)
	require.True(t, ok)
	assert.Equal(t, uint32(10), low)
	assert.Equal(t, uint32(20), high)
}

func TestDecodeWhoIsRangeRejectsApplicationTagged(t *testing.T) {
	// A real Who-Is range uses context tags (0, 1); application-tagged
	// data here must not be mistaken for one.
	data := EncodeUnsignedTag(10)
	_, _, ok := decodeWhoIsRange(data)
	assert.False(t, ok)
}

func TestBuildIAm(t *testing.T) {
	srv, _ := newTestServer(t)
	data := srv.buildIAm()

	offset := 0
	tagNum, class, length, headerLen, err := DecodeTagNumber(data)
	require.NoError(t, err)
	assert.Equal(t, uint8(TagObjectID), tagNum)
	assert.Equal(t, TagClassApplication, class)
	oid := DecodeObjectIdentifierFromBytes(data[headerLen : headerLen+length])
	assert.Equal(t, ObjectIdentifier{Type: ObjectTypeDevice, Instance: 9999}, oid)
	offset = headerLen + length

	tagNum, class, length, headerLen, err = DecodeTagNumber(data[offset:])
	require.NoError(t, err)
	assert.Equal(t, uint8(TagUnsignedInt), tagNum)
	maxAPDU := DecodeUnsigned(data[offset+headerLen : offset+headerLen+length])
	assert.Equal(t, uint32(MaxAPDULength), maxAPDU)
}

// readPropertyRequestBytes builds the request parameters exactly as
// Client.ReadProperty does, so serveReadProperty is exercised with the
// same wire shape the client produces.
func readPropertyRequestBytes(oid ObjectIdentifier, prop PropertyIdentifier) []byte {
	data := make([]byte, 0, 16)
	data = append(data, EncodeContextObjectIdentifier(0, oid)...)
	data = append(data, EncodeContextEnumerated(1, uint32(prop))...)
	return data
}

func TestServeReadPropertySuccess(t *testing.T) {
	srv, reg := newTestServer(t)
	ai := NewAnalogInputObject(1, "room-temp", UnitsDegreesCelsius)
	ai.SetPresentValue(21.5)
	require.NoError(t, reg.Add(ai))

	req := readPropertyRequestBytes(ai.Identity(), PropertyPresentValue)
	reply := srv.serveReadProperty(7, req)

	apdu, err := DecodeAPDU(reply)
	require.NoError(t, err)
	assert.Equal(t, PDUTypeComplexAck, apdu.Type)
	assert.Equal(t, uint8(7), apdu.InvokeID)
	assert.Equal(t, uint8(ServiceReadProperty), apdu.Service)
}

func TestServeReadPropertyUnknownObject(t *testing.T) {
	srv, _ := newTestServer(t)
	req := readPropertyRequestBytes(NewObjectIdentifier(ObjectTypeAnalogInput, 404), PropertyPresentValue)
	reply := srv.serveReadProperty(1, req)

	apdu, err := DecodeAPDU(reply)
	require.NoError(t, err)
	assert.Equal(t, PDUTypeError, apdu.Type)
}

func TestServeReadPropertyUnknownProperty(t *testing.T) {
	srv, reg := newTestServer(t)
	ai := NewAnalogInputObject(2, "room-temp", UnitsDegreesCelsius)
	require.NoError(t, reg.Add(ai))

	req := readPropertyRequestBytes(ai.Identity(), PropertyPriorityArray)
	reply := srv.serveReadProperty(1, req)

	apdu, err := DecodeAPDU(reply)
	require.NoError(t, err)
	assert.Equal(t, PDUTypeError, apdu.Type)
}

// writePropertyRequestBytes mirrors Client.WriteProperty's encoding.
func writePropertyRequestBytes(oid ObjectIdentifier, prop PropertyIdentifier, value []byte, priority *uint8) []byte {
	data := make([]byte, 0, 32)
	data = append(data, EncodeContextObjectIdentifier(0, oid)...)
	data = append(data, EncodeContextEnumerated(1, uint32(prop))...)
	data = append(data, EncodeOpeningTag(3)...)
	data = append(data, value...)
	data = append(data, EncodeClosingTag(3)...)
	if priority != nil {
		data = append(data, EncodeContextUnsigned(4, uint32(*priority))...)
	}
	return data
}

func TestServeWritePropertySuccess(t *testing.T) {
	srv, reg := newTestServer(t)
	ao := NewAnalogOutputObject(1, "damper", UnitsPercent, 0)
	require.NoError(t, reg.Add(ao))

	priority := uint8(8)
	req := writePropertyRequestBytes(ao.Identity(), PropertyPresentValue, EncodeRealTag(42.0), &priority)
	reply := srv.serveWriteProperty(3, req)

	apdu, err := DecodeAPDU(reply)
	require.NoError(t, err)
	assert.Equal(t, PDUTypeSimpleAck, apdu.Type)
	assert.Equal(t, uint8(3), apdu.InvokeID)

	v, err := ao.Read(PropertyPresentValue, nil)
	require.NoError(t, err)
	assert.Equal(t, float32(42.0), v.Real)
}

func TestServeWritePropertyOutOfRangeRejected(t *testing.T) {
	srv, reg := newTestServer(t)
	ai := NewAnalogInputObject(1, "room-temp", UnitsDegreesCelsius)
	ai.SetRange(0, 100)
	require.NoError(t, reg.Add(ai))

	req := writePropertyRequestBytes(ai.Identity(), PropertyPresentValue, EncodeRealTag(250), nil)
	reply := srv.serveWriteProperty(4, req)

	apdu, err := DecodeAPDU(reply)
	require.NoError(t, err)
	require.Equal(t, PDUTypeError, apdu.Type)

	class, code := decodeErrorClassAndCode(t, apdu.Data)
	assert.Equal(t, ErrorClassProperty, class)
	assert.Equal(t, ErrorCodeValueOutOfRange, code)
}

// decodeErrorClassAndCode decodes the two application-tagged enumerated
// values (error-class, error-code) an Error APDU's Data carries.
func decodeErrorClassAndCode(t *testing.T, data []byte) (ErrorClass, ErrorCode) {
	t.Helper()
	tagNum, _, length, headerLen, err := DecodeTagNumber(data)
	require.NoError(t, err)
	require.Equal(t, uint8(TagEnumerated), tagNum)
	class := ErrorClass(DecodeUnsigned(data[headerLen : headerLen+length]))
	offset := headerLen + length

	tagNum, _, length, headerLen, err = DecodeTagNumber(data[offset:])
	require.NoError(t, err)
	require.Equal(t, uint8(TagEnumerated), tagNum)
	code := ErrorCode(DecodeUnsigned(data[offset+headerLen : offset+headerLen+length]))
	return class, code
}

func TestServeConfirmedRequestRejectsSegmented(t *testing.T) {
	srv, _ := newTestServer(t)
	apdu := &APDU{
		Type:      PDUTypeConfirmedRequest,
		Segmented: true,
		InvokeID:  7,
		Service:   byte(ServiceReadProperty),
		Data:      []byte{0xFF}, // would be an invalid ReadProperty payload if dispatched
	}

	reply := srv.buildConfirmedReply(apdu)
	decoded, err := DecodeAPDU(reply)
	require.NoError(t, err)
	require.Equal(t, PDUTypeError, decoded.Type)

	class, code := decodeErrorClassAndCode(t, decoded.Data)
	assert.Equal(t, ErrorClassServices, class)
	assert.Equal(t, ErrorCodeOptionalFunctionalityNotSupported, code)
}

func TestServeWritePropertyUnknownObject(t *testing.T) {
	srv, _ := newTestServer(t)
	req := writePropertyRequestBytes(NewObjectIdentifier(ObjectTypeAnalogOutput, 404), PropertyPresentValue, EncodeRealTag(1), nil)
	reply := srv.serveWriteProperty(5, req)

	apdu, err := DecodeAPDU(reply)
	require.NoError(t, err)
	assert.Equal(t, PDUTypeError, apdu.Type)
}
