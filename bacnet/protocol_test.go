package bacnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBVLCRoundTrip(t *testing.T) {
	npduLen := 6
	header := EncodeBVLC(BVLCOriginalBroadcastNPDU, npduLen)
	full := append(header, make([]byte, npduLen)...)

	decoded, err := DecodeBVLC(full)
	require.NoError(t, err)
	assert.Equal(t, BVLCTypeBACnetIP, decoded.Type)
	assert.Equal(t, BVLCOriginalBroadcastNPDU, decoded.Function)
	assert.Equal(t, uint16(len(full)), decoded.Length)
}

func TestBVLCRejectsWrongLinkType(t *testing.T) {
	data := []byte{0x82, 0x0B, 0x00, 0x04}
	_, err := DecodeBVLC(data)
	assert.ErrorIs(t, err, ErrWrongLink)
}

func TestBVLCRejectsLengthMismatch(t *testing.T) {
	data := []byte{0x81, 0x0B, 0x00, 0x0A} // claims 10 bytes, only has 4
	_, err := DecodeBVLC(data)
	assert.ErrorIs(t, err, ErrBadLength)
}

func TestBVLCTooShort(t *testing.T) {
	_, err := DecodeBVLC([]byte{0x81, 0x0B})
	assert.ErrorIs(t, err, ErrInvalidBVLC)
}

func TestNPDURoundTripSimple(t *testing.T) {
	encoded := EncodeNPDU(true, NPDUControlPriorityUrgent)
	npdu, consumed, err := DecodeNPDU(encoded)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x01), npdu.Version)
	assert.True(t, npdu.Control&NPDUControlExpectingReply != 0)
	assert.Equal(t, NPDUControlPriorityUrgent, npdu.Control&0x03)
	assert.Equal(t, len(encoded), consumed)
}

func TestNPDURoundTripWithDest(t *testing.T) {
	destAddr := []byte{0xC0, 0xA8, 0x01, 0x01, 0xBA, 0xC0}
	encoded := EncodeNPDUWithDest(42, destAddr, 255, false, NPDUControlPriorityNormal)

	npdu, _, err := DecodeNPDU(encoded)
	require.NoError(t, err)
	assert.Equal(t, uint16(42), npdu.DestNet)
	assert.Equal(t, destAddr, npdu.DestAddr)
	assert.Equal(t, uint8(255), npdu.DestHopCount)
}

func TestNPDURejectsBadVersion(t *testing.T) {
	_, _, err := DecodeNPDU([]byte{0x02, 0x00})
	assert.ErrorIs(t, err, ErrInvalidNPDU)
}

func TestAPDUConfirmedRequestRoundTrip(t *testing.T) {
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	encoded := EncodeConfirmedRequest(17, ServiceReadProperty, data, 2, 5)

	apdu, err := DecodeAPDU(encoded)
	require.NoError(t, err)
	assert.Equal(t, PDUTypeConfirmedRequest, apdu.Type)
	assert.Equal(t, uint8(17), apdu.InvokeID)
	assert.Equal(t, uint8(ServiceReadProperty), apdu.Service)
	assert.Equal(t, data, apdu.Data)
}

func TestAPDUUnconfirmedRequestRoundTrip(t *testing.T) {
	data := []byte{0x01, 0x02}
	encoded := EncodeUnconfirmedRequest(ServiceWhoIs, data)

	apdu, err := DecodeAPDU(encoded)
	require.NoError(t, err)
	assert.Equal(t, PDUTypeUnconfirmedRequest, apdu.Type)
	assert.Equal(t, uint8(ServiceWhoIs), apdu.Service)
	assert.Equal(t, data, apdu.Data)
}

func TestAPDUAckRoundTrips(t *testing.T) {
	t.Run("simple-ack", func(t *testing.T) {
		encoded := EncodeSimpleAck(9, ServiceWriteProperty)
		apdu, err := DecodeAPDU(encoded)
		require.NoError(t, err)
		assert.Equal(t, PDUTypeSimpleAck, apdu.Type)
		assert.Equal(t, uint8(9), apdu.InvokeID)
		assert.Equal(t, uint8(ServiceWriteProperty), apdu.Service)
	})

	t.Run("complex-ack", func(t *testing.T) {
		payload := []byte{0x01, 0x02, 0x03}
		encoded := EncodeComplexAck(10, ServiceReadProperty, payload)
		apdu, err := DecodeAPDU(encoded)
		require.NoError(t, err)
		assert.Equal(t, PDUTypeComplexAck, apdu.Type)
		assert.Equal(t, payload, apdu.Data)
	})

	t.Run("error", func(t *testing.T) {
		encoded := EncodeErrorAPDU(11, ServiceReadProperty, ErrorClassObject, ErrorCodeUnknownObject)
		apdu, err := DecodeAPDU(encoded)
		require.NoError(t, err)
		assert.Equal(t, PDUTypeError, apdu.Type)
		assert.Equal(t, uint8(11), apdu.InvokeID)
	})

	t.Run("reject", func(t *testing.T) {
		encoded := EncodeRejectAPDU(12, RejectReasonUndefinedEnumeration)
		apdu, err := DecodeAPDU(encoded)
		require.NoError(t, err)
		assert.Equal(t, PDUTypeReject, apdu.Type)
		assert.Equal(t, uint8(RejectReasonUndefinedEnumeration), apdu.Service)
	})

	t.Run("abort-server", func(t *testing.T) {
		encoded := EncodeAbortAPDU(13, true, AbortReasonOutOfResources)
		apdu, err := DecodeAPDU(encoded)
		require.NoError(t, err)
		assert.Equal(t, PDUTypeAbort, apdu.Type)
		assert.Equal(t, uint8(AbortReasonOutOfResources), apdu.Service)
	})
}

func TestDecodeAPDUUnknownType(t *testing.T) {
	_, err := DecodeAPDU([]byte{0x80})
	assert.ErrorIs(t, err, ErrInvalidAPDU)
}

func TestTagLengthMinimality(t *testing.T) {
	cases := []struct {
		name   string
		tagNum uint8
		class  TagClass
		length int
		want   []byte
	}{
		{"short-form", 2, TagClassApplication, 1, []byte{0x21}},
		{"extended-length-only", 7, TagClassApplication, 6, []byte{0x75, 0x06}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, EncodeTag(c.tagNum, c.class, c.length))
		})
	}
}

func TestTagNumberRoundTrip(t *testing.T) {
	tag := EncodeUnsignedTag(300)
	tagNum, class, length, headerLen, err := DecodeTagNumber(tag)
	require.NoError(t, err)
	assert.Equal(t, uint8(TagUnsignedInt), tagNum)
	assert.Equal(t, TagClassApplication, class)
	assert.Equal(t, 2, length)
	value := DecodeUnsigned(tag[headerLen : headerLen+length])
	assert.Equal(t, uint32(300), value)
}

func TestOpeningClosingTagsRequireContextClass(t *testing.T) {
	// 0x06 and 0x07 length-field values are reserved on application tags;
	// only context tags may use them to bracket constructed data.
	appOpeningLike := []byte{0x06} // tagNum=0, class=application, length=6 (reserved)
	_, _, _, _, err := DecodeTagNumber(appOpeningLike)
	assert.ErrorIs(t, err, ErrMalformedTag)

	ctxOpening := EncodeOpeningTag(3)
	tagNum, class, length, _, err := DecodeTagNumber(ctxOpening)
	require.NoError(t, err)
	assert.Equal(t, uint8(3), tagNum)
	assert.Equal(t, TagClassContext, class)
	assert.Equal(t, TagLengthOpening, length)

	ctxClosing := EncodeClosingTag(3)
	_, _, length, _, err = DecodeTagNumber(ctxClosing)
	require.NoError(t, err)
	assert.Equal(t, TagLengthClosing, length)
}

func TestUnsignedRoundTripAcrossWidths(t *testing.T) {
	for _, v := range []uint32{0, 1, 255, 256, 65535, 65536, 16777215, 16777216, 4294967295} {
		encoded := EncodeUnsigned(v)
		assert.Equal(t, v, DecodeUnsigned(encoded))
	}
}

func TestSignedRoundTripAcrossWidths(t *testing.T) {
	for _, v := range []int32{0, -1, 127, -128, 32767, -32768, 8388607, -8388608, 2147483647, -2147483648} {
		encoded := EncodeSigned(v)
		assert.Equal(t, v, DecodeSigned(encoded))
	}
}

func TestRealRoundTrip(t *testing.T) {
	encoded := EncodeReal(21.5)
	assert.InDelta(t, float32(21.5), DecodeReal(encoded), 0.0001)
}

func TestDoubleRoundTrip(t *testing.T) {
	encoded := EncodeDouble(3.14159265358979)
	assert.InDelta(t, 3.14159265358979, DecodeDouble(encoded), 1e-12)
}

func TestBooleanTagBytes(t *testing.T) {
	assert.Equal(t, []byte{0x11}, EncodeBooleanTag(true))
	assert.Equal(t, []byte{0x10}, EncodeBooleanTag(false))
}

func TestObjectIdentifierRoundTrip(t *testing.T) {
	oid := NewObjectIdentifier(ObjectTypeAnalogInput, 42)
	encoded := oid.Encode()
	assert.Equal(t, oid, DecodeObjectIdentifier(encoded))

	bytes := EncodeObjectIdentifier(oid)
	require.Len(t, bytes, 4)
	assert.Equal(t, oid, DecodeObjectIdentifierFromBytes(bytes))
}

func TestObjectIdentifierPacksInstanceRange(t *testing.T) {
	oid := NewObjectIdentifier(ObjectTypeDevice, 0x3FFFFF)
	encoded := oid.Encode()
	decoded := DecodeObjectIdentifier(encoded)
	assert.Equal(t, uint32(0x3FFFFF), decoded.Instance)
	assert.Equal(t, ObjectTypeDevice, decoded.Type)
}

func TestCharacterStringEncodingDispatch(t *testing.T) {
	t.Run("utf8", func(t *testing.T) {
		encoded := EncodeCharacterString("hello")
		decoded, err := DecodeCharacterString(encoded)
		require.NoError(t, err)
		assert.Equal(t, "hello", decoded)
	})

	t.Run("iso-8859-1", func(t *testing.T) {
		data := append([]byte{CharacterSetISO8859_1}, []byte("cafe")...)
		decoded, err := DecodeCharacterString(data)
		require.NoError(t, err)
		assert.Equal(t, "cafe", decoded)
	})

	t.Run("unsupported-selector-rejected", func(t *testing.T) {
		for _, selector := range []byte{1, 2, 3, 4} { // DBCS/JIS/UCS4/UCS2
			data := append([]byte{selector}, []byte("x")...)
			_, err := DecodeCharacterString(data)
			assert.ErrorIsf(t, err, ErrUnsupportedEncoding, "selector %d should be rejected", selector)
		}
	})

	t.Run("empty-rejected", func(t *testing.T) {
		_, err := DecodeCharacterString(nil)
		assert.Error(t, err)
	})
}

func TestBitStringRoundTrip(t *testing.T) {
	bits := []bool{true, false, true, true, false}
	encoded := EncodeBitString(bits)
	decoded := DecodeBitString(encoded)
	assert.Equal(t, bits, decoded[:len(bits)])
}

func TestDateRoundTrip(t *testing.T) {
	d := Date{Year: 124, Month: 3, Day: 15, Weekday: 5}
	encoded := EncodeDate(d)
	assert.Equal(t, d, DecodeDate(encoded))
}

func TestDateAnyWildcard(t *testing.T) {
	decoded := DecodeDate([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	assert.Equal(t, Date{Year: 0xFF, Month: 0xFF, Day: 0xFF, Weekday: 0xFF}, decoded)
}

func TestTimeRoundTrip(t *testing.T) {
	tm := Time{Hour: 13, Minute: 45, Second: 30, Hundredths: 0}
	encoded := EncodeTime(tm)
	assert.Equal(t, tm, DecodeTime(encoded))
}

func TestStatusFlagsBitOrder(t *testing.T) {
	sf := StatusFlags{InAlarm: true, Fault: false, Overridden: true, OutOfService: false}
	assert.Equal(t, []bool{true, false, true, false}, sf.Bits())
}
