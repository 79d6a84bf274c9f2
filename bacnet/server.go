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
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/edgeo-scada/bacnet/bacnet/internal/transport"
)

// Server hosts a local object model and answers Who-Is, ReadProperty,
// and WriteProperty requests from the network. It is the passive half
// of the stack: Client originates requests, Server answers them -- "a
// service is a message, not an actor", so buildConfirmedReply,
// serveReadProperty and serveWriteProperty are plain
// request-in/response-out transforms over a *Registry, while serveWhoIs
// and serveConfirmedRequest send the resulting reply on the transport.
type Server struct {
	opts      *clientOptions
	transport *transport.UDPTransport
	registry  *Registry
	device    *DeviceObject
	metrics   *Metrics
	logger    *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewServer creates a server hosting deviceID with the given registry.
// The registry must already contain a DeviceObject for deviceID; NewServer
// does not create one implicitly, since callers may want to configure
// vendor/model fields before the server starts answering Who-Is.
func NewServer(registry *Registry, deviceID uint32, opts ...Option) (*Server, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	obj, ok := registry.Get(ObjectIdentifier{Type: ObjectTypeDevice, Instance: deviceID})
	if !ok {
		return nil, fmt.Errorf("%w: device object %d not in registry", ErrUnknownObject, deviceID)
	}
	device, ok := obj.(*DeviceObject)
	if !ok {
		return nil, fmt.Errorf("bacnet: object %d is not a DeviceObject", deviceID)
	}

	t := transport.NewUDPTransport(options.localAddress)
	if options.broadcastMode == BroadcastModeDirected && options.directedBroadcastAddr != "" {
		t.SetBroadcastAddress(net.ParseIP(options.directedBroadcastAddr))
	}

	return &Server{
		opts:      options,
		transport: t,
		registry:  registry,
		device:    device,
		metrics:   NewMetrics(),
		logger:    options.logger,
	}, nil
}

// Registry returns the object store this server dispatches against.
func (s *Server) Registry() *Registry { return s.registry }

// Metrics returns the server's metrics.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Serve opens the transport and processes requests until ctx is
// cancelled or Stop is called.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.transport.Open(ctx); err != nil {
		return fmt.Errorf("open transport: %w", err)
	}

	serveCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	s.logger.Info("serving", slog.String("local_addr", s.transport.LocalAddr().String()),
		slog.Uint64("device_id", uint64(s.device.Identity().Instance)))

	defer close(s.done)
	for {
		select {
		case <-serveCtx.Done():
			return nil
		default:
		}

		data, addr, err := s.transport.ReceiveWithTimeout(200 * time.Millisecond)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if s.transport.IsClosed() {
				return nil
			}
			s.logger.Debug("receive error", slog.String("error", err.Error()))
			continue
		}

		s.metrics.BytesReceived.Add(int64(len(data)))
		go s.handlePacket(serveCtx, data, addr)
	}
}

// Stop closes the transport and waits for Serve to return.
func (s *Server) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	err := s.transport.Close()
	if s.done != nil {
		<-s.done
	}
	return err
}

func (s *Server) handlePacket(ctx context.Context, data []byte, addr *net.UDPAddr) {
	if _, err := DecodeBVLC(data); err != nil {
		s.logger.Debug("invalid BVLC", slog.String("error", err.Error()))
		return
	}

	npdu, offset, err := DecodeNPDU(data[4:])
	if err != nil {
		s.logger.Debug("invalid NPDU", slog.String("error", err.Error()))
		return
	}
	if npdu.Control&NPDUControlNetworkLayerMessage != 0 {
		return
	}

	apdu, err := DecodeAPDU(data[4:][offset:])
	if err != nil {
		s.logger.Debug("invalid APDU", slog.String("error", err.Error()))
		return
	}

	switch apdu.Type {
	case PDUTypeUnconfirmedRequest:
		if UnconfirmedServiceChoice(apdu.Service) == ServiceWhoIs {
			s.serveWhoIs(ctx, apdu.Data, addr)
		}
	case PDUTypeConfirmedRequest:
		s.serveConfirmedRequest(ctx, apdu, addr)
	}
}

// serveWhoIs answers a Who-Is unconfirmed request with an I-Am if this
// server's device ID falls within the (optional) requested range.
func (s *Server) serveWhoIs(ctx context.Context, data []byte, addr *net.UDPAddr) {
	instance := s.device.Identity().Instance

	if len(data) > 0 {
		low, high, ok := decodeWhoIsRange(data)
		if ok && (instance < low || instance > high) {
			return
		}
	}

	s.metrics.WhoIsSent.Inc()
	reply := s.buildIAm()
	npdu := EncodeNPDU(false, NPDUControlPriorityNormal)
	unconfirmed := EncodeUnconfirmedRequest(ServiceIAm, reply)
	bvlc := EncodeBVLC(BVLCOriginalUnicastNPDU, len(npdu)+len(unconfirmed))

	packet := make([]byte, 0, len(bvlc)+len(npdu)+len(unconfirmed))
	packet = append(packet, bvlc...)
	packet = append(packet, npdu...)
	packet = append(packet, unconfirmed...)

	if err := s.transport.Send(ctx, addr, packet); err != nil {
		s.logger.Debug("send I-Am failed", slog.String("error", err.Error()))
	}
}

func decodeWhoIsRange(data []byte) (low, high uint32, ok bool) {
	tagNum, class, length, headerLen, err := DecodeTagNumber(data)
	if err != nil || tagNum != 0 || class != TagClassContext {
		return 0, 0, false
	}
	low = DecodeUnsigned(data[headerLen : headerLen+length])
	offset := headerLen + length

	if len(data) <= offset {
		return 0, 0, false
	}
	tagNum, class, length, headerLen, err = DecodeTagNumber(data[offset:])
	if err != nil || tagNum != 1 || class != TagClassContext {
		return 0, 0, false
	}
	high = DecodeUnsigned(data[offset+headerLen : offset+headerLen+length])
	return low, high, true
}

func (s *Server) buildIAm() []byte {
	maxAPDU, _ := s.device.Read(PropertyMaxAPDULengthAccepted, nil)
	seg, _ := s.device.Read(PropertySegmentationSupported, nil)
	vendor, _ := s.device.Read(PropertyVendorIdentifier, nil)

	data := make([]byte, 0, 21)
	data = append(data, EncodeObjectIdentifierTag(s.device.Identity())...)
	data = append(data, EncodeUnsignedTag(maxAPDU.Uint)...)
	data = append(data, EncodeEnumeratedTag(seg.Uint)...)
	data = append(data, EncodeUnsignedTag(vendor.Uint)...)
	return data
}

// buildConfirmedReply dispatches a confirmed request to the matching
// service handler and returns the Complex-Ack/Simple-Ack/Error/Reject
// APDU bytes to send back. Segmented requests are rejected outright --
// this stack never reassembles segments.
func (s *Server) buildConfirmedReply(apdu *APDU) []byte {
	if apdu.Segmented {
		return EncodeErrorAPDU(apdu.InvokeID, ConfirmedServiceChoice(apdu.Service),
			ErrorClassServices, ErrorCodeOptionalFunctionalityNotSupported)
	}

	switch ConfirmedServiceChoice(apdu.Service) {
	case ServiceReadProperty:
		return s.serveReadProperty(apdu.InvokeID, apdu.Data)
	case ServiceWriteProperty:
		return s.serveWriteProperty(apdu.InvokeID, apdu.Data)
	default:
		return EncodeRejectAPDU(apdu.InvokeID, RejectReasonUnrecognizedService)
	}
}

// serveConfirmedRequest dispatches ReadProperty/WriteProperty confirmed
// requests, sending back a Complex-Ack, Simple-Ack, or Error/Reject.
func (s *Server) serveConfirmedRequest(ctx context.Context, apdu *APDU, addr *net.UDPAddr) {
	reply := s.buildConfirmedReply(apdu)

	npdu := EncodeNPDU(false, NPDUControlPriorityNormal)
	bvlc := EncodeBVLC(BVLCOriginalUnicastNPDU, len(npdu)+len(reply))

	packet := make([]byte, 0, len(bvlc)+len(npdu)+len(reply))
	packet = append(packet, bvlc...)
	packet = append(packet, npdu...)
	packet = append(packet, reply...)

	if err := s.transport.Send(ctx, addr, packet); err != nil {
		s.logger.Debug("send reply failed", slog.String("error", err.Error()))
	}
}

// serveReadProperty decodes a ReadProperty request, looks up the
// object/property in the registry, and returns the Complex-Ack or
// Error APDU bytes to send back.
func (s *Server) serveReadProperty(invokeID uint8, data []byte) []byte {
	objID, propID, index, err := decodeReadPropertyRequest(data)
	if err != nil {
		return EncodeRejectAPDU(invokeID, RejectReasonInvalidTag)
	}

	obj, ok := s.registry.Get(objID)
	if !ok {
		return EncodeErrorAPDU(invokeID, ServiceReadProperty, ErrorClassObject, ErrorCodeUnknownObject)
	}

	value, err := obj.Read(propID, index)
	if err != nil {
		return EncodeErrorAPDU(invokeID, ServiceReadProperty, ErrorClassProperty, ErrorCodeUnknownProperty)
	}

	ack := make([]byte, 0, 24)
	ack = append(ack, EncodeContextObjectIdentifier(0, objID)...)
	ack = append(ack, EncodeContextEnumerated(1, uint32(propID))...)
	if index != nil {
		ack = append(ack, EncodeContextUnsigned(2, *index)...)
	}
	ack = append(ack, EncodeOpeningTag(3)...)
	ack = append(ack, value.Encode()...)
	ack = append(ack, EncodeClosingTag(3)...)

	return EncodeComplexAck(invokeID, ServiceReadProperty, ack)
}

func decodeReadPropertyRequest(data []byte) (ObjectIdentifier, PropertyIdentifier, *uint32, error) {
	if len(data) < 4 {
		return ObjectIdentifier{}, 0, nil, ErrInvalidAPDU
	}

	tagNum, class, length, headerLen, err := DecodeTagNumber(data)
	if err != nil || tagNum != 0 || class != TagClassContext || length != 4 {
		return ObjectIdentifier{}, 0, nil, fmt.Errorf("%w: expected object-identifier", ErrInvalidAPDU)
	}
	objID := DecodeObjectIdentifier(binary.BigEndian.Uint32(data[headerLen : headerLen+length]))
	offset := headerLen + length

	tagNum, class, length, headerLen, err = DecodeTagNumber(data[offset:])
	if err != nil || tagNum != 1 || class != TagClassContext {
		return ObjectIdentifier{}, 0, nil, fmt.Errorf("%w: expected property-identifier", ErrInvalidAPDU)
	}
	propID := PropertyIdentifier(DecodeUnsigned(data[offset+headerLen : offset+headerLen+length]))
	offset += headerLen + length

	var index *uint32
	if len(data) > offset {
		tagNum, class, length, headerLen, err = DecodeTagNumber(data[offset:])
		if err == nil && tagNum == 2 && class == TagClassContext {
			v := DecodeUnsigned(data[offset+headerLen : offset+headerLen+length])
			index = &v
		}
	}

	return objID, propID, index, nil
}

// serveWriteProperty decodes a WriteProperty request, applies it to the
// registry, and returns the Simple-Ack or Error APDU bytes to send back.
func (s *Server) serveWriteProperty(invokeID uint8, data []byte) []byte {
	objID, propID, index, value, priority, err := decodeWritePropertyRequest(data)
	if err != nil {
		return EncodeRejectAPDU(invokeID, RejectReasonInvalidTag)
	}

	obj, ok := s.registry.Get(objID)
	if !ok {
		return EncodeErrorAPDU(invokeID, ServiceWriteProperty, ErrorClassObject, ErrorCodeUnknownObject)
	}

	if err := obj.Write(propID, value, index, priority); err != nil {
		if errors.Is(err, ErrReadOnlyProperty) {
			return EncodeErrorAPDU(invokeID, ServiceWriteProperty, ErrorClassProperty, ErrorCodeWriteAccessDenied)
		}
		if errors.Is(err, ErrUnknownProperty) {
			return EncodeErrorAPDU(invokeID, ServiceWriteProperty, ErrorClassProperty, ErrorCodeUnknownProperty)
		}
		var bacnetErr *BACnetError
		if errors.As(err, &bacnetErr) {
			return EncodeErrorAPDU(invokeID, ServiceWriteProperty, bacnetErr.Class, bacnetErr.Code)
		}
		return EncodeErrorAPDU(invokeID, ServiceWriteProperty, ErrorClassProperty, ErrorCodeInvalidDataType)
	}

	return EncodeSimpleAck(invokeID, ServiceWriteProperty)
}

func decodeWritePropertyRequest(data []byte) (ObjectIdentifier, PropertyIdentifier, *uint32, Value, *uint8, error) {
	if len(data) < 4 {
		return ObjectIdentifier{}, 0, nil, Value{}, nil, ErrInvalidAPDU
	}

	tagNum, class, length, headerLen, err := DecodeTagNumber(data)
	if err != nil || tagNum != 0 || class != TagClassContext || length != 4 {
		return ObjectIdentifier{}, 0, nil, Value{}, nil, fmt.Errorf("%w: expected object-identifier", ErrInvalidAPDU)
	}
	objID := DecodeObjectIdentifier(binary.BigEndian.Uint32(data[headerLen : headerLen+length]))
	offset := headerLen + length

	tagNum, class, length, headerLen, err = DecodeTagNumber(data[offset:])
	if err != nil || tagNum != 1 || class != TagClassContext {
		return ObjectIdentifier{}, 0, nil, Value{}, nil, fmt.Errorf("%w: expected property-identifier", ErrInvalidAPDU)
	}
	propID := PropertyIdentifier(DecodeUnsigned(data[offset+headerLen : offset+headerLen+length]))
	offset += headerLen + length

	var index *uint32
	tagNum, class, length, headerLen, err = DecodeTagNumber(data[offset:])
	if err == nil && tagNum == 2 && class == TagClassContext {
		v := DecodeUnsigned(data[offset+headerLen : offset+headerLen+length])
		index = &v
		offset += headerLen + length
		tagNum, class, length, headerLen, err = DecodeTagNumber(data[offset:])
	}

	if err != nil || tagNum != 3 || class != TagClassContext || length != TagLengthOpening {
		return ObjectIdentifier{}, 0, nil, Value{}, nil, fmt.Errorf("%w: expected value opening tag", ErrInvalidAPDU)
	}
	offset++

	value, consumed, err := decodeApplicationValue(data[offset:])
	if err != nil {
		return ObjectIdentifier{}, 0, nil, Value{}, nil, err
	}
	offset += consumed

	if len(data) <= offset {
		return ObjectIdentifier{}, 0, nil, Value{}, nil, fmt.Errorf("%w: missing value closing tag", ErrInvalidAPDU)
	}
	_, class, length, _, err = DecodeTagNumber(data[offset:])
	if err != nil || class != TagClassContext || length != TagLengthClosing {
		return ObjectIdentifier{}, 0, nil, Value{}, nil, fmt.Errorf("%w: expected value closing tag", ErrInvalidAPDU)
	}
	offset++

	var priority *uint8
	if len(data) > offset {
		tagNum, class, length, headerLen, err = DecodeTagNumber(data[offset:])
		if err == nil && tagNum == 4 && class == TagClassContext {
			p := uint8(DecodeUnsigned(data[offset+headerLen : offset+headerLen+length]))
			priority = &p
		}
	}

	return objID, propID, index, value, priority, nil
}

// decodeApplicationValue decodes a single application-tagged primitive
// into a Value, returning the number of bytes consumed.
func decodeApplicationValue(data []byte) (Value, int, error) {
	if len(data) < 1 {
		return Value{}, 0, ErrInvalidAPDU
	}

	tagNum, class, length, headerLen, err := DecodeTagNumber(data)
	if err != nil || class != TagClassApplication {
		return Value{}, 0, fmt.Errorf("%w: expected application-tagged value", ErrInvalidAPDU)
	}
	if ApplicationTag(tagNum) == TagBoolean {
		// An application boolean carries its value in the length field;
		// no content octet follows the tag.
		return BoolValue(length == 1), headerLen, nil
	}
	valueData := data[headerLen : headerLen+length]
	consumed := headerLen + length

	switch ApplicationTag(tagNum) {
	case TagNull:
		return NullValue(), consumed, nil
	case TagBoolean:
		return BoolValue(length == 1), consumed, nil
	case TagUnsignedInt:
		return UnsignedValue(DecodeUnsigned(valueData)), consumed, nil
	case TagSignedInt:
		return SignedValue(DecodeSigned(valueData)), consumed, nil
	case TagReal:
		return RealValue(DecodeReal(valueData)), consumed, nil
	case TagDouble:
		return DoubleValue(DecodeDouble(valueData)), consumed, nil
	case TagEnumerated:
		return EnumeratedValue(DecodeUnsigned(valueData)), consumed, nil
	case TagCharacterString:
		str, err := DecodeCharacterString(valueData)
		if err != nil {
			return Value{}, 0, err
		}
		return StringValue(str), consumed, nil
	case TagBitString:
		return BitStringValue(DecodeBitString(valueData)), consumed, nil
	case TagDate:
		return DateValue(DecodeDate(valueData)), consumed, nil
	case TagTime:
		return TimeValue(DecodeTime(valueData)), consumed, nil
	case TagObjectID:
		return ObjectIDValue(DecodeObjectIdentifier(binary.BigEndian.Uint32(valueData))), consumed, nil
	case TagOctetString:
		return OctetStringValue(valueData), consumed, nil
	default:
		return Value{}, 0, fmt.Errorf("%w: unsupported application tag %d", ErrInvalidAPDU, tagNum)
	}
}
