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
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edgeo-scada/bacnet/bacnet/internal/transport"
)

// ConnectionState represents the client connection state
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// pendingSlots is the size of the invoke-id space (one octet).
const pendingSlots = 256

// Client is a BACnet/IP client
type Client struct {
	opts      *clientOptions
	transport *transport.UDPTransport

	state atomic.Int32

	// Pending requests, keyed by invoke-id. invokeCursor is the
	// rolling starting point for the next free-slot scan so ids are
	// reused round-robin instead of piling up at the low end.
	pendingMu    sync.Mutex
	pending      map[uint8]chan *APDU
	invokeCursor uint8

	// manager owns device discovery and the discovered-device cache
	manager *Manager

	metrics *Metrics
	logger  *slog.Logger

	receiverCtx    context.Context
	receiverCancel context.CancelFunc
	receiverDone   chan struct{}
}

// NewClient creates a new BACnet client
func NewClient(opts ...Option) (*Client, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	c := &Client{
		opts:    options,
		pending: make(map[uint8]chan *APDU),
		manager: NewManager(),
		metrics: NewMetrics(),
		logger:  options.logger,
	}

	c.transport = transport.NewUDPTransport(options.localAddress)
	c.transport.SetReadTimeout(options.timeout)
	c.transport.SetWriteTimeout(options.timeout)
	if options.broadcastMode == BroadcastModeDirected && options.directedBroadcastAddr != "" {
		c.transport.SetBroadcastAddress(net.ParseIP(options.directedBroadcastAddr))
	}

	return c, nil
}

// Connect opens the BACnet client connection
func (c *Client) Connect(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return ErrAlreadyConnected
	}

	c.metrics.ConnectAttempts.Inc()

	if err := c.transport.Open(ctx); err != nil {
		c.state.Store(int32(StateDisconnected))
		c.metrics.ConnectFailures.Inc()
		return fmt.Errorf("open transport: %w", err)
	}

	c.receiverCtx, c.receiverCancel = context.WithCancel(context.Background())
	c.receiverDone = make(chan struct{})
	go c.receiver()

	c.state.Store(int32(StateConnected))
	c.metrics.ConnectSuccesses.Inc()

	c.logger.Info("connected", slog.String("local_addr", c.transport.LocalAddr().String()))

	return nil
}

// Close closes the BACnet client connection
func (c *Client) Close() error {
	if c.state.Load() == int32(StateDisconnected) {
		return nil
	}

	c.state.Store(int32(StateDisconnected))
	c.metrics.Disconnects.Inc()

	if c.receiverCancel != nil {
		c.receiverCancel()
		<-c.receiverDone
	}

	c.pendingMu.Lock()
	for _, ch := range c.pending {
		close(ch)
	}
	c.pending = make(map[uint8]chan *APDU)
	c.pendingMu.Unlock()

	if err := c.transport.Close(); err != nil {
		return fmt.Errorf("close transport: %w", err)
	}

	c.logger.Info("disconnected")
	return nil
}

// State returns the current connection state
func (c *Client) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// Metrics returns the client metrics
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// Manager returns the device manager backing this client's discovery cache.
func (c *Client) Manager() *Manager {
	return c.manager
}

// allocateInvokeID scans the pending table starting at the rolling
// cursor for a free slot, so ids cycle through the whole octet range
// instead of climbing in lock-step with a bare counter. Returns
// ErrResourceBusy once opts.maxInflight requests are in flight (at
// most pendingSlots, the 256-id octet space).
func (c *Client) allocateInvokeID(ch chan *APDU) (uint8, error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	limit := int(c.opts.maxInflight)
	if limit == 0 || limit > pendingSlots {
		limit = pendingSlots
	}
	if len(c.pending) >= limit {
		return 0, ErrResourceBusy
	}

	start := c.invokeCursor
	for i := 0; i < pendingSlots; i++ {
		id := start + uint8(i)
		if _, taken := c.pending[id]; !taken {
			c.pending[id] = ch
			c.invokeCursor = id + 1
			return id, nil
		}
	}

	return 0, ErrResourceBusy
}

func (c *Client) releaseInvokeID(id uint8) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// receiver handles incoming packets
func (c *Client) receiver() {
	defer close(c.receiverDone)

	for {
		select {
		case <-c.receiverCtx.Done():
			return
		default:
		}

		data, addr, err := c.transport.ReceiveWithTimeout(100 * time.Millisecond)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if c.transport.IsClosed() {
				return
			}
			c.logger.Debug("receive error", slog.String("error", err.Error()))
			continue
		}

		c.metrics.BytesReceived.Add(int64(len(data)))
		c.metrics.RecordActivity()

		go c.handlePacket(data, addr)
	}
}

// handlePacket processes an incoming packet
func (c *Client) handlePacket(data []byte, addr *net.UDPAddr) {
	bvlc, err := DecodeBVLC(data)
	if err != nil {
		c.logger.Debug("invalid BVLC", slog.String("error", err.Error()))
		return
	}

	npduData := data[4:]
	if bvlc.Function == BVLCForwardedNPDU {
		if len(npduData) < 6 {
			return
		}
		npduData = npduData[6:]
	}

	npdu, offset, err := DecodeNPDU(npduData)
	if err != nil {
		c.logger.Debug("invalid NPDU", slog.String("error", err.Error()))
		return
	}

	if npdu.Control&NPDUControlNetworkLayerMessage != 0 {
		return
	}

	apduData := npduData[offset:]
	apdu, err := DecodeAPDU(apduData)
	if err != nil {
		c.logger.Debug("invalid APDU", slog.String("error", err.Error()))
		return
	}

	switch apdu.Type {
	case PDUTypeUnconfirmedRequest:
		c.handleUnconfirmedRequest(apdu, addr, npdu)

	case PDUTypeSimpleAck, PDUTypeComplexAck:
		c.metrics.ResponsesReceived.Inc()
		c.handleResponse(apdu)

	case PDUTypeError:
		c.metrics.ErrorsReceived.Inc()
		c.handleResponse(apdu)

	case PDUTypeReject:
		c.metrics.RejectsReceived.Inc()
		c.handleResponse(apdu)

	case PDUTypeAbort:
		c.metrics.AbortsReceived.Inc()
		c.handleResponse(apdu)
	}
}

// handleUnconfirmedRequest handles unconfirmed service requests
func (c *Client) handleUnconfirmedRequest(apdu *APDU, addr *net.UDPAddr, npdu *NPDU) {
	switch UnconfirmedServiceChoice(apdu.Service) {
	case ServiceIAm:
		c.handleIAm(apdu.Data, addr, npdu)
	}
}

// handleIAm decodes an I-Am reply and feeds it to the device manager
func (c *Client) handleIAm(data []byte, addr *net.UDPAddr, npdu *NPDU) {
	device, err := decodeIAm(data, addr, npdu)
	if err != nil {
		c.logger.Debug("malformed I-Am", slog.String("error", err.Error()))
		return
	}

	c.metrics.IAmReceived.Inc()
	if c.manager.observe(device) {
		c.metrics.DevicesDiscovered.Inc()
	}

	c.logger.Debug("device discovered",
		slog.Uint64("device_id", uint64(device.ObjectID.Instance)),
		slog.String("address", addr.String()),
		slog.Uint64("vendor_id", uint64(device.VendorID)),
	)
}

// decodeIAm parses an I-Am service request's parameters into a DeviceInfo.
func decodeIAm(data []byte, addr *net.UDPAddr, npdu *NPDU) (*DeviceInfo, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: short I-Am", ErrInvalidAPDU)
	}

	tagNum, _, length, headerLen, err := DecodeTagNumber(data)
	if err != nil || tagNum != uint8(TagObjectID) || length != 4 {
		return nil, fmt.Errorf("%w: expected object-identifier", ErrInvalidAPDU)
	}
	oid := DecodeObjectIdentifier(binary.BigEndian.Uint32(data[headerLen:]))
	if oid.Type != ObjectTypeDevice {
		return nil, fmt.Errorf("%w: I-Am object is not a device", ErrInvalidAPDU)
	}
	offset := headerLen + 4

	if len(data) < offset+1 {
		return nil, fmt.Errorf("%w: missing max-apdu-length", ErrInvalidAPDU)
	}
	_, _, length, headerLen, err = DecodeTagNumber(data[offset:])
	if err != nil || len(data) < offset+headerLen+length {
		return nil, fmt.Errorf("%w: bad max-apdu-length", ErrInvalidAPDU)
	}
	maxAPDU := uint16(DecodeUnsigned(data[offset+headerLen : offset+headerLen+length]))
	offset += headerLen + length

	if len(data) < offset+1 {
		return nil, fmt.Errorf("%w: missing segmentation-supported", ErrInvalidAPDU)
	}
	_, _, length, headerLen, err = DecodeTagNumber(data[offset:])
	if err != nil || len(data) < offset+headerLen+length {
		return nil, fmt.Errorf("%w: bad segmentation-supported", ErrInvalidAPDU)
	}
	segmentation := Segmentation(DecodeUnsigned(data[offset+headerLen : offset+headerLen+length]))
	offset += headerLen + length

	if len(data) < offset+1 {
		return nil, fmt.Errorf("%w: missing vendor-identifier", ErrInvalidAPDU)
	}
	_, _, length, headerLen, err = DecodeTagNumber(data[offset:])
	if err != nil || len(data) < offset+headerLen+length {
		return nil, fmt.Errorf("%w: bad vendor-identifier", ErrInvalidAPDU)
	}
	vendorID := uint16(DecodeUnsigned(data[offset+headerLen : offset+headerLen+length]))

	var deviceAddr Address
	if npdu.Control&NPDUControlSourceSpecifier != 0 {
		deviceAddr = Address{Net: npdu.SrcNet, Addr: npdu.SrcAddr}
	} else {
		deviceAddr = Address{Net: 0, Addr: addr.IP.To4()}
	}

	return &DeviceInfo{
		ObjectID:      oid,
		Address:       deviceAddr,
		MaxAPDULength: maxAPDU,
		Segmentation:  segmentation,
		VendorID:      vendorID,
	}, nil
}

// handleResponse handles a response to a pending request
func (c *Client) handleResponse(apdu *APDU) {
	c.pendingMu.Lock()
	ch, ok := c.pending[apdu.InvokeID]
	c.pendingMu.Unlock()

	if ok {
		select {
		case ch <- apdu:
		default:
		}
	}
}

// sendRequest sends a confirmed request and waits for its response
func (c *Client) sendRequest(ctx context.Context, addr *net.UDPAddr, service ConfirmedServiceChoice, data []byte) (*APDU, error) {
	if c.State() != StateConnected {
		return nil, ErrNotConnected
	}

	respCh := make(chan *APDU, 1)
	invokeID, err := c.allocateInvokeID(respCh)
	if err != nil {
		return nil, err
	}
	defer c.releaseInvokeID(invokeID)

	apdu := EncodeConfirmedRequest(invokeID, service, data, 0, 5)
	npdu := EncodeNPDU(true, NPDUControlPriorityNormal)
	bvlc := EncodeBVLC(BVLCOriginalUnicastNPDU, len(npdu)+len(apdu))

	packet := make([]byte, 0, len(bvlc)+len(npdu)+len(apdu))
	packet = append(packet, bvlc...)
	packet = append(packet, npdu...)
	packet = append(packet, apdu...)

	start := time.Now()
	c.metrics.RequestsSent.Inc()
	c.metrics.ActiveRequests.Inc()
	defer c.metrics.ActiveRequests.Dec()

	if err := c.transport.Send(ctx, addr, packet); err != nil {
		c.metrics.RequestsFailed.Inc()
		return nil, fmt.Errorf("send request: %w", err)
	}

	c.metrics.BytesSent.Add(int64(len(packet)))

	select {
	case <-ctx.Done():
		c.metrics.RequestsTimedOut.Inc()
		return nil, ErrTimeout

	case resp, ok := <-respCh:
		c.metrics.RequestLatency.Record(time.Since(start))

		if !ok {
			return nil, ErrConnectionClosed
		}

		switch resp.Type {
		case PDUTypeSimpleAck, PDUTypeComplexAck:
			c.metrics.RequestsSucceeded.Inc()
			return resp, nil

		case PDUTypeError:
			c.metrics.RequestsFailed.Inc()
			return nil, c.decodeError(resp.Data)

		case PDUTypeReject:
			c.metrics.RequestsFailed.Inc()
			return nil, &RejectError{InvokeID: resp.InvokeID, Reason: RejectReason(resp.Service)}

		case PDUTypeAbort:
			c.metrics.RequestsFailed.Inc()
			return nil, &AbortError{InvokeID: resp.InvokeID, Reason: AbortReason(resp.Service)}

		default:
			return nil, fmt.Errorf("%w: unexpected PDU type %02x", ErrInvalidResponse, resp.Type)
		}
	}
}

// decodeError decodes a BACnet error response
func (c *Client) decodeError(data []byte) error {
	if len(data) < 2 {
		return ErrInvalidResponse
	}

	_, _, length, headerLen, err := DecodeTagNumber(data)
	if err != nil {
		return ErrInvalidResponse
	}
	errorClass := ErrorClass(DecodeUnsigned(data[headerLen : headerLen+length]))
	offset := headerLen + length

	_, _, length, headerLen, err = DecodeTagNumber(data[offset:])
	if err != nil {
		return ErrInvalidResponse
	}
	errorCode := ErrorCode(DecodeUnsigned(data[offset+headerLen : offset+headerLen+length]))

	return NewBACnetError(errorClass, errorCode)
}

// sendUnconfirmedRequest sends an unconfirmed request, optionally broadcast
func (c *Client) sendUnconfirmedRequest(ctx context.Context, addr *net.UDPAddr, broadcast bool, service UnconfirmedServiceChoice, data []byte) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}

	apdu := EncodeUnconfirmedRequest(service, data)
	npdu := EncodeNPDU(false, NPDUControlPriorityNormal)

	bvlcFunc := BVLCOriginalUnicastNPDU
	if broadcast {
		bvlcFunc = BVLCOriginalBroadcastNPDU
	}
	bvlc := EncodeBVLC(bvlcFunc, len(npdu)+len(apdu))

	packet := make([]byte, 0, len(bvlc)+len(npdu)+len(apdu))
	packet = append(packet, bvlc...)
	packet = append(packet, npdu...)
	packet = append(packet, apdu...)

	c.metrics.RequestsSent.Inc()

	var err error
	if broadcast {
		err = c.transport.Broadcast(ctx, DefaultPort, packet)
	} else {
		err = c.transport.Send(ctx, addr, packet)
	}

	if err != nil {
		c.metrics.RequestsFailed.Inc()
		return fmt.Errorf("send unconfirmed request: %w", err)
	}

	c.metrics.BytesSent.Add(int64(len(packet)))
	c.metrics.RequestsSucceeded.Inc()

	return nil
}

// WhoIs discovers devices by broadcasting a Who-Is request and collecting
// I-Am responses for the configured window. Only replies observed during
// this call's window are returned, deduplicated by device instance; this
// supersedes any prior cached devices the manager may already know about.
func (c *Client) WhoIs(ctx context.Context, opts ...DiscoverOption) ([]*DeviceInfo, error) {
	options := defaultDiscoverOptions()
	for _, opt := range opts {
		opt(options)
	}

	var data []byte
	if options.LowLimit != nil && options.HighLimit != nil {
		data = append(data, EncodeContextUnsigned(0, *options.LowLimit)...)
		data = append(data, EncodeContextUnsigned(1, *options.HighLimit)...)
	}

	send := func(ctx context.Context) error {
		if err := c.sendUnconfirmedRequest(ctx, nil, true, ServiceWhoIs, data); err != nil {
			return err
		}
		c.metrics.WhoIsSent.Inc()
		return nil
	}

	return c.manager.Discover(ctx, options.Timeout, options.LowLimit, options.HighLimit, send)
}

// GetDevice returns information about a previously discovered device
func (c *Client) GetDevice(deviceID uint32) (*DeviceInfo, bool) {
	return c.manager.Get(deviceID)
}

// resolveDevice resolves a device ID to its transport address
func (c *Client) resolveDevice(ctx context.Context, deviceID uint32) (*net.UDPAddr, error) {
	dev, ok := c.manager.Get(deviceID)
	if !ok {
		_, err := c.WhoIs(ctx, WithDeviceRange(deviceID, deviceID), WithDiscoveryTimeout(2*time.Second))
		if err != nil {
			return nil, err
		}

		dev, ok = c.manager.Get(deviceID)
		if !ok {
			return nil, ErrDeviceNotFound
		}
	}

	switch len(dev.Address.Addr) {
	case 4:
		return &net.UDPAddr{IP: net.IP(dev.Address.Addr), Port: DefaultPort}, nil
	case 6:
		return &net.UDPAddr{
			IP:   net.IP(dev.Address.Addr[:4]),
			Port: int(binary.BigEndian.Uint16(dev.Address.Addr[4:])),
		}, nil
	default:
		return nil, fmt.Errorf("invalid device address format")
	}
}

// ReadProperty reads a property from a BACnet object
func (c *Client) ReadProperty(ctx context.Context, deviceID uint32, objectID ObjectIdentifier, propertyID PropertyIdentifier, opts ...ReadOption) (interface{}, error) {
	options := &ReadOptions{}
	for _, opt := range opts {
		opt(options)
	}

	addr, err := c.resolveDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	data := make([]byte, 0, 16)
	data = append(data, EncodeContextObjectIdentifier(0, objectID)...)
	data = append(data, EncodeContextEnumerated(1, uint32(propertyID))...)
	if options.ArrayIndex != nil {
		data = append(data, EncodeContextUnsigned(2, *options.ArrayIndex)...)
	}

	resp, err := c.sendRequest(ctx, addr, ServiceReadProperty, data)
	if err != nil {
		return nil, err
	}

	return c.decodeReadPropertyResponse(resp.Data)
}

// decodeReadPropertyResponse decodes a ReadProperty-Ack's parameters
func (c *Client) decodeReadPropertyResponse(data []byte) (interface{}, error) {
	if len(data) < 8 {
		return nil, ErrInvalidResponse
	}

	offset := 0

	tagNum, class, length, headerLen, err := DecodeTagNumber(data[offset:])
	if err != nil || tagNum != 0 || class != TagClassContext {
		return nil, ErrInvalidResponse
	}
	offset += headerLen + length

	tagNum, class, length, headerLen, err = DecodeTagNumber(data[offset:])
	if err != nil || tagNum != 1 || class != TagClassContext {
		return nil, ErrInvalidResponse
	}
	offset += headerLen + length

	if len(data) > offset {
		peekTag, peekClass, peekLength, peekHeaderLen, peekErr := DecodeTagNumber(data[offset:])
		if peekErr == nil && peekTag == 2 && peekClass == TagClassContext {
			offset += peekHeaderLen + peekLength
		}
	}

	if len(data) <= offset {
		return nil, ErrInvalidResponse
	}
	tagNum, class, length, _, err = DecodeTagNumber(data[offset:])
	if err != nil || tagNum != 3 || class != TagClassContext || length != TagLengthOpening {
		return nil, ErrInvalidResponse
	}
	offset++

	return c.decodePropertyValue(data[offset:])
}

// decodePropertyValue decodes a single application-tagged property value
func (c *Client) decodePropertyValue(data []byte) (interface{}, error) {
	if len(data) < 1 {
		return nil, ErrInvalidResponse
	}

	tagNum, class, length, headerLen, err := DecodeTagNumber(data)
	if err != nil {
		return nil, err
	}

	if length == TagLengthClosing {
		return nil, nil
	}

	if class != TagClassApplication {
		return data[headerLen : headerLen+length], nil
	}

	valueData := data[headerLen : headerLen+length]

	switch ApplicationTag(tagNum) {
	case TagNull:
		return nil, nil
	case TagBoolean:
		return length == 1, nil
	case TagUnsignedInt:
		return DecodeUnsigned(valueData), nil
	case TagSignedInt:
		return DecodeSigned(valueData), nil
	case TagReal:
		return DecodeReal(valueData), nil
	case TagDouble:
		return DecodeDouble(valueData), nil
	case TagOctetString:
		return valueData, nil
	case TagCharacterString:
		return DecodeCharacterString(valueData)
	case TagBitString:
		return DecodeBitString(valueData), nil
	case TagEnumerated:
		return DecodeUnsigned(valueData), nil
	case TagDate:
		return DecodeDate(valueData), nil
	case TagTime:
		return DecodeTime(valueData), nil
	case TagObjectID:
		return DecodeObjectIdentifier(binary.BigEndian.Uint32(valueData)), nil
	default:
		return valueData, nil
	}
}

// WriteProperty writes a property to a BACnet object
func (c *Client) WriteProperty(ctx context.Context, deviceID uint32, objectID ObjectIdentifier, propertyID PropertyIdentifier, value interface{}, opts ...WriteOption) error {
	options := &WriteOptions{}
	for _, opt := range opts {
		opt(options)
	}

	addr, err := c.resolveDevice(ctx, deviceID)
	if err != nil {
		return err
	}

	data := make([]byte, 0, 32)
	data = append(data, EncodeContextObjectIdentifier(0, objectID)...)
	data = append(data, EncodeContextEnumerated(1, uint32(propertyID))...)

	if options.ArrayIndex != nil {
		data = append(data, EncodeContextUnsigned(2, *options.ArrayIndex)...)
	}

	data = append(data, EncodeOpeningTag(3)...)
	encodedValue, err := c.encodePropertyValue(value)
	if err != nil {
		return fmt.Errorf("encode value: %w", err)
	}
	data = append(data, encodedValue...)
	data = append(data, EncodeClosingTag(3)...)

	if options.Priority != nil {
		data = append(data, EncodeContextUnsigned(4, uint32(*options.Priority))...)
	}

	_, err = c.sendRequest(ctx, addr, ServiceWriteProperty, data)
	return err
}

// encodePropertyValue encodes a Go value as an application-tagged primitive
func (c *Client) encodePropertyValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return []byte{0x00}, nil
	case bool:
		return EncodeBooleanTag(v), nil
	case int:
		if v >= 0 {
			return EncodeUnsignedTag(uint32(v)), nil
		}
		data := EncodeSigned(int32(v))
		return append(EncodeTag(uint8(TagSignedInt), TagClassApplication, len(data)), data...), nil
	case int32:
		if v >= 0 {
			return EncodeUnsignedTag(uint32(v)), nil
		}
		data := EncodeSigned(v)
		return append(EncodeTag(uint8(TagSignedInt), TagClassApplication, len(data)), data...), nil
	case uint32:
		return EncodeUnsignedTag(v), nil
	case float32:
		return EncodeRealTag(v), nil
	case float64:
		data := EncodeDouble(v)
		return append(EncodeTag(uint8(TagDouble), TagClassApplication, len(data)), data...), nil
	case string:
		return EncodeCharacterStringTag(v), nil
	case ObjectIdentifier:
		return EncodeObjectIdentifierTag(v), nil
	default:
		return nil, fmt.Errorf("unsupported value type: %T", value)
	}
}

// GetObjectList retrieves the list of objects from a device
func (c *Client) GetObjectList(ctx context.Context, deviceID uint32) ([]ObjectIdentifier, error) {
	lengthVal, err := c.ReadProperty(ctx, deviceID, NewObjectIdentifier(ObjectTypeDevice, deviceID), PropertyObjectList, WithArrayIndex(0))
	if err != nil {
		return nil, err
	}

	length, ok := lengthVal.(uint32)
	if !ok {
		return nil, fmt.Errorf("unexpected object-list length type: %T", lengthVal)
	}

	objects := make([]ObjectIdentifier, 0, length)
	for i := uint32(1); i <= length; i++ {
		val, err := c.ReadProperty(ctx, deviceID, NewObjectIdentifier(ObjectTypeDevice, deviceID), PropertyObjectList, WithArrayIndex(i))
		if err != nil {
			continue
		}
		if oid, ok := val.(ObjectIdentifier); ok {
			objects = append(objects, oid)
		}
	}

	return objects, nil
}
