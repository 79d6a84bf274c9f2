package bacnet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateInvokeIDRoundRobins(t *testing.T) {
	c, err := NewClient()
	require.NoError(t, err)

	ch := make(chan *APDU, 1)
	first, err := c.allocateInvokeID(ch)
	require.NoError(t, err)

	c.releaseInvokeID(first)

	second, err := c.allocateInvokeID(ch)
	require.NoError(t, err)
	assert.Equal(t, first+1, second, "cursor advances past the freed slot rather than reusing it immediately")
}

func TestAllocateInvokeIDExhaustion(t *testing.T) {
	c, err := NewClient()
	require.NoError(t, err)

	ch := make(chan *APDU, 1)
	ids := make([]uint8, 0, 255)
	for i := 0; i < 255; i++ {
		id, err := c.allocateInvokeID(ch)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	_, err = c.allocateInvokeID(ch)
	assert.ErrorIs(t, err, ErrResourceBusy)

	// Releasing one id frees capacity again; the scan resumes at the
	// cursor (255, never handed out) before wrapping round to ids[0].
	c.releaseInvokeID(ids[0])
	freed, err := c.allocateInvokeID(ch)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), freed)
}

func TestAllocateInvokeIDRespectsMaxInflight(t *testing.T) {
	c, err := NewClient(WithMaxInflight(4))
	require.NoError(t, err)

	ch := make(chan *APDU, 1)
	for i := 0; i < 4; i++ {
		_, err := c.allocateInvokeID(ch)
		require.NoError(t, err)
	}

	_, err = c.allocateInvokeID(ch)
	assert.ErrorIs(t, err, ErrResourceBusy)
}

func TestManagerGetAndListAfterObserve(t *testing.T) {
	m := NewManager()

	_, ok := m.Get(1)
	assert.False(t, ok)

	dev := &DeviceInfo{ObjectID: NewObjectIdentifier(ObjectTypeDevice, 1)}
	isNew := m.observe(dev)
	assert.True(t, isNew)

	got, ok := m.Get(1)
	require.True(t, ok)
	assert.Equal(t, dev, got)
	assert.Len(t, m.List(), 1)

	isNew = m.observe(dev)
	assert.False(t, isNew, "re-observing the same device is not a new discovery")
}

func TestManagerDiscoverCollectsWithinRangeAndWindow(t *testing.T) {
	m := NewManager()

	send := func(ctx context.Context) error {
		go func() {
			time.Sleep(5 * time.Millisecond)
			m.observe(&DeviceInfo{ObjectID: NewObjectIdentifier(ObjectTypeDevice, 100)})
			m.observe(&DeviceInfo{ObjectID: NewObjectIdentifier(ObjectTypeDevice, 999)})
		}()
		return nil
	}

	low, high := uint32(50), uint32(500)
	devices, err := m.Discover(context.Background(), 50*time.Millisecond, &low, &high, send)
	require.NoError(t, err)

	require.Len(t, devices, 1)
	assert.Equal(t, uint32(100), devices[0].ObjectID.Instance)
}

func TestManagerDiscoverPropagatesSendError(t *testing.T) {
	m := NewManager()
	boom := assert.AnError
	send := func(ctx context.Context) error { return boom }

	_, err := m.Discover(context.Background(), 20*time.Millisecond, nil, nil, send)
	assert.ErrorIs(t, err, boom)
}
