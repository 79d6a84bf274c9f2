package bacnet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBACnetErrorIs(t *testing.T) {
	a := NewBACnetError(ErrorClassObject, ErrorCodeUnknownObject)
	b := NewBACnetError(ErrorClassObject, ErrorCodeUnknownObject)
	c := NewBACnetError(ErrorClassProperty, ErrorCodeUnknownProperty)

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestIsDeviceNotFound(t *testing.T) {
	assert.True(t, IsDeviceNotFound(ErrDeviceNotFound))
	assert.True(t, IsDeviceNotFound(NewBACnetError(ErrorClassDevice, ErrorCodeUnknownDevice)))
	assert.False(t, IsDeviceNotFound(ErrTimeout))
}

func TestIsPropertyNotFound(t *testing.T) {
	assert.True(t, IsPropertyNotFound(ErrPropertyNotFound))
	assert.True(t, IsPropertyNotFound(NewBACnetError(ErrorClassProperty, ErrorCodeUnknownProperty)))
	assert.False(t, IsPropertyNotFound(ErrTimeout))
}

func TestIsAccessDenied(t *testing.T) {
	assert.True(t, IsAccessDenied(NewBACnetError(ErrorClassProperty, ErrorCodeWriteAccessDenied)))
	assert.True(t, IsAccessDenied(NewBACnetError(ErrorClassProperty, ErrorCodeReadAccessDenied)))
	assert.False(t, IsAccessDenied(ErrTimeout))
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(ErrTimeout))
	assert.False(t, IsTimeout(ErrDeviceNotFound))
}

func TestRejectAndAbortErrorStrings(t *testing.T) {
	reject := &RejectError{InvokeID: 5, Reason: RejectReasonUnrecognizedService}
	assert.Contains(t, reject.Error(), "unrecognized-service")

	abort := &AbortError{InvokeID: 6, Server: true, Reason: AbortReasonOutOfResources}
	assert.Contains(t, abort.Error(), "server")
	assert.Contains(t, abort.Error(), "out-of-resources")
}
