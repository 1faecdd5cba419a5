package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khansohel/traffometer-server/internal/store"
	"github.com/khansohel/traffometer-server/internal/store/memory"
	"github.com/khansohel/traffometer-server/pkg/telemetry/protocol"
)

func TestResolveUniqueIDSuccess(t *testing.T) {
	s := memory.New()
	s.PutAccount(store.Account{AccountID: "acme", IsActive: true})
	s.PutDevice(store.Device{AccountID: "acme", DeviceID: "truck1", UniqueID: 0xABCDEF, IsActive: true})

	res, err := ResolveUniqueID(context.Background(), s, 0xABCDEF)
	require.NoError(t, err)
	assert.Equal(t, "truck1", res.Device.DeviceID)
}

func TestResolveUniqueIDRejectsTopBitsSet(t *testing.T) {
	s := memory.New()
	_, err := ResolveUniqueID(context.Background(), s, MaxUniqueID+1)
	require.Error(t, err)
	var f *Failure
	assert.ErrorAs(t, err, &f)
	assert.Equal(t, protocol.ErrUniqueIDInvalid, f.Code)
}

func TestResolveUniqueIDMissingDevice(t *testing.T) {
	s := memory.New()
	_, err := ResolveUniqueID(context.Background(), s, 0x1)
	require.Error(t, err)
}

func TestResolveAccountDeviceMissingAccount(t *testing.T) {
	s := memory.New()
	_, err := ResolveAccountDevice(context.Background(), s, "nope", "dev")
	require.Error(t, err)
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, protocol.ErrAccountInvalid, f.Code)
}

func TestResolveAccountDeviceInactiveDevice(t *testing.T) {
	s := memory.New()
	s.PutAccount(store.Account{AccountID: "acme", IsActive: true})
	s.PutDevice(store.Device{AccountID: "acme", DeviceID: "truck1", IsActive: false})

	_, err := ResolveAccountDevice(context.Background(), s, "acme", "truck1")
	require.Error(t, err)
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, protocol.ErrDeviceInvalid, f.Code)
}
