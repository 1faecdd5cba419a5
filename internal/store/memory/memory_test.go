package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khansohel/traffometer-server/internal/store"
	"github.com/khansohel/traffometer-server/pkg/telemetry/event"
)

func TestLookupDeviceByUniqueID(t *testing.T) {
	s := New()
	s.PutAccount(store.Account{AccountID: "acme", IsActive: true})
	s.PutDevice(store.Device{AccountID: "acme", DeviceID: "truck1", UniqueID: 0x123456})

	a, d, ok, err := s.LookupDeviceByUniqueID(context.Background(), 0x123456)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "acme", a.AccountID)
	assert.Equal(t, "truck1", d.DeviceID)
}

func TestInsertEventIsIdempotent(t *testing.T) {
	s := New()
	ev := event.GeoEvent{Timestamp: 1700000000, StatusCode: 1}

	_, err := s.InsertEvent(context.Background(), "acme", "truck1", ev)
	require.NoError(t, err)
	_, err = s.InsertEvent(context.Background(), "acme", "truck1", ev)
	require.NoError(t, err)

	assert.Equal(t, 1, s.EventCount())
}

func TestUpdateDeviceSessionStats(t *testing.T) {
	s := New()
	s.PutDevice(store.Device{AccountID: "acme", DeviceID: "truck1"})

	now := time.Now()
	err := s.UpdateDeviceSessionStats(context.Background(), "acme", "truck1", 0xFF, now, 0x0F, now)
	require.NoError(t, err)

	d, ok, err := s.LookupDevice(context.Background(), "acme", "truck1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(0xFF), d.TotalProfileMask)
	assert.Equal(t, uint64(0x0F), d.DuplexProfileMask)
}
