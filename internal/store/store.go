// Package store defines the Persistence Interface (spec.md §6): the
// external collaborator boundary the protocol core calls to resolve
// identity, persist events, and record per-device session stats. The
// core never reaches past this interface into a concrete schema.
package store

import (
	"context"
	"time"

	"github.com/khansohel/traffometer-server/pkg/telemetry/event"
)

// Account is a device-owning identity, identified by a string id of at
// most 32 characters (spec.md §3).
type Account struct {
	AccountID    string
	Description  string
	IsActive     bool
	PasswordHash string
}

// Device is the full quota/encoding configuration for one tracked unit,
// identified by the pair (AccountID, DeviceID) and additionally
// look-up-able by UniqueID (spec.md §3).
type Device struct {
	AccountID                string
	DeviceID                 string
	UniqueID                 uint64
	Description              string
	IsActive                 bool
	SupportedEncodings       uint8
	UnitLimitIntervalMinutes int
	MaxAllowedEvents         int

	TotalMaxConn          int
	TotalMaxConnPerMin    int
	LastTotalConnectTime  time.Time
	TotalProfileMask      uint64

	DuplexMaxConn         int
	DuplexMaxConnPerMin   int
	LastDuplexConnectTime time.Time
	DuplexProfileMask     uint64
}

// InsertResult reports the outcome of Persistence.InsertEvent.
type InsertResult int

const (
	InsertOK InsertResult = iota
	InsertEventError
)

// Persistence is the external collaborator the protocol core depends on
// (spec.md §6). Implementations must provide per-row locking for Device
// updates and at-most-once insertion for events keyed on
// (accountId, deviceId, timestamp, statusCode); no in-process locking is
// required of callers (spec.md §5).
type Persistence interface {
	LookupAccount(ctx context.Context, accountID string) (Account, bool, error)
	LookupDevice(ctx context.Context, accountID, deviceID string) (Device, bool, error)
	LookupDeviceByUniqueID(ctx context.Context, uniqueID uint64) (Account, Device, bool, error)

	InsertEvent(ctx context.Context, accountID, deviceID string, ev event.GeoEvent) (InsertResult, error)

	UpdateDeviceSessionStats(ctx context.Context, accountID, deviceID string,
		totalProfileMask uint64, lastTotalConnectTime time.Time,
		duplexProfileMask uint64, lastDuplexConnectTime time.Time) error
}
