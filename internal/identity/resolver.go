// Package identity implements the Identity Resolver (spec.md §4.4):
// translating a device-supplied identifier into an Account and Device
// record via the Persistence Interface.
package identity

import (
	"context"

	"github.com/khansohel/traffometer-server/internal/store"
	"github.com/khansohel/traffometer-server/pkg/telemetry/protocol"
)

// Resolved is the outcome of a successful identity resolution.
type Resolved struct {
	Account store.Account
	Device  store.Device
}

// Failure names which error code the session must emit and that the
// session always moves to CLOSING on either resolution path failing
// (spec.md §4.4).
type Failure struct {
	Code protocol.ErrorCode
}

func (f *Failure) Error() string { return f.Code.String() }

// MaxUniqueID is the largest representable 48-bit unique id; the top 16
// bits of a 64-bit UniqueID must be zero (spec.md §9 Open Question (a):
// reject ids with any of the top 16 bits set rather than trust the
// source's checksum-over-zero-bytes scheme).
const MaxUniqueID = 1<<48 - 1

// ResolveUniqueID resolves the unique-ID form: a 48-bit integer decoded
// from 6 wire bytes. Any of the top 16 bits set, or no matching device,
// yields UNIQUE_ID_INVALID.
func ResolveUniqueID(ctx context.Context, p store.Persistence, uniqueID uint64) (Resolved, error) {
	if uniqueID > MaxUniqueID {
		return Resolved{}, &Failure{Code: protocol.ErrUniqueIDInvalid}
	}
	account, device, ok, err := p.LookupDeviceByUniqueID(ctx, uniqueID)
	if err != nil {
		return Resolved{}, &Failure{Code: protocol.ErrUniqueIDInvalid}
	}
	if !ok {
		return Resolved{}, &Failure{Code: protocol.ErrUniqueIDInvalid}
	}
	return Resolved{Account: account, Device: device}, nil
}

// ResolveAccountDevice resolves the account+device string-pair form.
// A missing or inactive account yields ACCOUNT_INVALID; a missing or
// inactive device yields DEVICE_INVALID (spec.md §4.4).
func ResolveAccountDevice(ctx context.Context, p store.Persistence, accountID, deviceID string) (Resolved, error) {
	account, ok, err := p.LookupAccount(ctx, accountID)
	if err != nil || !ok || !account.IsActive {
		return Resolved{}, &Failure{Code: protocol.ErrAccountInvalid}
	}
	device, ok, err := p.LookupDevice(ctx, accountID, deviceID)
	if err != nil || !ok || !device.IsActive {
		return Resolved{}, &Failure{Code: protocol.ErrDeviceInvalid}
	}
	return Resolved{Account: account, Device: device}, nil
}
