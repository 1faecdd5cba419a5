// Package memory implements an in-process store.Persistence used by unit
// and integration tests, and by example wiring that does not need the
// SQLite-backed reference store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/khansohel/traffometer-server/internal/store"
	"github.com/khansohel/traffometer-server/pkg/telemetry/event"
)

type eventKey struct {
	accountID  string
	deviceID   string
	timestamp  uint64
	statusCode uint16
}

// Store is a mutex-guarded in-memory Persistence implementation.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]store.Account
	devices  map[string]store.Device // keyed by accountID+"/"+deviceID
	byUnique map[uint64]string       // uniqueID -> accountID+"/"+deviceID
	events   map[eventKey]event.GeoEvent
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		accounts: make(map[string]store.Account),
		devices:  make(map[string]store.Device),
		byUnique: make(map[uint64]string),
		events:   make(map[eventKey]event.GeoEvent),
	}
}

func deviceKey(accountID, deviceID string) string {
	return accountID + "/" + deviceID
}

// PutAccount seeds or replaces an account record.
func (s *Store) PutAccount(a store.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.AccountID] = a
}

// PutDevice seeds or replaces a device record.
func (s *Store) PutDevice(d store.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := deviceKey(d.AccountID, d.DeviceID)
	s.devices[key] = d
	if d.UniqueID != 0 {
		s.byUnique[d.UniqueID] = key
	}
}

func (s *Store) LookupAccount(_ context.Context, accountID string) (store.Account, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountID]
	return a, ok, nil
}

func (s *Store) LookupDevice(_ context.Context, accountID, deviceID string) (store.Device, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[deviceKey(accountID, deviceID)]
	return d, ok, nil
}

func (s *Store) LookupDeviceByUniqueID(_ context.Context, uniqueID uint64) (store.Account, store.Device, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.byUnique[uniqueID]
	if !ok {
		return store.Account{}, store.Device{}, false, nil
	}
	d := s.devices[key]
	a, ok := s.accounts[d.AccountID]
	if !ok {
		return store.Account{}, store.Device{}, false, nil
	}
	return a, d, true, nil
}

func (s *Store) InsertEvent(_ context.Context, accountID, deviceID string, ev event.GeoEvent) (store.InsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := eventKey{accountID: accountID, deviceID: deviceID, timestamp: ev.Timestamp, statusCode: ev.StatusCode}
	if _, exists := s.events[key]; exists {
		return store.InsertOK, nil // idempotent: composite key already recorded
	}
	s.events[key] = ev
	return store.InsertOK, nil
}

// EventCount returns how many distinct events are stored, for assertions.
func (s *Store) EventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func (s *Store) UpdateDeviceSessionStats(_ context.Context, accountID, deviceID string,
	totalProfileMask uint64, lastTotalConnectTime time.Time,
	duplexProfileMask uint64, lastDuplexConnectTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := deviceKey(accountID, deviceID)
	d, ok := s.devices[key]
	if !ok {
		return nil
	}
	d.TotalProfileMask = totalProfileMask
	d.LastTotalConnectTime = lastTotalConnectTime
	d.DuplexProfileMask = duplexProfileMask
	d.LastDuplexConnectTime = lastDuplexConnectTime
	s.devices[key] = d
	return nil
}
