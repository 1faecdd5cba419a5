package template

import (
	"sync"

	"github.com/khansohel/traffometer-server/pkg/telemetry/codec"
)

// DeviceKey identifies the device a stored template override belongs to.
type DeviceKey struct {
	AccountID string
	DeviceID  string
}

type tplKey struct {
	Dir  codec.Direction
	Type byte
}

// Registry holds the static well-known templates plus per-device stored
// overrides added through RegisterDeviceTemplate (spec.md §4.2). A
// FORMAT_DEF_24 upload handled by internal/session is kept in that
// session's SessionOverrides and is not stored here. It is
// shared across sessions and safe for concurrent use, grounded on the
// teacher's internal/parser.Registry (sync.RWMutex-guarded protocol-number
// map), generalized to a three-level lookup.
type Registry struct {
	mu       sync.RWMutex
	static   map[tplKey]Template
	devices  map[DeviceKey]map[byte]Template
}

// NewRegistry returns a Registry pre-populated with the static well-known
// templates (identification, property get/set, error, EOB, fixed-format
// events, DMTSP events).
func NewRegistry() *Registry {
	r := &Registry{
		static:  make(map[tplKey]Template),
		devices: make(map[DeviceKey]map[byte]Template),
	}
	for k, t := range wellKnownTemplates() {
		r.static[k] = t
	}
	return r
}

// RegisterDeviceTemplate stores a client->server template override for one
// device. It replaces any prior override for the same (device, packet
// type).
func (r *Registry) RegisterDeviceTemplate(dk DeviceKey, packetType byte, t Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.devices[dk]
	if !ok {
		m = make(map[byte]Template)
		r.devices[dk] = m
	}
	m[packetType] = t
}

// deviceTemplate returns a stored per-device override, if any.
func (r *Registry) deviceTemplate(dk DeviceKey, packetType byte) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.devices[dk]
	if !ok {
		return Template{}, false
	}
	t, ok := m[packetType]
	return t, ok
}

// staticTemplate returns the static table's entry, if any.
func (r *Registry) staticTemplate(dir codec.Direction, packetType byte) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.static[tplKey{Dir: dir, Type: packetType}]
	return t, ok
}

// Lookup resolves a template for a client->server packet type using the
// three-level order spec.md §4.2 requires: (1) in-session overrides
// uploaded this session, (2) per-device stored overrides, (3) static
// table. Server->client lookups never consult session or device overrides
// (devices cannot redefine the server's own outbound layouts).
func (r *Registry) Lookup(dir codec.Direction, packetType byte, dk DeviceKey, session *SessionOverrides) (Template, bool) {
	if dir == codec.ClientToServer {
		if session != nil {
			if t, ok := session.Get(packetType); ok {
				return t, true
			}
		}
		if t, ok := r.deviceTemplate(dk, packetType); ok {
			return t, true
		}
	}
	return r.staticTemplate(dir, packetType)
}

// SessionOverrides holds templates a single device uploaded for the
// lifetime of its current session only (spec.md §4.2: "in-session
// overrides (uploaded this session)"). It is owned by one session and
// needs no internal locking.
type SessionOverrides struct {
	byType map[byte]Template
}

// NewSessionOverrides returns an empty SessionOverrides set.
func NewSessionOverrides() *SessionOverrides {
	return &SessionOverrides{byType: make(map[byte]Template)}
}

// Set registers an in-session override for packetType.
func (s *SessionOverrides) Set(packetType byte, t Template) {
	s.byType[packetType] = t
}

// Get returns the in-session override for packetType, if any.
func (s *SessionOverrides) Get(packetType byte) (Template, bool) {
	t, ok := s.byType[packetType]
	return t, ok
}
