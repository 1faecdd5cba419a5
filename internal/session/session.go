package session

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/khansohel/traffometer-server/internal/clock"
	"github.com/khansohel/traffometer-server/internal/identity"
	"github.com/khansohel/traffometer-server/internal/metrics"
	"github.com/khansohel/traffometer-server/internal/store"
	"github.com/khansohel/traffometer-server/pkg/telemetry/codec"
	"github.com/khansohel/traffometer-server/pkg/telemetry/event"
	"github.com/khansohel/traffometer-server/pkg/telemetry/protocol"
	"github.com/khansohel/traffometer-server/pkg/telemetry/rateprofile"
	"github.com/khansohel/traffometer-server/pkg/telemetry/template"
)

// Transport names the two carriers a Session can run over; TCP sessions
// increment both the total and duplex rate profiles at admission, UDP
// sessions increment only the total profile (spec.md §4.5).
type Transport int

const (
	TCP Transport = iota
	UDP
)

func (t Transport) String() string {
	if t == UDP {
		return "udp"
	}
	return "tcp"
}

// Result is what HandleFrame hands back to the transport loop: zero or
// more packets to send, in order, and whether the transport should close
// the connection once they are flushed.
type Result struct {
	Responses []*codec.Packet
	Terminate bool
}

// Session drives one device's dialog from its first identity packet
// through to close (spec.md §4.3). Grounded on the teacher's
// cmd/tcp-server connection loop (accumulate, decode, dispatch, respond),
// generalized into an explicit state machine with injected collaborators
// instead of inline globals.
type Session struct {
	transport Transport
	clock     clock.Clock
	persist   store.Persistence
	registry  *template.Registry
	metrics   *metrics.Metrics
	log       *logrus.Entry

	state State

	encodingLocked bool
	asciiLocked    bool
	discLocked     bool
	lockedDisc     protocol.EncodingTag
	replyEncoding  protocol.EncodingTag
	replyChecksum  bool

	pendingAccountID string

	identity *identity.Resolved
	device   template.DeviceKey
	overrides *template.SessionOverrides

	totalProfile  rateprofile.Profile
	duplexProfile rateprofile.Profile

	eventsThisInterval int
	lastSequence       uint64
	hasPendingAck      bool
}

// New builds a Session in AWAITING_IDENTITY, ready for its first frame.
func New(transport Transport, clk clock.Clock, persist store.Persistence, registry *template.Registry, m *metrics.Metrics, log *logrus.Entry) *Session {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	m.SessionOpened(transport.String())
	return &Session{
		transport: transport,
		clock:     clk,
		persist:   persist,
		registry:  registry,
		metrics:   m,
		log:       log,
		state:     AwaitingIdentity,
		overrides: template.NewSessionOverrides(),
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State { return s.state }

// CSVCodec exposes this session's CSV encode/decode adapter so a
// transport can render outbound CSV-encoded responses the same way
// HandleFrame decodes inbound ones.
func (s *Session) CSVCodec() codec.CSVCodec {
	return s.csvCodec()
}

// ForceTimeout ends the session the way spec.md §7 requires for any
// timeout ("timeouts always terminate"): there is no offending packet to
// name, so the device gets a bare EOT rather than ERROR+EOT, and the
// transport should close immediately after.
func (s *Session) ForceTimeout() Result {
	s.state = Closing
	return Result{Responses: []*codec.Packet{eotResponse(s.replyEncoding)}, Terminate: true}
}

// ReplyFraming reports how the transport should render this session's
// next batch of responses: whether to use ASCII framing at all, which
// EncodingTag to pick within it, and whether to append a checksum -
// mirroring whatever the most recently decoded request used.
func (s *Session) ReplyFraming() (isASCII bool, enc protocol.EncodingTag, checksum bool) {
	return s.asciiLocked, s.replyEncoding, s.replyChecksum
}

// csvCodec returns the CSVCodec the ASCII framing should use for this
// session's device. Before identity resolves its Device is the zero key,
// so Lookup finds no device override and no session override (none can be
// uploaded before then) and resolves only from the static table.
func (s *Session) csvCodec() codec.CSVCodec {
	return template.DeviceCodec{Registry: s.registry, Device: s.device, Session: s.overrides}
}

// HandleFrame decodes and dispatches one frame, already extracted from
// the transport stream by a codec.Scanner. isASCII tells HandleFrame
// which framing the transport used so it can enforce the encoding lock
// of spec.md §4.1 ("the session locks to whichever framing its first
// packet used; a later mismatch is BAD_ENCODING").
func (s *Session) HandleFrame(ctx context.Context, raw []byte, isASCII bool) Result {
	if s.state == Closed {
		return Result{}
	}

	if s.encodingLocked && isASCII != s.asciiLocked {
		return s.frameErrorResult(protocol.ErrPacketEncoding, 0, 0, false)
	}

	// The framing (ASCII vs binary) locks on the first frame regardless of
	// whether that frame turns out to decode cleanly: it is a property of
	// the bytes on the wire, not of the packet they encode, and a decode
	// failure on this very frame still needs its ERROR reply rendered in
	// the framing the device is speaking (spec.md §4.1, §7).
	if !s.encodingLocked {
		s.encodingLocked = true
		s.asciiLocked = isASCII
	}

	var pkt *codec.Packet
	var err error
	if isASCII {
		pkt, err = codec.DecodeASCII(raw, codec.ClientToServer, s.csvCodec())
	} else {
		pkt, err = codec.DecodeBinary(raw, codec.ClientToServer)
	}
	if err != nil {
		return s.handleFrameError(err)
	}

	// Within ASCII framing, the discriminator ('=', ':', ',') locks the
	// same way the outer ASCII-vs-binary choice does (spec.md §4.3: "the
	// session continues in whatever discriminator was used; a mismatch
	// later is BAD_ENCODING"). EncodingEmpty carries no discriminator at
	// all, so it neither sets nor trips the lock.
	if isASCII && pkt.Encoding != protocol.EncodingEmpty {
		if s.discLocked && pkt.Encoding != s.lockedDisc {
			return s.frameErrorResult(protocol.ErrPacketEncoding, pkt.Header, pkt.Type, false)
		}
		if !s.discLocked {
			s.discLocked = true
			s.lockedDisc = pkt.Encoding
		}
	}

	s.replyEncoding = pkt.Encoding
	s.replyChecksum = pkt.Checksum

	return s.dispatch(ctx, pkt)
}

// handleFrameError classifies a framing failure into the ERROR code of
// spec.md §7 and decides whether it is severe enough to end the session:
// a header or length-accounting problem means the transport can no
// longer trust frame boundaries at all, so the session closes; anything
// else (bad checksum, bad encoding discriminator) is reported and the
// session continues. The offending header/type named in the ERROR
// response come from the FrameError itself (set as soon as the decoder
// read them), never guessed from the raw frame bytes: for ASCII framing
// those bytes are '$' and a hex digit, not the packet's own header/type.
func (s *Session) handleFrameError(err error) Result {
	var header, typ byte
	var fe *codec.FrameError
	if errors.As(err, &fe) && fe.HasHeaderType {
		header, typ = fe.Header, fe.Type
	}

	code := protocol.ErrPacketLength
	severe := false
	switch {
	case codec.IsFrameErrorKind(err, codec.KindBadHeader):
		code, severe = protocol.ErrPacketHeader, true
	case codec.IsFrameErrorKind(err, codec.KindMalformedLength), codec.IsFrameErrorKind(err, codec.KindBadLength):
		code, severe = protocol.ErrPacketLength, true
	case codec.IsFrameErrorKind(err, codec.KindBadChecksum):
		code, severe = protocol.ErrPacketChecksum, false
	case codec.IsFrameErrorKind(err, codec.KindBadEncoding):
		code, severe = protocol.ErrPacketEncoding, false
	}
	if s.metrics != nil {
		s.metrics.FrameDecodeError(code.String())
	}
	return s.frameErrorResult(code, header, typ, severe)
}

func (s *Session) frameErrorResult(code protocol.ErrorCode, header, typ byte, severe bool) Result {
	enc := s.replyEncoding
	resp := []*codec.Packet{errorResponse(code, header, typ, nil, enc)}
	if severe {
		s.state = Closing
		resp = append(resp, eotResponse(enc))
		return Result{Responses: resp, Terminate: true}
	}
	return Result{Responses: resp}
}

// dispatch runs the packet through the state-transition table of
// spec.md §4.3.
func (s *Session) dispatch(ctx context.Context, p *codec.Packet) Result {
	switch s.state {
	case AwaitingIdentity:
		return s.dispatchAwaitingIdentity(ctx, p)
	case Identified:
		s.state = Active
		return s.dispatchActive(ctx, p)
	case Active:
		return s.dispatchActive(ctx, p)
	default:
		return Result{}
	}
}

func (s *Session) dispatchAwaitingIdentity(ctx context.Context, p *codec.Packet) Result {
	switch p.Type {
	case protocol.TypeUniqueID:
		uniqueID := p.Payload.ReadUint(6)
		res, err := identity.ResolveUniqueID(ctx, s.persist, uniqueID)
		return s.completeIdentification(res, err, p)
	case protocol.TypeAccountID:
		s.pendingAccountID = p.Payload.ReadString(p.Payload.Remaining(), 0)
		return Result{}
	case protocol.TypeDeviceID:
		if s.pendingAccountID == "" {
			return s.terminatingError(protocol.ErrIDExpected, p)
		}
		deviceID := p.Payload.ReadString(p.Payload.Remaining(), 0)
		res, err := identity.ResolveAccountDevice(ctx, s.persist, s.pendingAccountID, deviceID)
		return s.completeIdentification(res, err, p)
	default:
		return s.terminatingError(protocol.ErrIDExpected, p)
	}
}

// completeIdentification finishes either identity path: on failure the
// session moves straight to CLOSING (spec.md §4.4); on success it runs
// rate-limit admission before advancing to IDENTIFIED, since admission
// happens "at session start" which is exactly now.
func (s *Session) completeIdentification(res identity.Resolved, err error, p *codec.Packet) Result {
	if err != nil {
		var f *identity.Failure
		code := protocol.ErrUniqueIDInvalid
		if errors.As(err, &f) {
			code = f.Code
		}
		return s.terminatingError(code, p)
	}

	s.identity = &res
	s.device = template.DeviceKey{AccountID: res.Account.AccountID, DeviceID: res.Device.DeviceID}
	s.totalProfile = rateprofile.RestoreProfile(res.Device.TotalProfileMask, res.Device.UnitLimitIntervalMinutes, res.Device.LastTotalConnectTime)
	s.duplexProfile = rateprofile.RestoreProfile(res.Device.DuplexProfileMask, res.Device.UnitLimitIntervalMinutes, res.Device.LastDuplexConnectTime)

	if !s.admitSession() {
		if s.metrics != nil {
			s.metrics.RateLimited()
		}
		return s.terminatingError(protocol.ErrExcessiveConnections, p)
	}

	s.state = Identified
	return Result{}
}

// admitSession runs the Admit algorithm of spec.md §4.5 for this
// connection's transport: TCP increments both the total and duplex
// profiles, UDP increments only the total profile. Both calls run even
// though a duplex rejection after a total acceptance leaves the total
// profile mutated; spec.md does not define a rollback for that case, so
// the total admission's side effect stands.
func (s *Session) admitSession() bool {
	d := s.identity.Device
	now := s.clock.Now()

	totalRes := s.totalProfile.Admit(now, d.TotalMaxConn, d.TotalMaxConnPerMin)
	if !totalRes.Accepted {
		return false
	}
	if s.transport == TCP {
		duplexRes := s.duplexProfile.Admit(now, d.DuplexMaxConn, d.DuplexMaxConnPerMin)
		if !duplexRes.Accepted {
			return false
		}
	}
	return true
}

func (s *Session) terminatingError(code protocol.ErrorCode, p *codec.Packet) Result {
	s.state = Closing
	enc := s.replyEncoding
	return Result{
		Responses: []*codec.Packet{
			errorResponse(code, p.Header, p.Type, nil, enc),
			eotResponse(enc),
		},
		Terminate: true,
	}
}

func (s *Session) dispatchActive(ctx context.Context, p *codec.Packet) Result {
	switch {
	case protocol.IsEvent(p.Type):
		return s.handleEvent(ctx, p)
	case p.Type == protocol.TypePropertyValue:
		// Configuration values the device reports; nothing further to do.
		return Result{}
	case p.Type == protocol.TypeFormatDef24:
		return s.handleFormatDef(p)
	case p.Type == protocol.TypeEOBDone:
		return s.flushBlock(eobDoneResponse(s.replyEncoding))
	case p.Type == protocol.TypeEOBMore:
		return s.flushBlock(eobSpeakFreelyResponse(s.replyEncoding))
	case p.Type == protocol.TypeDiagnostic:
		s.log.WithField("bytes", p.Payload.Remaining()).Debug("diagnostic packet")
		return Result{}
	case p.Type == protocol.TypeError:
		s.log.WithField("payload_len", p.Payload.Remaining()).Warn("device-reported error")
		return Result{}
	default:
		return Result{Responses: []*codec.Packet{errorResponse(protocol.ErrPacketType, p.Header, p.Type, nil, s.replyEncoding)}}
	}
}

// flushBlock emits a pending ACK (if any event was accepted since the
// last block boundary) followed by the block-boundary response itself.
func (s *Session) flushBlock(boundary *codec.Packet) Result {
	var resp []*codec.Packet
	if s.hasPendingAck {
		resp = append(resp, ackResponse(s.lastSequence, s.replyEncoding))
		s.hasPendingAck = false
	}
	resp = append(resp, boundary)
	return Result{Responses: resp}
}

// handleEvent decodes one event packet against its resolved template and
// runs it through the acceptance pipeline of spec.md §4.3 step 2: an
// unknown custom type is reported as FORMAT_NOT_RECOGNIZED, an invalid
// required GPS point as EVENT_ERROR, an exhausted quota as
// EXCESSIVE_EVENTS, and a persistence failure as EVENT_ERROR; none of
// them terminate the session on their own.
func (s *Session) handleEvent(ctx context.Context, p *codec.Packet) Result {
	t, ok := s.registry.Lookup(codec.ClientToServer, p.Type, s.device, s.overrides)
	if !ok {
		return Result{Responses: []*codec.Packet{errorResponse(protocol.ErrFormatNotRecognized, p.Header, p.Type, nil, s.replyEncoding)}}
	}

	ev := event.Decode(t, p.Payload, p.Type, p.Payload.Bytes())
	if event.RequiresValidPoint(t) && !ev.Point.Valid() {
		if s.metrics != nil {
			s.metrics.EventRejected("invalid_point")
		}
		return Result{Responses: []*codec.Packet{errorResponse(protocol.ErrEventError, p.Header, p.Type, nil, s.replyEncoding)}}
	}

	d := s.identity.Device
	if d.MaxAllowedEvents > 0 && s.eventsThisInterval >= d.MaxAllowedEvents {
		if s.metrics != nil {
			s.metrics.EventRejected("excessive_events")
		}
		return Result{Responses: []*codec.Packet{errorResponse(protocol.ErrExcessiveEvents, p.Header, p.Type, nil, s.replyEncoding)}}
	}

	res, err := s.persist.InsertEvent(ctx, s.device.AccountID, s.device.DeviceID, ev)
	if err != nil || res == store.InsertEventError {
		if s.metrics != nil {
			s.metrics.EventRejected("persistence")
		}
		return Result{Responses: []*codec.Packet{errorResponse(protocol.ErrEventError, p.Header, p.Type, nil, s.replyEncoding)}}
	}

	if s.metrics != nil {
		s.metrics.EventPersisted()
	}
	s.eventsThisInterval++
	s.lastSequence = ev.Sequence
	s.hasPendingAck = true
	return Result{}
}

// handleFormatDef registers a custom client->server template for the
// lifetime of this session only (spec.md §4.2 lookup order level 1); the
// Persistence Interface has no operation to store a template durably, so
// a FORMAT_DEF_24 upload never reaches per-device storage.
//
// Wire layout (this session's own convention, since spec.md leaves the
// upload payload unspecified beyond naming the packet type): target
// packet type (1 byte), field count N (1 byte), then N entries of
// semantic tag (1 byte), hi-res flag (1 byte), disambiguating index
// (1 byte), byte length (1 byte).
func (s *Session) handleFormatDef(p *codec.Packet) Result {
	target := byte(p.Payload.ReadUint(1))
	count := int(p.Payload.ReadUint(1))
	fields := make([]template.FieldDescriptor, 0, count)
	for i := 0; i < count; i++ {
		semantic := template.SemanticType(p.Payload.ReadUint(1))
		hiRes := p.Payload.ReadUint(1) != 0
		index := int(p.Payload.ReadUint(1))
		length := int(p.Payload.ReadUint(1))
		fields = append(fields, template.FieldDescriptor{Semantic: semantic, HiRes: hiRes, Index: index, Length: length})
	}
	s.overrides.Set(target, template.NewTemplate(fields...))
	return Result{}
}

// GetProperty, SetProperty, and PushFile build the three server-initiated
// outbound packets of spec.md §4.6 that have no inbound trigger in the
// transition table (config manipulation and file push are operations the
// server issues at its own initiative, not responses to a client packet).
// The caller is responsible for handing the returned Packet to the
// transport for delivery over this session's connection.
func (s *Session) GetProperty(key uint32) *codec.Packet {
	return getPropertyResponse(key, s.replyEncoding)
}

func (s *Session) SetProperty(key uint16, value []byte) *codec.Packet {
	return setPropertyResponse(key, value, s.replyEncoding)
}

func (s *Session) PushFile(kind byte, offset uint32, data []byte) *codec.Packet {
	return fileUploadResponse(kind, offset, data, s.replyEncoding)
}

// Close finalizes a session: if identity ever resolved, its rate-profile
// bitmaps and last-connect timestamps are persisted so quota accounting
// survives across sessions (spec.md §4.3 CLOSING -> CLOSED).
func (s *Session) Close(ctx context.Context) error {
	defer func() {
		s.state = Closed
		if s.metrics != nil {
			s.metrics.SessionClosed()
		}
	}()
	if s.identity == nil {
		return nil
	}
	return s.persist.UpdateDeviceSessionStats(ctx, s.device.AccountID, s.device.DeviceID,
		s.totalProfile.Bits.Mask(), s.totalProfile.LastConnectTime,
		s.duplexProfile.Bits.Mask(), s.duplexProfile.LastConnectTime)
}
