package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/khansohel/traffometer-server/internal/clock"
	"github.com/khansohel/traffometer-server/internal/metrics"
	"github.com/khansohel/traffometer-server/internal/session"
	"github.com/khansohel/traffometer-server/internal/store"
	"github.com/khansohel/traffometer-server/pkg/telemetry/codec"
	"github.com/khansohel/traffometer-server/pkg/telemetry/template"
)

// udpEndpoint tracks one UDP "session per distinct source endpoint"
// (spec.md §4.3) between datagrams.
type udpEndpoint struct {
	addr         *net.UDPAddr
	session      *session.Session
	scanner      *codec.Scanner
	lastActivity time.Time
}

// UDPServer receives datagrams on one socket and multiplexes them into
// one Session per source address, reaping endpoints that go quiet for
// longer than Timeouts.Session (spec.md §4.3: "whole-UDP-session 60s").
type UDPServer struct {
	Addr     string
	Timeouts Timeouts

	Clock    clock.Clock
	Persist  store.Persistence
	Registry *template.Registry
	Metrics  *metrics.Metrics
	Log      *logrus.Entry

	mu        sync.Mutex
	endpoints map[string]*udpEndpoint
	conn      *net.UDPConn
}

// ListenAndServe binds the socket and serves until ctx is canceled.
func (u *UDPServer) ListenAndServe(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", u.Addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}
	u.conn = conn
	u.endpoints = make(map[string]*udpEndpoint)
	log := u.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go u.reapLoop(ctx)

	log.WithField("addr", u.Addr).Info("udp listener started")

	buf := make([]byte, 2048)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				continue
			}
		}
		u.handleDatagram(ctx, from, append([]byte(nil), buf[:n]...))
	}
}

func (u *UDPServer) handleDatagram(ctx context.Context, from *net.UDPAddr, data []byte) {
	ep := u.endpointFor(from)

	u.mu.Lock()
	ep.lastActivity = time.Now()
	ep.scanner.Feed(data)
	u.mu.Unlock()

	for {
		u.mu.Lock()
		frame, isASCII, ok := ep.scanner.Next()
		u.mu.Unlock()
		if !ok {
			break
		}
		res := ep.session.HandleFrame(ctx, frame, isASCII)
		u.writeResponses(from, ep.session, res.Responses)
		if res.Terminate {
			u.closeEndpoint(from.String())
			return
		}
	}
}

func (u *UDPServer) endpointFor(from *net.UDPAddr) *udpEndpoint {
	key := from.String()
	u.mu.Lock()
	defer u.mu.Unlock()
	if ep, ok := u.endpoints[key]; ok {
		return ep
	}
	sess := session.New(session.UDP, u.Clock, u.Persist, u.Registry, u.Metrics, u.Log.WithField("remote_addr", key))
	ep := &udpEndpoint{addr: from, session: sess, scanner: codec.NewScanner(), lastActivity: time.Now()}
	u.endpoints[key] = ep
	return ep
}

func (u *UDPServer) writeResponses(to *net.UDPAddr, sess *session.Session, responses []*codec.Packet) {
	if len(responses) == 0 {
		return
	}
	isASCII, enc, checksum := sess.ReplyFraming()
	for _, p := range responses {
		var out []byte
		if isASCII {
			out = []byte(codec.EncodeASCII(p, enc, checksum, sess.CSVCodec()) + "\r\n")
		} else {
			out = codec.EncodeBinary(p)
		}
		u.conn.WriteToUDP(out, to)
	}
}

// reapLoop periodically closes endpoints that have gone quiet longer than
// the UDP session timeout (spec.md §7: "timeouts always terminate").
func (u *UDPServer) reapLoop(ctx context.Context) {
	interval := u.Timeouts.Idle
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			u.reapOnce(ctx)
		}
	}
}

func (u *UDPServer) reapOnce(ctx context.Context) {
	deadline := time.Now().Add(-u.Timeouts.Session)
	var stale []string
	u.mu.Lock()
	for key, ep := range u.endpoints {
		if ep.lastActivity.Before(deadline) {
			stale = append(stale, key)
		}
	}
	u.mu.Unlock()

	for _, key := range stale {
		u.mu.Lock()
		ep, ok := u.endpoints[key]
		u.mu.Unlock()
		if !ok {
			continue
		}
		res := ep.session.ForceTimeout()
		u.writeResponses(ep.addr, ep.session, res.Responses)
		u.closeEndpoint(key)
	}
}

func (u *UDPServer) closeEndpoint(key string) {
	u.mu.Lock()
	ep, ok := u.endpoints[key]
	if ok {
		delete(u.endpoints, key)
	}
	u.mu.Unlock()
	if !ok {
		return
	}
	lingerCtx, cancel := context.WithTimeout(context.Background(), u.Timeouts.Linger)
	defer cancel()
	_ = ep.session.Close(lingerCtx)
}
