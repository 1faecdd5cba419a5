// Package transport implements the Connection Acceptor (spec.md §5,
// §6): a TCP listener and a UDP receiver, both framing raw bytes with
// codec.Scanner and handing complete frames to an internal/session
// Session. Grounded on the teacher's cmd/tcp-server connection loop
// (buffer accumulation + DecodeStream + per-packet dispatch), generalized
// from one bare accept loop with a single global read timeout into
// separate idle/packet/session deadlines and an accept-rate limiter.
package transport

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/khansohel/traffometer-server/internal/clock"
	"github.com/khansohel/traffometer-server/internal/metrics"
	"github.com/khansohel/traffometer-server/internal/session"
	"github.com/khansohel/traffometer-server/internal/store"
	"github.com/khansohel/traffometer-server/pkg/telemetry/codec"
	"github.com/khansohel/traffometer-server/pkg/telemetry/template"
)

// Timeouts holds the deadline knobs of spec.md §6's transport
// configuration table.
type Timeouts struct {
	Idle    time.Duration
	Packet  time.Duration
	Session time.Duration
	Linger  time.Duration
}

// TCPServer accepts connections on one listener and runs one Session per
// connection.
type TCPServer struct {
	Addr     string
	Timeouts Timeouts

	Clock    clock.Clock
	Persist  store.Persistence
	Registry *template.Registry
	Metrics  *metrics.Metrics
	Log      *logrus.Entry

	// AcceptRatePerSecond and AcceptBurst bound how fast Accept() hands
	// connections to new session goroutines (SPEC_FULL.md §5's
	// accept-rate limiter; distinct from the per-device RateProfile).
	AcceptRatePerSecond float64
	AcceptBurst         int

	listener net.Listener
}

// ListenAndServe binds the listener and serves until ctx is canceled.
func (t *TCPServer) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", t.Addr)
	if err != nil {
		return err
	}
	t.listener = ln
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	limiter := rate.NewLimiter(rate.Limit(t.AcceptRatePerSecond), t.AcceptBurst)
	log := t.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log.WithField("addr", t.Addr).Info("tcp listener started")

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				log.WithError(err).Warn("accept error")
				continue
			}
		}
		if err := limiter.Wait(ctx); err != nil {
			conn.Close()
			continue
		}
		go t.handleConn(ctx, conn)
	}
}

func (t *TCPServer) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	log := t.Log.WithField("remote_addr", remote)
	log.Info("tcp connection accepted")

	sess := session.New(session.TCP, t.Clock, t.Persist, t.Registry, t.Metrics, log)
	scanner := codec.NewScanner()

	deadline := time.Now().Add(t.Timeouts.Session)
	conn.SetReadDeadline(firstDeadline(time.Now().Add(t.Timeouts.Idle), deadline))

	readBuf := make([]byte, 4096)
	terminated := false

loop:
	for {
		n, err := conn.Read(readBuf)
		if n > 0 {
			scanner.Feed(readBuf[:n])
		}
		if err != nil {
			if err != io.EOF {
				log.WithError(err).Debug("tcp read ended")
			}
			break loop
		}

		for {
			frame, isASCII, ok := scanner.Next()
			if !ok {
				break
			}
			res := sess.HandleFrame(ctx, frame, isASCII)
			t.writeResponses(conn, res.Responses, sess)
			if res.Terminate {
				terminated = true
				break loop
			}
		}

		idleDeadline := time.Now().Add(t.Timeouts.Idle)
		if len(scanner.Residue()) > 0 {
			idleDeadline = time.Now().Add(t.Timeouts.Packet)
		}
		conn.SetReadDeadline(firstDeadline(idleDeadline, deadline))
		if time.Now().After(deadline) {
			break loop
		}
	}

	if !terminated {
		// Timeout or peer EOF: spec.md §7 "timeouts always terminate"; the
		// device still gets EOT if the transport can still write.
		res := sess.ForceTimeout()
		t.writeResponses(conn, res.Responses, sess)
	}

	lingerCtx, cancel := context.WithTimeout(context.Background(), t.Timeouts.Linger)
	defer cancel()
	if err := sess.Close(lingerCtx); err != nil {
		log.WithError(err).Warn("failed to persist session stats on close")
	}
	log.Info("tcp connection closed")
}

func (t *TCPServer) writeResponses(conn net.Conn, responses []*codec.Packet, sess *session.Session) {
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
		if _, err := conn.Write(out); err != nil {
			t.Log.WithError(err).Debug("write failed")
			return
		}
	}
}

func firstDeadline(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
