package transport

import (
	"context"
	"encoding/hex"
	"io"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/khansohel/traffometer-server/internal/clock"
	"github.com/khansohel/traffometer-server/internal/store"
	"github.com/khansohel/traffometer-server/internal/store/memory"
	"github.com/khansohel/traffometer-server/pkg/telemetry/codec"
	"github.com/khansohel/traffometer-server/pkg/telemetry/protocol"
	"github.com/khansohel/traffometer-server/pkg/telemetry/template"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestTCPServerIdentifiesAndAnswersEOBDone(t *testing.T) {
	st := memory.New()
	st.PutAccount(store.Account{AccountID: "acme", IsActive: true})
	st.PutDevice(store.Device{AccountID: "acme", DeviceID: "truck1", UniqueID: 0xAA, IsActive: true,
		TotalMaxConn: 10, TotalMaxConnPerMin: 10, DuplexMaxConn: 10, DuplexMaxConnPerMin: 10, MaxAllowedEvents: 10})

	srv := &TCPServer{
		Addr:                "127.0.0.1:0",
		Timeouts:            Timeouts{Idle: time.Second, Packet: time.Second, Session: 3 * time.Second, Linger: time.Second},
		Clock:               clock.Real{},
		Persist:             st,
		Registry:            template.NewRegistry(),
		Log:                 testLogger(),
		AcceptRatePerSecond: 1000,
		AcceptBurst:         100,
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()
	srv.Addr = addr

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.ListenAndServe(ctx)
	time.Sleep(50 * time.Millisecond)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	idPkt := codec.NewPacket(protocol.TypeUniqueID, codec.ClientToServer, protocol.EncodingBinary)
	idPkt.Payload.WriteUint(0xAA, 6)
	_, err = conn.Write(codec.EncodeBinary(idPkt))
	require.NoError(t, err)

	eobPkt := codec.NewPacket(protocol.TypeEOBDone, codec.ClientToServer, protocol.EncodingBinary)
	_, err = conn.Write(codec.EncodeBinary(eobPkt))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	require.True(t, n >= 3)
	t.Logf("received %s", hex.EncodeToString(buf[:n]))
	require.Equal(t, protocol.Header, buf[0])
	require.Equal(t, protocol.STypeEOBDone, buf[1])
}
