// Package ingest implements the per-producer TCP session lifecycle:
// accept, optional token handshake, decode loop, and dispatch of every
// decoded record until the connection closes.
package ingest

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/grafana/dskit/services"

	"github.com/grafana/logrooms/modules/dispatcher"
	"github.com/grafana/logrooms/modules/room"
	"github.com/grafana/logrooms/pkg/ingestproto"
	"github.com/grafana/logrooms/pkg/util/log"
)

// Listener runs the TCP accept loop and one read-goroutine per producer
// connection, wrapped in a services.Service so the module manager owns
// its lifecycle.
type Listener struct {
	services.Service

	cfg        Config
	dispatcher *dispatcher.Dispatcher

	// decodeErrLog bounds how loudly misbehaving producers can log; one
	// bad client replaying garbage must not flood stderr.
	decodeErrLog *log.RateLimitedLogger

	mu sync.Mutex
	ln net.Listener
	wg sync.WaitGroup
}

// New creates a Listener. Call Service.StartAsync (via a modules.Manager or
// directly) to begin accepting connections.
func New(cfg Config, d *dispatcher.Dispatcher) *Listener {
	l := &Listener{
		cfg:          cfg,
		dispatcher:   d,
		decodeErrLog: log.NewRateLimitedLogger(5, level.Warn(log.Logger)),
	}
	l.Service = services.NewBasicService(l.starting, l.running, l.stopping)
	return l
}

func (l *Listener) starting(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("ingest: listen %s: %w", l.cfg.ListenAddr, err)
	}
	l.mu.Lock()
	l.ln = ln
	l.mu.Unlock()
	level.Info(log.Logger).Log("msg", "ingest listener started", "addr", ln.Addr().String())
	return nil
}

func (l *Listener) running(ctx context.Context) error {
	acceptErrs := make(chan error, 1)
	go l.acceptLoop(ctx, acceptErrs)

	select {
	case <-ctx.Done():
		return nil
	case err := <-acceptErrs:
		return err
	}
}

func (l *Listener) acceptLoop(ctx context.Context, errs chan<- error) {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			errs <- err
			return
		}
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.handleConn(ctx, conn)
		}()
	}
}

func (l *Listener) stopping(_ error) error {
	l.mu.Lock()
	ln := l.ln
	l.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}
	l.wg.Wait()
	return nil
}

// handleConn drives one producer's read loop until it errors, disconnects,
// or fails its auth handshake.
func (l *Listener) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	sess := &producerSession{
		id:          uuid.New().String(),
		remoteAddr:  conn.RemoteAddr().String(),
		roomID:      room.DefaultRoomID,
		connectedAt: time.Now(),
	}
	logger := log.With(log.Logger, "producer", sess.id, "remote", sess.remoteAddr)
	dec := ingestproto.NewDecoder(conn)

	if l.cfg.AuthRequired {
		pkt, err := dec.Decode()
		if err != nil || pkt.Type != ingestproto.TypeAuthToken || !validToken(pkt.AuthToken.Token, l.cfg.AuthToken) {
			level.Warn(logger).Log("msg", "producer auth failed, closing connection")
			return
		}
	}

	l.dispatcher.Sink().ProducerConnected(sess.id, sess.roomID, sess.appName, sess.remoteAddr)
	l.dispatcher.Rooms().GetOrCreate(sess.roomID).AddProducer(sess.id)
	defer func() {
		// sess.roomID may have changed mid-session via a room-change
		// directive; resolve it at disconnect time.
		if r, ok := l.dispatcher.Rooms().Get(sess.roomID); ok {
			r.RemoveProducer(sess.id)
		}
		l.dispatcher.Sink().ProducerDisconnected(sess.id, sess.roomID)
	}()

	for {
		pkt, err := dec.Decode()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				_ = l.decodeErrLog.Log("msg", "closing producer on decode error", "producer", sess.id, "remote", sess.remoteAddr, "err", err)
			}
			return
		}

		if pkt.Type == ingestproto.TypeLogHeader {
			sess.appName = pkt.LogHeader.AppName
			continue
		}

		newRoomID := l.dispatcher.Dispatch(sess.id, sess.roomID, sess.appName, pkt, time.Now())
		sess.roomID = newRoomID
	}
}

func validToken(got []byte, want string) bool {
	if len(got) < 32 || len(got) > 256 {
		return false
	}
	return subtle.ConstantTimeCompare(got, []byte(want)) == 1
}

// producerSession is the per-connection state for one accepted producer.
type producerSession struct {
	id          string
	remoteAddr  string
	appName     string
	roomID      string
	connectedAt time.Time
}
