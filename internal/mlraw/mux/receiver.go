package mux

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/banshee-data/ml2raw/internal/monitoring"
)

// ReceiverConfig configures the live TCP receiver. The listening socket
// and output locations are explicit configuration rather than process
// state; the receiver owns the listener's lifecycle (opened in Start,
// closed when Start returns).
type ReceiverConfig struct {
	// Address is the TCP listen address, e.g. ":5001".
	Address string

	// AcceptPollInterval bounds how long a blocked Accept waits before
	// re-checking context cancellation. Defaults to 500ms.
	AcceptPollInterval time.Duration
}

// Receiver accepts headset connections and feeds each one through a
// demultiplexer. One connection is served at a time: the producer and
// consumer are paired 1:1 and frame order on one wire must be preserved
// exactly, so there is nothing to parallelise. A producer that
// reconnects gets a fresh protocol run on the same routes.
type Receiver struct {
	cfg   ReceiverConfig
	demux *Demultiplexer

	listener    atomic.Value // net.Listener, set once by Start
	connections atomic.Uint64
}

// NewReceiver returns a receiver that serves the given demultiplexer.
func NewReceiver(cfg ReceiverConfig, demux *Demultiplexer) *Receiver {
	if cfg.AcceptPollInterval == 0 {
		cfg.AcceptPollInterval = 500 * time.Millisecond
	}
	return &Receiver{cfg: cfg, demux: demux}
}

// Demux exposes the receiver's demultiplexer for status reporting.
func (r *Receiver) Demux() *Demultiplexer { return r.demux }

// Connections returns how many connections have been accepted.
func (r *Receiver) Connections() uint64 { return r.connections.Load() }

// Addr returns the bound listen address, or nil before Start has opened
// the socket. Useful when the configured address picks an ephemeral
// port.
func (r *Receiver) Addr() net.Addr {
	ln, _ := r.listener.Load().(net.Listener)
	if ln == nil {
		return nil
	}
	return ln.Addr()
}

// Start opens the listening socket and serves connections until the
// context is cancelled. Protocol failures on a connection are logged
// and the receiver goes back to accepting; only listener-level errors
// end the loop.
func (r *Receiver) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", r.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", r.cfg.Address, err)
	}
	r.listener.Store(ln)
	defer ln.Close()

	monitoring.Logf("receiver listening on %s", ln.Addr())

	tcpLn, _ := ln.(*net.TCPListener)
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("receiver stopping: %v", ctx.Err())
			return ctx.Err()
		default:
		}

		// Bound the accept so context cancellation is noticed.
		if tcpLn != nil {
			tcpLn.SetDeadline(time.Now().Add(r.cfg.AcceptPollInterval))
		}

		conn, err := ln.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("accept on %s: %w", r.cfg.Address, err)
		}

		r.connections.Add(1)
		monitoring.Logf("accepted connection from %s", conn.RemoteAddr())

		if err := r.demux.Run(conn); err != nil {
			monitoring.Logf("connection from %s failed: %v", conn.RemoteAddr(), err)
		} else {
			monitoring.Logf("connection from %s closed cleanly", conn.RemoteAddr())
		}
		conn.Close()
	}
}
