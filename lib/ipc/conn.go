// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spt-tools/vagsearch/lib/netutil"
	"github.com/spt-tools/vagsearch/lib/watermark"
)

// DefaultAddress is where SPT's IPC server listens.
const DefaultAddress = "127.0.0.1:27182"

const (
	// DefaultPollInterval is the read deadline of a single poll.
	DefaultPollInterval = 20 * time.Millisecond

	// DefaultMaxFailures is the number of empty polls tolerated before
	// Send gives up.
	DefaultMaxFailures = 10

	// receiveSize is the size of one socket read.
	receiveSize = 8192
)

// Options configures a Conn. Zero values select the defaults.
type Options struct {
	// DialTimeout bounds connection establishment. Zero means only the
	// context deadline applies.
	DialTimeout time.Duration

	// PollInterval is the per-attempt read deadline.
	PollInterval time.Duration

	// MaxFailures is the number of empty polls before ErrProtocolTimeout.
	MaxFailures int

	// Logger receives debug traces and stale-watermark warnings. Nil
	// discards.
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.MaxFailures <= 0 {
		o.MaxFailures = DefaultMaxFailures
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Stats counts channel activity since the Conn was created.
type Stats struct {
	CommandsSent   uint64
	StaleDiscarded uint64
	EmptyPolls     uint64
}

// Conn is the command channel to one peer.
type Conn struct {
	address string
	options Options
	logger  *slog.Logger

	// mu guards conn and splitter, and is held for the whole of Send
	// so that Close waits for an in-flight command to finish.
	mu          sync.Mutex
	conn        net.Conn
	splitter    Splitter
	outstanding watermark.Token

	commandsSent   atomic.Uint64
	staleDiscarded atomic.Uint64
	emptyPolls     atomic.Uint64
}

// New returns an unconnected Conn for address.
func New(address string, options Options) *Conn {
	options = options.withDefaults()
	return &Conn{
		address: address,
		options: options,
		logger:  options.Logger.With("peer", address),
	}
}

// Dial is New followed by Connect.
func Dial(ctx context.Context, address string, options Options) (*Conn, error) {
	conn := New(address, options)
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}
	return conn, nil
}

// Connect opens the TCP connection.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return ErrAlreadyConnected
	}

	c.logger.Debug("connecting")
	dialer := &net.Dialer{Timeout: c.options.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConnectFailed, c.address, err)
	}
	c.conn = conn
	c.splitter.Reset()
	c.logger.Debug("connection established")
	return nil
}

// Connected reports whether the Conn is open.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Outstanding returns the watermark of the most recent Send.
func (c *Conn) Outstanding() watermark.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outstanding
}

// Stats returns a snapshot of the channel counters.
func (c *Conn) Stats() Stats {
	return Stats{
		CommandsSent:   c.commandsSent.Load(),
		StaleDiscarded: c.staleDiscarded.Load(),
		EmptyPolls:     c.emptyPolls.Load(),
	}
}

// Send transmits command with an echo directive for token appended, then
// waits for the peer to echo token back. It returns every non-ack,
// non-watermark message received in the meantime, in arrival order.
//
// Frames that arrive after the watermark in the same read are still
// decoded and returned; a trailing partial frame is kept for the next
// Send.
func (c *Conn) Send(command string, token watermark.Token) ([]Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, ErrNotConnected
	}

	c.outstanding = token
	command = command + "; y_spt_ipc_echo " + token.String()
	frame, err := EncodeCommand(command)
	if err != nil {
		return nil, err
	}
	if _, err := c.conn.Write(frame); err != nil {
		return nil, c.transportError("write", err)
	}
	c.commandsSent.Add(1)
	c.logger.Debug("sent command, awaiting response", "watermark", token, "command", command)

	buffer := make([]byte, receiveSize)
	var responses []Message
	failures := 0
	for {
		if failures >= c.options.MaxFailures {
			return responses, fmt.Errorf("%w: %d empty polls for command %q",
				ErrProtocolTimeout, failures, command)
		}

		if err := c.conn.SetReadDeadline(time.Now().Add(c.options.PollInterval)); err != nil {
			return responses, c.transportError("set deadline", err)
		}
		n, readErr := c.conn.Read(buffer)

		acknowledged := false
		if n > 0 {
			for _, frame := range c.splitter.Feed(buffer[:n]) {
				message, err := DecodeMessage(frame)
				if err != nil {
					return responses, err
				}
				keep, acked := c.classify(message, token)
				if acked {
					acknowledged = true
				}
				if keep {
					responses = append(responses, message)
				}
			}
		}
		if acknowledged {
			return responses, nil
		}

		if readErr != nil {
			if !netutil.IsTimeout(readErr) {
				return responses, c.transportError("read", readErr)
			}
			if n == 0 {
				failures++
				c.emptyPolls.Add(1)
				c.logger.Debug("no response yet", "watermark", token, "failures", failures)
			}
		}
	}
}

// classify decides what to do with one incoming message. keep means the
// message is returned to the caller; acked means it carried token.
func (c *Conn) classify(message Message, token watermark.Token) (keep, acked bool) {
	switch message.Kind() {
	case KindAck:
		return false, false
	case KindEcho:
		match, ok := watermark.MatchPrefix(message.Text)
		if !ok {
			// A y_spt_ipc_echo issued by the caller.
			return true, false
		}
		if match.Token != token || !match.Token.Valid() {
			c.staleDiscarded.Add(1)
			c.logger.Warn("discarding echo with unexpected watermark",
				"error", ErrStaleWatermark,
				"expected", token,
				"received", message.Text,
			)
			return false, false
		}
		c.logger.Debug("got ack through ipc", "watermark", token)
		return false, true
	default:
		return true, false
	}
}

func (c *Conn) transportError(operation string, err error) error {
	if netutil.IsExpectedCloseError(err) {
		return fmt.Errorf("%w: %s: %w", ErrPeerClosed, operation, err)
	}
	return fmt.Errorf("ipc: %s: %w", operation, err)
}

// Close releases the connection. Closing an already closed Conn is a
// no-op.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.splitter.Reset()
	c.logger.Debug("connection closed")
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("ipc: close: %w", err)
	}
	return nil
}
