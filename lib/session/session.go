// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spt-tools/vagsearch/lib/clock"
	"github.com/spt-tools/vagsearch/lib/conlog"
	"github.com/spt-tools/vagsearch/lib/ipc"
	"github.com/spt-tools/vagsearch/lib/spt"
	"github.com/spt-tools/vagsearch/lib/watermark"
)

const (
	// DefaultLogFileAttempts is the number of con_logfile attempts
	// before Open gives up on the console log.
	DefaultLogFileAttempts = 10

	// DefaultDiskLatency is the wait between asking SPT to create the
	// console log and looking for it.
	DefaultDiskLatency = conlog.DefaultDiskLatency
)

// Options configures Open.
type Options struct {
	// Address is the IPC endpoint. Empty uses ipc.DefaultAddress.
	Address string

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration

	// PollInterval and MaxFailures bound the wait for each IPC echo.
	// Zero selects the ipc defaults.
	PollInterval time.Duration
	MaxFailures  int

	// ConsoleLogFile is the console mirror file name, relative to the
	// game directory. Empty disables console reading.
	ConsoleLogFile string

	// LogFileAttempts bounds the creation of the console log. Zero
	// selects DefaultLogFileAttempts.
	LogFileAttempts int

	// DiskLatency is the wait before each look for the console log and
	// between console tail passes. Zero selects DefaultDiskLatency.
	DiskLatency time.Duration

	// Clock drives disk-latency waits. Nil uses the real clock.
	Clock clock.Clock

	// Watermarks supplies one token per command. Nil draws random
	// tokens.
	Watermarks watermark.Generator

	// Logger receives debug traces. Nil discards.
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Address == "" {
		o.Address = ipc.DefaultAddress
	}
	if o.LogFileAttempts <= 0 {
		o.LogFileAttempts = DefaultLogFileAttempts
	}
	if o.DiskLatency <= 0 {
		o.DiskLatency = DefaultDiskLatency
	}
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	if o.Watermarks == nil {
		o.Watermarks = watermark.NewRandom(nil)
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Session is an open connection to SPT plus an optional console tail.
type Session struct {
	options Options
	logger  *slog.Logger

	mu      sync.Mutex
	conn    *ipc.Conn
	tail    *conlog.Tail
	gameDir string
}

// Open connects to SPT, learns the game directory and, when a console
// log file is configured, makes SPT mirror its console there and opens
// the mirror positioned at its end.
func Open(ctx context.Context, options Options) (*Session, error) {
	options = options.withDefaults()
	session := &Session{
		options: options,
		logger:  options.Logger,
	}

	session.logger.Debug("starting connection", "address", options.Address)
	conn, err := ipc.Dial(ctx, options.Address, ipc.Options{
		DialTimeout:  options.DialTimeout,
		PollInterval: options.PollInterval,
		MaxFailures:  options.MaxFailures,
		Logger:       options.Logger,
	})
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	session.conn = conn

	if err := session.startLocked(); err != nil {
		session.closeLocked()
		return nil, err
	}
	session.logger.Debug("connection established", "game_dir", session.gameDir)
	return session, nil
}

func (s *Session) startLocked() error {
	responses, err := s.sendLocked(spt.GameDir(), true)
	if err != nil {
		return fmt.Errorf("session: querying game directory: %w", err)
	}
	s.gameDir, err = spt.DecodeGameDir(responses)
	if err != nil {
		return fmt.Errorf("session: querying game directory: %w", err)
	}

	name := s.options.ConsoleLogFile
	if name == "" {
		return nil
	}
	path := filepath.Join(s.gameDir, name)
	for attempt := 1; attempt <= s.options.LogFileAttempts; attempt++ {
		if _, err := s.sendLocked(spt.ConLogFile(name), true); err != nil {
			return fmt.Errorf("session: enabling console log: %w", err)
		}
		s.options.Clock.Sleep(s.options.DiskLatency)

		tail, err := conlog.Open(path, conlog.Options{
			Clock:       s.options.Clock,
			DiskLatency: s.options.DiskLatency,
			Logger:      s.logger,
		})
		if err == nil {
			if err := tail.ResetToEnd(); err != nil {
				tail.Close()
				return err
			}
			s.tail = tail
			return nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		s.logger.Debug("console log not created yet", "path", path, "attempt", attempt)
	}
	return fmt.Errorf("%w: %s after %d attempts", ErrSideChannelUnavailable, path, s.options.LogFileAttempts)
}

// GameDir returns the game directory reported by SPT.
func (s *Session) GameDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameDir
}

// ConsoleEnabled reports whether console output can be read.
func (s *Session) ConsoleEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tail != nil
}

// SendAndCollect sends command and returns the IPC responses it
// produced. When expectConsole is set and console reading is enabled,
// the console watermark is armed so a following DrainConsole or
// SendAndDrainConsole waits for it; otherwise any armed watermark is
// cleared so the tail does not wait for text that will never come.
func (s *Session) SendAndCollect(command string, expectConsole bool) ([]ipc.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil, ErrNotConnected
	}
	return s.sendLocked(command, expectConsole)
}

func (s *Session) sendLocked(command string, expectConsole bool) ([]ipc.Message, error) {
	token := s.options.Watermarks.Next()
	consoleExpected := expectConsole && s.tail != nil
	if consoleExpected {
		command = command + "; echo " + token.String()
		s.tail.Expect(token)
	}

	responses, err := s.conn.Send(command, token)
	if s.tail != nil && (err != nil || !consoleExpected) {
		s.tail.Clear()
	}
	return responses, err
}

// SendAndDrainConsole skips any unread console text, sends command and
// returns the console lines it printed.
func (s *Session) SendAndDrainConsole(command string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil, ErrNotConnected
	}
	if s.tail == nil {
		return nil, ErrConsoleDisabled
	}

	if err := s.tail.ResetToEnd(); err != nil {
		return nil, err
	}
	if _, err := s.sendLocked(command, true); err != nil {
		return nil, err
	}
	return s.tail.Drain(true)
}

// DrainConsole returns console lines appended since the last read
// without waiting for a watermark.
func (s *Session) DrainConsole() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil, ErrNotConnected
	}
	if s.tail == nil {
		return nil, ErrConsoleDisabled
	}
	return s.tail.Drain(false)
}

// Stats returns the IPC channel counters.
func (s *Session) Stats() ipc.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ipc.Stats{}
	}
	return s.conn.Stats()
}

// Close releases the connection and console log. It waits for an
// in-flight operation to finish. Closing twice is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Session) closeLocked() error {
	if s.conn == nil {
		return nil
	}
	s.logger.Debug("closing session")
	var errs []error
	if err := s.conn.Close(); err != nil {
		errs = append(errs, err)
	}
	s.conn = nil
	if s.tail != nil {
		if err := s.tail.Close(); err != nil {
			errs = append(errs, err)
		}
		s.tail = nil
	}
	return errors.Join(errs...)
}
