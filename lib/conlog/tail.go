// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package conlog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spt-tools/vagsearch/lib/clock"
	"github.com/spt-tools/vagsearch/lib/watermark"
)

const (
	// DefaultDiskLatency is the wait between read passes.
	DefaultDiskLatency = 20 * time.Millisecond

	// DefaultMaxFailures is the number of passes without the watermark
	// before Drain gives up.
	DefaultMaxFailures = 10
)

// ErrProtocolTimeout is returned by Drain when the outstanding
// watermark did not appear in the log within the retry limit.
var ErrProtocolTimeout = errors.New("conlog: watermark not found in console log before retry limit")

// Options configures a Tail. Zero values select the defaults.
type Options struct {
	// Clock drives the disk-latency wait. Nil uses the real clock.
	Clock clock.Clock

	// DiskLatency is the wait after a pass that did not find the
	// watermark.
	DiskLatency time.Duration

	// MaxFailures is the number of passes before ErrProtocolTimeout.
	MaxFailures int

	// Logger receives debug traces. Nil discards.
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	if o.DiskLatency <= 0 {
		o.DiskLatency = DefaultDiskLatency
	}
	if o.MaxFailures <= 0 {
		o.MaxFailures = DefaultMaxFailures
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Tail reads a growing console log. It is not safe for concurrent use;
// lib/session serializes access.
type Tail struct {
	path    string
	options Options
	logger  *slog.Logger

	file   *os.File
	reader *bufio.Reader

	// pushback is the remainder of a line that was split at a
	// watermark. It is processed before anything else is read.
	pushback    string
	hasPushback bool

	// partial is an unterminated final fragment held back while a
	// watermark is armed. The rest of its line is read next.
	partial string

	outstanding watermark.Token
}

// Open opens the console log at path for tailing. The read position
// starts at the beginning of the file; call ResetToEnd to skip history.
func Open(path string, options Options) (*Tail, error) {
	options = options.withDefaults()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("conlog: opening %s: %w", path, err)
	}
	return &Tail{
		path:    path,
		options: options,
		logger:  options.Logger.With("console_log", path),
		file:    file,
		reader:  bufio.NewReader(file),
	}, nil
}

// Path returns the file being tailed.
func (t *Tail) Path() string { return t.path }

// ResetToEnd moves the read position to the current end of the file.
// Text already in the file will not be returned by later Drains, and a
// held-back fragment is dropped with it. A pushed-back remainder
// survives: it was produced by a command that already finished and
// belongs to whichever Drain comes next.
func (t *Tail) ResetToEnd() error {
	if _, err := t.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("conlog: seeking to end of %s: %w", t.path, err)
	}
	t.reader.Reset(t.file)
	t.partial = ""
	return nil
}

// Expect arms the tail with the watermark the next Drain should stop at.
func (t *Tail) Expect(token watermark.Token) { t.outstanding = token }

// Clear disarms the tail so the next Drain reads to EOF.
func (t *Tail) Clear() { t.outstanding = 0 }

// Outstanding returns the armed watermark, or zero.
func (t *Tail) Outstanding() watermark.Token { return t.outstanding }

// Drain returns the non-blank lines appended since the last read, with
// watermarks cut out.
//
// With expectWatermark set and a watermark armed, Drain stops at the
// line carrying that watermark, waiting between passes for the game to
// flush. Otherwise the armed watermark is cleared and Drain reads to
// EOF once. In both cases the tail is disarmed on return.
func (t *Tail) Drain(expectWatermark bool) ([]string, error) {
	if !expectWatermark {
		t.outstanding = 0
	}
	defer func() { t.outstanding = 0 }()

	var lines []string
	failures := 0
	for {
		if failures >= t.options.MaxFailures {
			return lines, fmt.Errorf("%w: %s after %d passes", ErrProtocolTimeout, t.outstanding, failures)
		}

		acknowledged, err := t.readPass(&lines)
		if err != nil {
			return lines, err
		}
		if acknowledged || !t.outstanding.Valid() {
			return lines, nil
		}

		failures++
		t.logger.Debug("watermark not in console log yet, waiting",
			"watermark", t.outstanding, "failures", failures)
		t.options.Clock.Sleep(t.options.DiskLatency)
	}
}

// readPass consumes lines until EOF or until the armed watermark is
// found, appending kept text to lines.
func (t *Tail) readPass(lines *[]string) (acknowledged bool, err error) {
	for {
		line, ok, err := t.nextLine()
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}

		if match, found := watermark.Find(line); found {
			if t.outstanding.Valid() && match.Token == t.outstanding {
				acknowledged = true
				t.logger.Debug("got ack through console log", "watermark", match.Token)
			} else {
				t.logger.Debug("ignoring watermark in console log",
					"found", line[match.Start:match.End], "expected", t.outstanding)
			}
			if rest := line[match.End:]; rest != "" {
				t.pushback, t.hasPushback = rest, true
			}
			line = line[:match.Start]
		}

		if strings.TrimSpace(line) != "" {
			*lines = append(*lines, line)
		}
		if acknowledged {
			return true, nil
		}
	}
}

// nextLine returns the pushed-back remainder if there is one, otherwise
// the next line from the file without its line terminator. A final
// fragment without a newline is held back while a watermark is armed
// and the fragment does not already carry it in full, since the game
// may be midway through flushing that line. Otherwise it is returned as
// a line.
func (t *Tail) nextLine() (string, bool, error) {
	if t.hasPushback {
		line := t.pushback
		t.pushback, t.hasPushback = "", false
		return line, true, nil
	}
	text, err := t.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", false, fmt.Errorf("conlog: reading %s: %w", t.path, err)
	}
	text = t.partial + text
	t.partial = ""
	if text == "" {
		return "", false, nil
	}
	if !strings.HasSuffix(text, "\n") && t.outstanding.Valid() && !carries(text, t.outstanding) {
		t.partial = text
		return "", false, nil
	}
	text = strings.TrimSuffix(text, "\n")
	text = strings.TrimSuffix(text, "\r")
	return text, true, nil
}

// carries reports whether text contains token as a complete watermark:
// one followed by more text, so its digits cannot still be growing.
func carries(text string, token watermark.Token) bool {
	offset := 0
	for {
		match, found := watermark.Find(text[offset:])
		if !found {
			return false
		}
		end := offset + match.End
		if match.Token == token && end < len(text) {
			return true
		}
		offset = end
	}
}

// Close releases the file.
func (t *Tail) Close() error {
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}
