// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package watermark

import (
	"math/rand/v2"
	"regexp"
	"strconv"
	"sync"
)

// Prefix is the literal that introduces a watermark in command text and
// in peer output.
const Prefix = "magic"

// MaxToken is the upper bound (inclusive) of generated tokens.
const MaxToken = 1000000

// pattern matches a watermark anywhere in a string. The digit group may
// be empty.
var pattern = regexp.MustCompile(Prefix + `(\d*)`)

// Token is a one-time watermark value. The zero Token means "no
// watermark outstanding" and is never generated.
type Token uint32

// String returns the watermark as it appears on the wire, e.g. "magic42".
func (t Token) String() string {
	return Prefix + strconv.FormatUint(uint64(t), 10)
}

// Valid reports whether t is a real token rather than the zero value.
func (t Token) Valid() bool { return t != 0 }

// Generator produces fresh tokens.
type Generator interface {
	Next() Token
}

// Random draws tokens uniformly from [1, MaxToken]. It never returns
// the same token twice in a row, so a straggling echo of the previous
// command cannot be mistaken for the current one.
type Random struct {
	mu   sync.Mutex
	rng  *rand.Rand
	last Token
}

// NewRandom returns a Random generator. A nil source uses a randomly
// seeded PCG.
func NewRandom(source rand.Source) *Random {
	if source == nil {
		source = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Random{rng: rand.New(source)}
}

// Next returns a fresh token.
func (r *Random) Next() Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		token := Token(r.rng.IntN(MaxToken) + 1)
		if token != r.last {
			r.last = token
			return token
		}
	}
}

// Sequence hands out tokens from a fixed list, then counts upward from
// the last one. Tests use it to make watermarks predictable.
type Sequence struct {
	mu     sync.Mutex
	tokens []Token
	next   Token
}

// NewSequence returns a Sequence yielding tokens in order.
func NewSequence(tokens ...Token) *Sequence {
	return &Sequence{tokens: tokens, next: 1}
}

// Next returns the next token in the sequence.
func (s *Sequence) Next() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tokens) > 0 {
		token := s.tokens[0]
		s.tokens = s.tokens[1:]
		s.next = token + 1
		return token
	}
	token := s.next
	s.next++
	return token
}

// Match describes one watermark occurrence inside a string.
type Match struct {
	// Start and End delimit the whole occurrence, prefix included,
	// as byte offsets suitable for slicing.
	Start, End int

	// Token is the parsed digits. Zero when the digits were empty or
	// overflowed, in which case the occurrence can never be accepted.
	Token Token
}

// Find returns the first watermark occurrence in s.
func Find(s string) (Match, bool) {
	location := pattern.FindStringSubmatchIndex(s)
	if location == nil {
		return Match{}, false
	}
	return Match{
		Start: location[0],
		End:   location[1],
		Token: parseDigits(s[location[2]:location[3]]),
	}, true
}

// MatchPrefix reports whether s begins with a watermark and returns it.
// Echo messages on the command channel are matched this way: the
// watermark must lead the echoed text.
func MatchPrefix(s string) (Match, bool) {
	match, found := Find(s)
	if !found || match.Start != 0 {
		return Match{}, false
	}
	return match, true
}

func parseDigits(digits string) Token {
	if digits == "" {
		return 0
	}
	value, err := strconv.ParseUint(digits, 10, 32)
	if err != nil {
		return 0
	}
	return Token(value)
}
