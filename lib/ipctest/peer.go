// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipctest

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/spt-tools/vagsearch/lib/geom"
	"github.com/spt-tools/vagsearch/lib/ipc"
	"github.com/spt-tools/vagsearch/lib/netutil"
	"github.com/spt-tools/vagsearch/lib/watermark"
)

// PeerOptions configures a Peer.
type PeerOptions struct {
	// Address to listen on. Empty picks a free loopback port.
	Address string

	// IgnoreConLogFile makes the peer accept con_logfile without
	// creating the file.
	IgnoreConLogFile bool

	// StaleEchoes is the number of echoes carrying a wrong watermark
	// sent ahead of the real one for every y_spt_ipc_echo.
	StaleEchoes int

	// DropEchoes makes the peer never answer y_spt_ipc_echo.
	DropEchoes bool

	// Logger receives one debug line per command. Nil discards.
	Logger *slog.Logger
}

// Peer is a fake SPT IPC server backed by a World.
type Peer struct {
	options  PeerOptions
	logger   *slog.Logger
	listener net.Listener

	// mu guards world, the console log and the command history.
	mu         sync.Mutex
	world      *World
	consoleLog *os.File
	commands   []string

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
	closed  bool

	wg sync.WaitGroup
}

// StartPeer listens and serves world until Close.
func StartPeer(world *World, options PeerOptions) (*Peer, error) {
	if options.Address == "" {
		options.Address = "127.0.0.1:0"
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	listener, err := net.Listen("tcp", options.Address)
	if err != nil {
		return nil, fmt.Errorf("ipctest: listen: %w", err)
	}

	peer := &Peer{
		options:  options,
		logger:   options.Logger,
		listener: listener,
		world:    world,
		conns:    make(map[net.Conn]struct{}),
	}
	peer.wg.Add(1)
	go peer.acceptLoop()
	return peer, nil
}

// Address returns the listening address.
func (p *Peer) Address() string {
	return p.listener.Addr().String()
}

// Commands returns every command line received, without the appended
// watermark directives.
func (p *Peer) Commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.commands...)
}

// WithWorld runs fn with exclusive access to the world.
func (p *Peer) WithWorld(fn func(*World)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.world)
}

// Close stops listening, disconnects clients and waits for every
// connection handler to return.
func (p *Peer) Close() error {
	p.connsMu.Lock()
	p.closed = true
	err := p.listener.Close()
	for conn := range p.conns {
		conn.Close()
	}
	p.connsMu.Unlock()

	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.consoleLog != nil {
		p.consoleLog.Close()
		p.consoleLog = nil
	}
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (p *Peer) acceptLoop() {
	defer p.wg.Done()
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				p.logger.Error("accept failed", "error", err)
			}
			return
		}

		p.connsMu.Lock()
		if p.closed {
			p.connsMu.Unlock()
			conn.Close()
			return
		}
		p.conns[conn] = struct{}{}
		p.wg.Add(1)
		p.connsMu.Unlock()

		go p.serve(conn)
	}
}

func (p *Peer) serve(conn net.Conn) {
	defer p.wg.Done()
	defer func() {
		p.connsMu.Lock()
		delete(p.conns, conn)
		p.connsMu.Unlock()
		conn.Close()
	}()

	var splitter ipc.Splitter
	buffer := make([]byte, 8192)
	for {
		n, err := conn.Read(buffer)
		for _, frame := range splitter.Feed(buffer[:n]) {
			reply, handleErr := p.handleFrame(frame)
			if handleErr != nil {
				p.logger.Warn("rejecting frame", "error", handleErr)
				return
			}
			if _, writeErr := conn.Write(reply); writeErr != nil {
				if !netutil.IsExpectedCloseError(writeErr) {
					p.logger.Error("write failed", "error", writeErr)
				}
				return
			}
		}
		if err != nil {
			if !netutil.IsExpectedCloseError(err) {
				p.logger.Error("read failed", "error", err)
			}
			return
		}
	}
}

// commandFrame is the client's request frame.
type commandFrame struct {
	Type    string `json:"type"`
	Command string `json:"cmd"`
}

func (p *Peer) handleFrame(frame []byte) ([]byte, error) {
	message, err := ipc.DecodeMessage(frame)
	if err != nil {
		return nil, err
	}
	var request commandFrame
	if err := message.Decode(&request); err != nil {
		return nil, err
	}
	if request.Type != ipc.TypeCommand {
		return nil, fmt.Errorf("ipctest: unexpected frame type %q", request.Type)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	reply, err := ipc.EncodeMessage(map[string]string{"type": ipc.TypeAck})
	if err != nil {
		return nil, err
	}
	var recorded []string
	for _, part := range strings.Split(request.Command, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !isDirective(part) {
			recorded = append(recorded, part)
		}
		frames, err := p.executeLocked(part)
		if err != nil {
			return nil, err
		}
		for _, value := range frames {
			encoded, err := ipc.EncodeMessage(value)
			if err != nil {
				return nil, err
			}
			reply = append(reply, encoded...)
		}
	}
	p.commands = append(p.commands, strings.Join(recorded, "; "))
	p.logger.Debug("handled command", "cmd", request.Command)
	return reply, nil
}

// isDirective reports whether part is a watermark echo appended by the
// client rather than part of the caller's command.
func isDirective(part string) bool {
	name, argument, _ := strings.Cut(part, " ")
	if name != "y_spt_ipc_echo" && name != "echo" {
		return false
	}
	match, ok := watermark.MatchPrefix(argument)
	return ok && match.End == len(argument)
}

// executeLocked runs one console command and returns the IPC frames it
// produces. Console output is written to the mirror as a side effect.
func (p *Peer) executeLocked(part string) ([]any, error) {
	name, rest, _ := strings.Cut(part, " ")
	arguments := strings.Fields(rest)

	switch name {
	case "y_spt_ipc_echo":
		if p.options.DropEchoes {
			return nil, nil
		}
		var frames []any
		for i := 0; i < p.options.StaleEchoes; i++ {
			frames = append(frames, map[string]string{"type": ipc.TypeEcho, "text": staleEcho(rest, i)})
		}
		return append(frames, map[string]string{"type": ipc.TypeEcho, "text": rest}), nil

	case "echo":
		p.consoleLocked(strings.Trim(rest, `"`))
		return nil, nil

	case "y_spt_ipc_gamedir":
		return []any{map[string]string{"type": "gamedir", "path": p.world.GameDir}}, nil

	case "con_logfile":
		if len(arguments) != 1 {
			return nil, fmt.Errorf("ipctest: con_logfile takes one argument, got %q", rest)
		}
		return nil, p.openConsoleLocked(arguments[0])

	case "y_spt_find_portals":
		for _, line := range p.world.FindPortals() {
			p.consoleLocked(line)
		}
		return nil, nil

	case "y_spt_ipc_ent":
		index, err := parseIndex(arguments)
		if err != nil {
			return nil, err
		}
		entity, ok := p.world.Entity(index)
		if !ok {
			return nil, nil
		}
		return []any{map[string]any{"type": "ent", "entity": entity}}, nil

	case "y_spt_ipc_properties":
		index, err := parseIndex(arguments)
		if err != nil {
			return nil, err
		}
		properties, ok := p.world.Properties(index, arguments[1:])
		if !ok {
			return nil, nil
		}
		return []any{map[string]any{"type": "properties", "entity": properties}}, nil

	case "setpos":
		position, err := parsePosition(arguments)
		if err != nil {
			return nil, err
		}
		for _, line := range p.world.SetPos(position) {
			p.consoleLocked(line)
		}
		return nil, nil

	default:
		p.consoleLocked("Unknown command \"" + name + "\"")
		return nil, nil
	}
}

// staleEcho returns a watermark different from text.
func staleEcho(text string, offset int) string {
	match, _ := watermark.MatchPrefix(text)
	return watermark.Token(uint32(match.Token)%watermark.MaxToken + 1 + uint32(offset)).String()
}

func (p *Peer) openConsoleLocked(name string) error {
	if p.options.IgnoreConLogFile {
		return nil
	}
	if p.consoleLog != nil {
		p.consoleLog.Close()
	}
	file, err := os.OpenFile(filepath.Join(p.world.GameDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("ipctest: creating console log: %w", err)
	}
	p.consoleLog = file
	return nil
}

func (p *Peer) consoleLocked(line string) {
	if p.consoleLog == nil {
		return
	}
	if _, err := p.consoleLog.WriteString(line + "\n"); err != nil {
		p.logger.Error("writing console log", "error", err)
	}
}

func parseIndex(arguments []string) (int, error) {
	if len(arguments) == 0 {
		return 0, errors.New("ipctest: missing entity index")
	}
	index, err := strconv.Atoi(arguments[0])
	if err != nil {
		return 0, fmt.Errorf("ipctest: entity index: %w", err)
	}
	return index, nil
}

func parsePosition(arguments []string) (geom.Vec3, error) {
	if len(arguments) != 3 {
		return geom.Vec3{}, fmt.Errorf("ipctest: setpos takes three coordinates, got %d", len(arguments))
	}
	var position geom.Vec3
	for i, argument := range arguments {
		value, err := strconv.ParseFloat(argument, 32)
		if err != nil {
			return geom.Vec3{}, fmt.Errorf("ipctest: setpos coordinate %q: %w", argument, err)
		}
		position[i] = float32(value)
	}
	return position, nil
}
