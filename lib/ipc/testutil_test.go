// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"encoding/json"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// scriptedPeer accepts one connection and answers each received command
// with the frames returned by respond. Frames are written verbatim, so
// a test can split or merge them however it likes.
type scriptedPeer struct {
	listener net.Listener
	received chan string
	wg       sync.WaitGroup
}

func startScriptedPeer(t *testing.T, respond func(command string) [][]byte) *scriptedPeer {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	peer := &scriptedPeer{
		listener: listener,
		received: make(chan string, 16),
	}
	peer.wg.Add(1)
	go func() {
		defer peer.wg.Done()
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		var splitter Splitter
		buffer := make([]byte, 4096)
		for {
			n, err := conn.Read(buffer)
			if err != nil {
				return
			}
			for _, frame := range splitter.Feed(buffer[:n]) {
				var message commandMessage
				if err := json.Unmarshal(frame, &message); err != nil {
					t.Errorf("peer received malformed frame %q: %v", frame, err)
					return
				}
				peer.received <- message.Command
				for _, chunk := range respond(message.Command) {
					if len(chunk) == 0 {
						continue
					}
					if _, err := conn.Write(chunk); err != nil {
						return
					}
				}
			}
		}
	}()
	t.Cleanup(func() {
		listener.Close()
		peer.wg.Wait()
	})
	return peer
}

func (p *scriptedPeer) address() string { return p.listener.Addr().String() }

// frame encodes value as a NUL-terminated JSON frame.
func frame(t *testing.T, value any) []byte {
	t.Helper()
	data, err := EncodeMessage(value)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	return data
}

// echoedWatermark extracts the token text from a command's trailing
// y_spt_ipc_echo directive. Safe to call from peer goroutines.
func echoedWatermark(command string) string {
	const directive = "; y_spt_ipc_echo "
	index := strings.LastIndex(command, directive)
	if index < 0 {
		return ""
	}
	return command[index+len(directive):]
}

// startClosingPeer accepts one connection, reads one frame and hangs up.
func startClosingPeer(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		buffer := make([]byte, 4096)
		conn.Read(buffer)
		conn.Close()
	}()
	t.Cleanup(func() {
		listener.Close()
		<-done
	})
	return listener.Addr().String()
}

func fastOptions() Options {
	return Options{PollInterval: 5 * time.Millisecond, MaxFailures: 10}
}
