// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session couples the IPC command channel with the console log
// mirror so that a command can be sent and its effects observed on both.
//
// Every command carries a fresh watermark. The IPC channel echoes the
// watermark once SPT has processed the command; when console output is
// expected, an "echo magicN" is appended too, so the console log shows
// the same token after the command's output. [Session.SendAndCollect]
// returns once the IPC echo arrives; [Session.SendAndDrainConsole]
// additionally waits for the console echo and returns the lines that
// preceded it.
//
// A Session owns its connection and console tail exclusively. All
// methods are serialized by one mutex, so at most one command is in
// flight and an echo is never attributed to a different command.
package session
