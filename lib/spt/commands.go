// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package spt

import (
	"strconv"
	"strings"

	"github.com/spt-tools/vagsearch/lib/geom"
)

// PlayerIndex is the entity index of the local player.
const PlayerIndex = 0

// GameDir asks SPT for the game directory. The trailing empty echo
// flushes the console so a following con_logfile takes effect.
func GameDir() string {
	return `y_spt_ipc_gamedir; echo ""`
}

// ConLogFile starts mirroring the console to name, relative to the game
// directory. The echo forces a write so the file is created.
func ConLogFile(name string) string {
	return "con_logfile " + name + "; echo MAKE THE FILE"
}

// FindPortals lists every portal entity on the console.
func FindPortals() string {
	return "y_spt_find_portals"
}

// EntityCommand requests all networked properties of entity index.
func EntityCommand(index int) string {
	return "y_spt_ipc_ent " + strconv.Itoa(index)
}

// Properties requests the named properties of entity index.
func Properties(index int, names ...string) string {
	var builder strings.Builder
	builder.WriteString("y_spt_ipc_properties ")
	builder.WriteString(strconv.Itoa(index))
	for _, name := range names {
		builder.WriteByte(' ')
		builder.WriteString(name)
	}
	return builder.String()
}

// SetPos teleports the player so that its origin is position.
func SetPos(position geom.Vec3) string {
	return "setpos " + position.String()
}
