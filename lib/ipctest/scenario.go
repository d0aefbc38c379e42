// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipctest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// ParseScenario strips JSONC comments and trailing commas from data and
// decodes the result into a World. The format is World's JSON form:
//
//	{
//	  // standing in front of the blue portal
//	  "player": {"origin": [0, 0, 0], "crouched": true, "noclip": true},
//	  "portals": [
//	    {"index": 2, "origin": [256, 0, 64], "angles": [0, 180, 0], "activated": true, "linked": 3},
//	    {"index": 3, "origin": [-256, 0, 64], "angles": [0, 0, 0], "activated": true, "linked": 2, "orange": true},
//	  ],
//	  "boundary": {"portal": 2, "start": 4, "width": 1, "destination": [0, 2048, 0]},
//	}
//
// Player environment and unset portal links default to no entity.
func ParseScenario(data []byte) (*World, error) {
	var raw struct {
		World
		Player *struct {
			Player
			Environment *int `json:"environment"`
		} `json:"player"`
		Portals []struct {
			Portal
			Linked *int `json:"linked"`
		} `json:"portals"`
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}

	world := raw.World
	world.Player = Player{Environment: NoEntity}
	if raw.Player != nil {
		world.Player = raw.Player.Player
		world.Player.Environment = NoEntity
		if raw.Player.Environment != nil {
			world.Player.Environment = *raw.Player.Environment
		}
	}
	world.Portals = make([]Portal, 0, len(raw.Portals))
	for _, entry := range raw.Portals {
		portal := entry.Portal
		portal.Linked = NoEntity
		if entry.Linked != nil {
			portal.Linked = *entry.Linked
		}
		world.Portals = append(world.Portals, portal)
	}

	if err := world.Validate(); err != nil {
		return nil, err
	}
	return &world, nil
}

// ReadScenario reads and parses a JSONC scenario file.
func ReadScenario(path string) (*World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	world, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return world, nil
}
