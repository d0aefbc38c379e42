// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package spt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spt-tools/vagsearch/lib/geom"
	"github.com/spt-tools/vagsearch/lib/ipc"
)

// ErrMissingProperty is returned when a payload lacks a property the
// caller needs.
var ErrMissingProperty = errors.New("spt: missing property")

// ErrNoPayload is returned when a command produced no IPC response
// where one was required.
var ErrNoPayload = errors.New("spt: no response payload")

// Property names used by the portal locator and the search.
const (
	PropOrigin            = "m_vecOrigin"
	PropAngles            = "m_angRotation"
	PropActivated         = "m_bActivated"
	PropLinkedPortal      = "m_hLinkedPortal"
	PropIsPortal2         = "m_bIsPortal2"
	PropFlags             = "m_fFlags"
	PropAnimatedEveryTick = "m_bAnimatedEveryTick"
	PropPortalEnvironment = "m_hPortalEnvironment"
)

// FlagDucking is the m_fFlags bit set while the player is crouched.
const FlagDucking = 1 << 1

// InvalidHandle is the handle value of an unset entity reference.
const InvalidHandle = -1

// HandleToIndex extracts the entity index from an entity handle.
func HandleToIndex(handle int64) int {
	return int(handle&0x7ff) - 1
}

// Entity is the property map of one entity payload.
type Entity map[string]json.RawMessage

// entityPayload is the envelope of ent and properties responses.
type entityPayload struct {
	Entity Entity `json:"entity"`
}

// DecodeEntity extracts the entity object from a response message.
func DecodeEntity(message ipc.Message) (Entity, error) {
	var payload entityPayload
	if err := message.Decode(&payload); err != nil {
		return nil, err
	}
	if payload.Entity == nil {
		return nil, fmt.Errorf("%w: entity (message type %q)", ErrMissingProperty, message.Type)
	}
	return payload.Entity, nil
}

// FirstEntity decodes the entity of the first response in messages.
func FirstEntity(messages []ipc.Message) (Entity, error) {
	if len(messages) == 0 {
		return nil, ErrNoPayload
	}
	return DecodeEntity(messages[0])
}

// Has reports whether the property is present.
func (e Entity) Has(name string) bool {
	_, ok := e[name]
	return ok
}

// Float returns a numeric property.
func (e Entity) Float(name string) (float64, error) {
	raw, ok := e[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingProperty, name)
	}
	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, fmt.Errorf("spt: property %s: %w", name, err)
	}
	return value, nil
}

// Int returns an integer property. Booleans sent as true/false decode as
// 1 and 0.
func (e Entity) Int(name string) (int64, error) {
	raw, ok := e[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingProperty, name)
	}
	switch string(raw) {
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	}
	value, err := strconv.ParseInt(string(raw), 10, 64)
	if err == nil {
		return value, nil
	}
	floatValue, floatErr := e.Float(name)
	if floatErr != nil {
		return 0, floatErr
	}
	return int64(floatValue), nil
}

// Bool returns a flag property, true when non-zero.
func (e Entity) Bool(name string) (bool, error) {
	value, err := e.Int(name)
	if err != nil {
		return false, err
	}
	return value != 0, nil
}

// Vector returns the three indexed components of a vector property.
func (e Entity) Vector(name string) (geom.Vec3, error) {
	var vector geom.Vec3
	for i := range vector {
		component, err := e.Float(name + "[" + strconv.Itoa(i) + "]")
		if err != nil {
			return geom.Vec3{}, err
		}
		vector[i] = float32(component)
	}
	return vector, nil
}

// Path is the payload of y_spt_ipc_gamedir.
type Path struct {
	Path string `json:"path"`
}

// DecodeGameDir extracts the game directory from the responses to
// [GameDir].
func DecodeGameDir(messages []ipc.Message) (string, error) {
	if len(messages) == 0 {
		return "", ErrNoPayload
	}
	var payload Path
	if err := messages[0].Decode(&payload); err != nil {
		return "", err
	}
	if payload.Path == "" {
		return "", fmt.Errorf("%w: path", ErrMissingProperty)
	}
	return payload.Path, nil
}
