// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"io"
	"reflect"

	"github.com/alecthomas/chroma/v2/quick"
)

// WriteJSON marshals value as indented JSON and writes it to w. When
// highlight is set the output is syntax-highlighted for a 256-color
// terminal; a highlighter failure falls back to plain output.
//
// Nil slices are normalized to empty slices before serialization, so
// callers never need to guard against null JSON output.
func WriteJSON(w io.Writer, value any, highlight bool) error {
	data, err := json.MarshalIndent(normalizeNilSlice(value), "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if highlight {
		if err := quick.Highlight(w, string(data), "json", "terminal256", "monokai"); err == nil {
			return nil
		}
	}
	_, err = w.Write(data)
	return err
}

// normalizeNilSlice returns an empty slice of the same type if value
// is a nil slice, so that JSON serialization produces [] instead of
// null. Returns value unchanged for all other types.
func normalizeNilSlice(value any) any {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Slice && v.IsNil() {
		return reflect.MakeSlice(v.Type(), 0, 0).Interface()
	}
	return value
}
