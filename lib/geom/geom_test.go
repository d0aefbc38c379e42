// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package geom

import (
	"math"
	"strconv"
	"testing"
)

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-6
}

func TestAnglesToVector(t *testing.T) {
	tests := []struct {
		name   string
		angles Vec3
		want   Vec3
	}{
		{"east", Vec3{0, 0, 0}, Vec3{1, 0, 0}},
		{"north", Vec3{0, 90, 0}, Vec3{0, 1, 0}},
		{"west", Vec3{0, 180, 0}, Vec3{-1, 0, 0}},
		{"look down", Vec3{90, 0, 0}, Vec3{0, 0, -1}},
		{"look up", Vec3{-90, 0, 0}, Vec3{0, 0, 1}},
		{"roll ignored", Vec3{0, 0, 45}, Vec3{1, 0, 0}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := AnglesToVector(test.angles)
			for i := range got {
				if !near(got[i], test.want[i]) {
					t.Fatalf("AnglesToVector(%v) = %v, want %v", test.angles, got, test.want)
				}
			}
		})
	}
}

func TestArgMaxAbs(t *testing.T) {
	tests := []struct {
		vector Vec3
		want   int
	}{
		{Vec3{1, 0, 0}, 0},
		{Vec3{0.1, -0.9, 0.3}, 1},
		{Vec3{0, 0, -1}, 2},
		{Vec3{0.5, 0.5, 0}, 0},
	}
	for _, test := range tests {
		if got := test.vector.ArgMaxAbs(); got != test.want {
			t.Errorf("%v.ArgMaxAbs() = %d, want %d", test.vector, got, test.want)
		}
	}
}

func TestDistance(t *testing.T) {
	if got := (Vec3{3, 4, 0}).Distance(Vec3{}); got != 5 {
		t.Errorf("Distance = %v, want 5", got)
	}
}

func TestFormatFloatRoundTrips(t *testing.T) {
	values := []float32{0, 1, -1, 0.1, 123.456, -512.03125, 1e-7}
	for _, value := range values {
		text := FormatFloat(value)
		parsed, err := strconv.ParseFloat(text, 32)
		if err != nil {
			t.Fatalf("ParseFloat(%q): %v", text, err)
		}
		if float32(parsed) != value {
			t.Errorf("FormatFloat(%v) = %q, parses back as %v", value, text, float32(parsed))
		}
	}

	if got := (Vec3{1, -2.5, 64}).String(); got != "1 -2.5 64" {
		t.Errorf("String = %q, want %q", got, "1 -2.5 64")
	}
}

func TestStepTowardIsMinimal(t *testing.T) {
	start := float32(128.25)
	up := StepToward(start, 1)
	down := StepToward(start, -1)
	if !(up > start && down < start) {
		t.Fatalf("StepToward did not move: up=%v down=%v", up, down)
	}
	if math.Float32bits(up)-math.Float32bits(start) != 1 {
		t.Errorf("upward step is not one ulp")
	}
	if math.Float32bits(start)-math.Float32bits(down) != 1 {
		t.Errorf("downward step is not one ulp")
	}
	if FormatFloat(up) == FormatFloat(start) {
		t.Errorf("adjacent values format identically: %s", FormatFloat(up))
	}
	if StepToward(start, 0) != start {
		t.Errorf("zero sign moved the value")
	}
}

func TestULPDistance(t *testing.T) {
	start := float32(-0.5)
	value := start
	for i := 0; i < 5; i++ {
		value = StepToward(value, 1)
	}
	if got := ULPDistance(start, value); got != 5 {
		t.Errorf("ULPDistance after 5 upward steps = %d, want 5", got)
	}
	if got := ULPDistance(value, start); got != -5 {
		t.Errorf("reverse ULPDistance = %d, want -5", got)
	}

	// Crossing zero counts the values on both sides.
	negative := StepToward(0, -1)
	positive := StepToward(0, 1)
	if got := ULPDistance(negative, positive); got != 2 {
		t.Errorf("ULPDistance across zero = %d, want 2", got)
	}
}
