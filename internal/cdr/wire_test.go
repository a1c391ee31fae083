package cdr

import (
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2025, 7, 26, 12, 0, 0, 0, time.UTC)

func TestParseFullRecord(t *testing.T) {
	raw := "Call 2025/07/26 10:15:00,0501234567,1001,00:02:30,2025/07/26 10:15:05,2025/07/26 10:17:35,Normal,Changed,0,1001,0501234567,Ext.1001,0501234567,Line:1,Extension,Line,Line,Alice,Trunk,Trunk"

	d, err := Parse(raw, testNow)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.Callee != "0501234567" || d.Caller != "1001" {
		t.Fatalf("unexpected callee/caller: %q %q", d.Callee, d.Caller)
	}
	want := time.Date(2025, 7, 26, 10, 15, 0, 0, time.UTC)
	if !d.CallTime.Equal(want) {
		t.Fatalf("call_time = %v, want %v", d.CallTime, want)
	}
	if d.DurationSeconds == nil || *d.DurationSeconds != 150 {
		t.Fatalf("duration = %v, want 150", d.DurationSeconds)
	}
	if d.TimeAnswered == nil || d.TimeEnd == nil {
		t.Fatalf("expected answered/end timestamps")
	}
	if d.ReasonTerminated != "Normal" || d.ReasonChanged != "Changed" {
		t.Fatalf("unexpected termination metadata: %q %q", d.ReasonTerminated, d.ReasonChanged)
	}
	if d.FinalDispname != "Trunk" {
		t.Fatalf("final_dispname = %q", d.FinalDispname)
	}
}

func TestParseMinimalRecord(t *testing.T) {
	d, err := Parse("10:15:00,0501234567,1001", testNow)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	// Clock-only call_time takes its date from now.
	want := time.Date(2025, 7, 26, 10, 15, 0, 0, time.UTC)
	if !d.CallTime.Equal(want) {
		t.Fatalf("call_time = %v, want %v", d.CallTime, want)
	}
	if d.DurationSeconds != nil {
		t.Fatalf("expected nil duration, got %v", *d.DurationSeconds)
	}
	if d.TimeAnswered != nil || d.TimeEnd != nil {
		t.Fatalf("expected nil optional timestamps")
	}
}

func TestParsePrefixStripping(t *testing.T) {
	with, err := Parse("Call 10:15:00,0501234567,1001", testNow)
	if err != nil {
		t.Fatalf("Parse with prefix: %v", err)
	}
	without, err := Parse("10:15:00,0501234567,1001", testNow)
	if err != nil {
		t.Fatalf("Parse without prefix: %v", err)
	}
	if with != without {
		t.Fatalf("prefix changed the parse: %+v vs %+v", with, without)
	}
}

func TestParseRejectsShortRecord(t *testing.T) {
	for _, raw := range []string{"", "bad", "10:15:00,0501234567"} {
		if _, err := Parse(raw, testNow); !errors.Is(err, ErrInvalidRecord) {
			t.Fatalf("Parse(%q): err = %v, want ErrInvalidRecord", raw, err)
		}
	}
}

func TestParseRejectsBadTimestamp(t *testing.T) {
	if _, err := Parse("not-a-time,0501234567,1001", testNow); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord for bad call_time, got %v", err)
	}
	if _, err := Parse("10:15:00,0501234567,1001,00:01:00,garbage", testNow); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord for bad time_answered, got %v", err)
	}
}

func TestParseDurationDegradesToNil(t *testing.T) {
	d, err := Parse("10:15:00,0501234567,1001,junk", testNow)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.DurationSeconds != nil {
		t.Fatalf("expected nil duration for junk field")
	}

	d, err = Parse("10:15:00,0501234567,1001,01:02:03", testNow)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.DurationSeconds == nil || *d.DurationSeconds != 3723 {
		t.Fatalf("duration = %v, want 3723", d.DurationSeconds)
	}
}
