package cdr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// The PBX reports one call per connection/request as a single line of
// comma-separated fields in a fixed position order, optionally prefixed
// with the literal "Call ". Only the first three fields are mandatory.
//
// Field positions:
//
//	0  call_time            (required)
//	1  callee               (required)
//	2  caller               (required)
//	3  duration  H:MM:SS
//	4  time_answered
//	5  time_end
//	6  reason_terminated
//	7  reason_changed
//	8  missed_queue_calls
//	9  from_no
//	10 to_no
//	11 to_dn
//	12 final_number
//	13 final_dn
//	14 from_type
//	15 to_type
//	16 final_type
//	17 from_dispname
//	18 to_dispname
//	19 final_dispname

// ErrInvalidRecord is returned when the payload cannot become a Draft.
var ErrInvalidRecord = errors.New("invalid cdr record")

const (
	callPrefix  = "Call "
	minFields   = 3
	timeLayout  = "2006-01-02 15:04:05"
	clockLayout = "15:04:05"
)

// Draft is a parsed but not yet priced call record. Every optional field
// defaults to its explicit zero value; pointers mark absent timestamps
// and duration.
type Draft struct {
	CallTime time.Time
	Callee   string
	Caller   string

	// DurationSeconds is nil when the PBX omitted or mangled the field.
	DurationSeconds *int

	TimeAnswered *time.Time
	TimeEnd      *time.Time

	ReasonTerminated string
	ReasonChanged    string
	MissedQueueCalls string

	FromNo        string
	ToNo          string
	ToDN          string
	FinalNumber   string
	FinalDN       string
	FromType      string
	ToType        string
	FinalType     string
	FromDispname  string
	ToDispname    string
	FinalDispname string
}

// Parse turns one raw PBX line into a Draft.
//
// now supplies the date for clock-only call_time values (the PBX sends bare
// HH:MM:SS on some firmware). Date separators "/" are normalized to "-"
// before parsing. A short record or an unparseable timestamp fails with
// ErrInvalidRecord; an unparseable duration degrades to nil.
func Parse(raw string, now time.Time) (Draft, error) {
	line := strings.TrimSpace(raw)
	line = strings.TrimPrefix(line, callPrefix)

	fields := strings.Split(line, ",")
	if len(fields) < minFields {
		return Draft{}, fmt.Errorf("%w: got %d fields, need at least %d", ErrInvalidRecord, len(fields), minFields)
	}

	field := func(i int) string {
		if i < len(fields) {
			return strings.TrimSpace(fields[i])
		}
		return ""
	}

	callTime, err := parseTimestamp(field(0), now)
	if err != nil {
		return Draft{}, fmt.Errorf("%w: call_time: %v", ErrInvalidRecord, err)
	}

	d := Draft{
		CallTime: callTime,
		Callee:   field(1),
		Caller:   field(2),

		ReasonTerminated: field(6),
		ReasonChanged:    field(7),
		MissedQueueCalls: field(8),
		FromNo:           field(9),
		ToNo:             field(10),
		ToDN:             field(11),
		FinalNumber:      field(12),
		FinalDN:          field(13),
		FromType:         field(14),
		ToType:           field(15),
		FinalType:        field(16),
		FromDispname:     field(17),
		ToDispname:       field(18),
		FinalDispname:    field(19),
	}
	if d.Callee == "" || d.Caller == "" {
		return Draft{}, fmt.Errorf("%w: callee and caller are required", ErrInvalidRecord)
	}

	d.DurationSeconds = parseDuration(field(3))

	if d.TimeAnswered, err = parseOptionalTimestamp(field(4), now); err != nil {
		return Draft{}, fmt.Errorf("%w: time_answered: %v", ErrInvalidRecord, err)
	}
	if d.TimeEnd, err = parseOptionalTimestamp(field(5), now); err != nil {
		return Draft{}, fmt.Errorf("%w: time_end: %v", ErrInvalidRecord, err)
	}

	return d, nil
}

func parseTimestamp(v string, now time.Time) (time.Time, error) {
	if v == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	v = strings.ReplaceAll(v, "/", "-")

	if t, err := time.ParseInLocation(timeLayout, v, time.UTC); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(clockLayout, v, time.UTC); err == nil {
		y, m, day := now.UTC().Date()
		return time.Date(y, m, day, t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", v)
}

func parseOptionalTimestamp(v string, now time.Time) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := parseTimestamp(v, now)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseDuration converts H:MM:SS to total seconds. The PBX occasionally
// sends garbage here; that is not worth rejecting the whole record for.
func parseDuration(v string) *int {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ":")
	if len(parts) != 3 {
		return nil
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	s, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil || h < 0 || m < 0 || s < 0 {
		return nil
	}
	total := h*3600 + m*60 + s
	return &total
}
