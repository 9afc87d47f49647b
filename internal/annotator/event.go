package annotator

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// EventKind identifies a user action
type EventKind string

const (
	EventClear   EventKind = "clear"
	EventFrame   EventKind = "frame"
	EventLabel   EventKind = "label"
	EventUnlabel EventKind = "unlabel"
	EventQuality EventKind = "quality"
	EventComment EventKind = "comment"
	EventReject  EventKind = "reject"
	EventAccept  EventKind = "accept"
	EventSave    EventKind = "save"
)

// Event is one user action. Value holds the frame index or label id, Text the
// quality or comment.
type Event struct {
	Kind  EventKind
	Value int
	Text  string
}

// ParseEvent parses a script line such as "label 2" or "comment too dark"
func ParseEvent(line string) (Event, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Event{}, fmt.Errorf("empty event")
	}

	kind := EventKind(strings.ToLower(fields[0]))
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))

	switch kind {
	case EventClear, EventUnlabel, EventReject, EventAccept, EventSave:
		if rest != "" {
			return Event{}, fmt.Errorf("%s takes no argument", kind)
		}
		return Event{Kind: kind}, nil
	case EventFrame, EventLabel:
		if len(fields) != 2 {
			return Event{}, fmt.Errorf("%s needs exactly one integer argument", kind)
		}
		value, err := strconv.Atoi(fields[1])
		if err != nil {
			return Event{}, fmt.Errorf("invalid %s argument '%s': %w", kind, fields[1], err)
		}
		return Event{Kind: kind, Value: value}, nil
	case EventQuality, EventComment:
		return Event{Kind: kind, Text: rest}, nil
	}

	return Event{}, fmt.Errorf("unknown event '%s'", fields[0])
}

// ReadEvents parses an event script. Blank lines and lines starting with #
// are skipped.
func ReadEvents(r io.Reader) ([]Event, error) {
	var events []Event
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ev, err := ParseEvent(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return events, nil
}
