package mcp

import (
	"bufio"
	"io"
	"strings"
)

// Event is a single server-sent event.
type Event struct {
	// Name is the event field; it defaults to "message" when the server omits it.
	Name string
	Data string
	ID   string
}

// eventReader parses a text/event-stream body into events. Comment lines and
// the retry field are ignored.
type eventReader struct {
	scanner *bufio.Scanner
}

func newEventReader(r io.Reader) *eventReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &eventReader{scanner: scanner}
}

// Next returns the next complete event. It returns io.EOF once the stream is
// exhausted. A trailing event without its terminating blank line is still
// delivered.
func (r *eventReader) Next() (Event, error) {
	var (
		ev      Event
		data    []string
		hasData bool
	)
	dispatch := func() Event {
		ev.Data = strings.Join(data, "\n")
		if ev.Name == "" {
			ev.Name = "message"
		}
		return ev
	}

	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			if hasData {
				return dispatch(), nil
			}
			ev = Event{}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			ev.Name = value
		case "data":
			data = append(data, value)
			hasData = true
		case "id":
			ev.ID = value
		}
	}
	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	if hasData {
		return dispatch(), nil
	}
	return Event{}, io.EOF
}
