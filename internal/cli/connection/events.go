package connection

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Event is one server-sent event.
type Event struct {
	ID   string
	Name string
	Data string
}

// ErrStopStream can be returned by a stream callback to end the stream
// without error.
var ErrStopStream = errors.New("stop stream")

// Stream opens a server-sent event stream at path and calls fn for every
// event until the server ends the stream, ctx is cancelled, or fn returns an
// error. Comment lines such as heartbeats are skipped.
func (c *HTTPClient) Stream(ctx context.Context, path string, fn func(Event) error) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode >= 400 {
		return ParseResponse(resp, nil)
	}
	defer resp.Body.Close()

	err = readEvents(resp.Body, fn)
	switch {
	case errors.Is(err, ErrStopStream):
		return nil
	case err != nil && ctx.Err() != nil:
		return nil
	default:
		return err
	}
}

func readEvents(r io.Reader, fn func(Event) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		ev   Event
		data []string
	)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if ev.Name == "" && len(data) == 0 {
				continue
			}
			if ev.Name == "" {
				ev.Name = "message"
			}
			ev.Data = strings.Join(data, "\n")
			if err := fn(ev); err != nil {
				return err
			}
			ev, data = Event{}, nil
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		name, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch name {
		case "id":
			ev.ID = value
		case "event":
			ev.Name = value
		case "data":
			data = append(data, value)
		}
	}
	return scanner.Err()
}
