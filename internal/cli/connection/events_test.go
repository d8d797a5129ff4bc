package connection

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestReadEvents(t *testing.T) {
	input := ": ping\n\n" +
		"id: 1\nevent: change\ndata: {\"a\":1}\n\n" +
		"data: line1\ndata: line2\n\n" +
		"event: closed\ndata: {}\n\n"

	var got []Event
	err := readEvents(strings.NewReader(input), func(ev Event) error {
		got = append(got, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("readEvents() error = %v", err)
	}

	want := []Event{
		{ID: "1", Name: "change", Data: `{"a":1}`},
		{Name: "message", Data: "line1\nline2"},
		{Name: "closed", Data: "{}"},
	}
	if len(got) != len(want) {
		t.Fatalf("events = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestReadEvents_CallbackError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := readEvents(strings.NewReader("data: a\n\ndata: b\n\n"), func(Event) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want boom", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestHTTPClient_Stream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"code":"SM-SESS-4040","message":"session not found"}`))
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for i := 1; i <= 3; i++ {
			fmt.Fprintf(w, "id: %d\nevent: change\ndata: {}\n\n", i)
		}
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "")

	var ids []string
	err := client.Stream(context.Background(), "/events", func(ev Event) error {
		ids = append(ids, ev.ID)
		if len(ids) == 2 {
			return ErrStopStream
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if strings.Join(ids, ",") != "1,2" {
		t.Errorf("ids = %v, want [1 2]", ids)
	}

	err = client.Stream(context.Background(), "/missing", func(Event) error { return nil })
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "SM-SESS-4040" {
		t.Errorf("Stream() error = %v, want SM-SESS-4040", err)
	}
}
