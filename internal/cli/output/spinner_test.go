package output

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer guards a buffer shared with the spinner goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinner_Lifecycle(t *testing.T) {
	tests := []struct {
		name string
		end  func(*Spinner)
		want string
	}{
		{"stop", (*Spinner).Stop, "\r\033[K"},
		{"success", func(s *Spinner) { s.Success("done") }, "ok: done\n"},
		{"fail", func(s *Spinner) { s.Fail("refused") }, "failed: refused\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out syncBuffer
			s := NewSpinner(&out, "Working")
			s.interval = time.Millisecond
			s.Start()
			s.Start()
			time.Sleep(10 * time.Millisecond)
			tt.end(s)

			got := out.String()
			if !strings.Contains(got, "Working") {
				t.Errorf("output = %q, want the message", got)
			}
			if !strings.HasSuffix(got, tt.want) {
				t.Errorf("output = %q, want suffix %q", got, tt.want)
			}

			// Nothing is drawn after the spinner ends.
			time.Sleep(5 * time.Millisecond)
			if out.String() != got {
				t.Error("spinner kept drawing after it ended")
			}
		})
	}
}

func TestSpinner_EndWithoutStart(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, "Working")
	s.Stop()
	s.Fail("x")
	if strings.Contains(buf.String(), "Working") {
		t.Errorf("output = %q, spinner never started", buf.String())
	}
}
