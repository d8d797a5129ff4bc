package metric

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/syncmesh-go/internal/core/domain"
	"github.com/yndnr/syncmesh-go/internal/core/replication"
)

var _ replication.Recorder = (*Registry)(nil)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}
	if r.registry == nil {
		t.Error("registry field is nil")
	}
	if r.SessionsActive == nil || r.CommandsResolved == nil || r.RequestsTotal == nil {
		t.Error("metrics not initialised")
	}
}

func TestGlobal(t *testing.T) {
	r1 := Global()
	r2 := Global()
	if r1 != r2 {
		t.Error("Global() should return the same instance")
	}
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	r.SessionConnected()
	r.ObserveRequest(http.MethodGet, "/health", http.StatusOK, 3*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		"syncmesh_session_active 1",
		`syncmesh_http_requests_total{method="GET",route="/health",status="200"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRegistry_Recorder(t *testing.T) {
	r := NewRegistry()

	r.SessionConnected()
	r.SessionConnected()
	r.SessionDisconnected()
	r.AuthorityClaimed()
	r.CommandSubmitted("toggle")
	r.CommandResolved("toggle", "OK", time.Millisecond)
	r.CommandResolved("toggle", domain.ErrQueueFull.Code, time.Millisecond)
	r.QueueDepth("switch/isOn", 3)
	r.Committed()
	r.NotificationDelivered()
	r.NotificationDropped()

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"sessions active", testutil.ToFloat64(r.SessionsActive), 1},
		{"sessions connected", testutil.ToFloat64(r.SessionsConnected), 2},
		{"authorities held", testutil.ToFloat64(r.AuthoritiesHeld), 1},
		{"submitted", testutil.ToFloat64(r.CommandsSubmitted.WithLabelValues("toggle")), 1},
		{"resolved ok", testutil.ToFloat64(r.CommandsResolved.WithLabelValues("toggle", "OK")), 1},
		{"resolved full", testutil.ToFloat64(r.CommandsResolved.WithLabelValues("toggle", domain.ErrQueueFull.Code)), 1},
		{"queue depth", testutil.ToFloat64(r.PendingCommands.WithLabelValues("switch/isOn")), 3},
		{"commits", testutil.ToFloat64(r.Commits), 1},
		{"dropped", testutil.ToFloat64(r.NotificationsDropped), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestRegistry_WithNode(t *testing.T) {
	r := NewRegistry()
	cfg := replication.DefaultConfig()
	cfg.Recorder = r
	node := replication.NewNode(cfg)
	defer node.Close()

	if _, err := node.DeclareField(context.Background(), replication.FieldSpec{ID: "switch/isOn", Initial: domain.BoolValue(false)}); err != nil {
		t.Fatal(err)
	}
	host, _ := node.Connect()
	if _, err := host.ClaimAuthority("switch/isOn"); err != nil {
		t.Fatal(err)
	}
	cmd, _ := domain.Toggle("switch/isOn")
	ticket, err := host.Submit(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ticket.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(r.Commits); got != 1 {
		t.Errorf("commits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.CommandsResolved.WithLabelValues("toggle", "OK")); got != 1 {
		t.Errorf("resolved = %v, want 1", got)
	}
}
