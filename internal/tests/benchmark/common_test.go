package benchmark

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"testing"

	"github.com/yndnr/syncmesh-go/internal/core/domain"
	"github.com/yndnr/syncmesh-go/internal/core/replication"
)

// SubscriberCounts defines the observer counts for fan-out benchmarks.
var SubscriberCounts = []int{1, 10, 100, 1000}

// FieldCounts defines the field counts for node-level benchmarks.
var FieldCounts = []int{100, 1000, 10000}

const switchField = "switch/isOn"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newNode creates a node without a journal and a headless session holding
// authority over a bool switch field.
func newNode(b *testing.B, cfg replication.Config) (*replication.Node, *replication.Session) {
	b.Helper()
	if cfg.Logger == nil {
		cfg.Logger = quietLogger()
	}
	n := replication.NewNode(cfg)
	b.Cleanup(n.Close)

	if _, err := n.DeclareField(context.Background(), replication.FieldSpec{
		ID:      switchField,
		Initial: domain.BoolValue(false),
	}); err != nil {
		b.Fatalf("DeclareField failed: %v", err)
	}
	host, err := n.Connect(replication.Headless())
	if err != nil {
		b.Fatalf("Connect failed: %v", err)
	}
	if _, err := host.ClaimAuthority(switchField); err != nil {
		b.Fatalf("ClaimAuthority failed: %v", err)
	}
	return n, host
}

// connectObservers connects count sessions subscribed to fieldID whose
// outboxes are drained in the background.
func connectObservers(b *testing.B, n *replication.Node, fieldID string, count int) []*replication.Session {
	b.Helper()
	sessions := make([]*replication.Session, count)
	for i := range sessions {
		s, err := n.Connect()
		if err != nil {
			b.Fatalf("Connect failed: %v", err)
		}
		if err := s.Subscribe(fieldID, nil); err != nil {
			b.Fatalf("Subscribe failed: %v", err)
		}
		go func() {
			for {
				select {
				case <-s.Ready():
					s.Drain()
				case <-s.Done():
					return
				}
			}
		}()
		sessions[i] = s
	}
	return sessions
}

// prefillFields declares count number fields.
func prefillFields(b *testing.B, n *replication.Node, count int) []string {
	b.Helper()
	ids := make([]string, count)
	for i := range ids {
		ids[i] = fmt.Sprintf("bench/field-%d", i)
		if _, err := n.DeclareField(context.Background(), replication.FieldSpec{
			ID:      ids[i],
			Initial: domain.NumberValue(0),
		}); err != nil {
			b.Fatalf("DeclareField failed: %v", err)
		}
	}
	return ids
}

// reportMemory reports memory usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}
