package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/jakegut/quickwit/kernel/events"
)

type capturingWriter struct {
	mu     sync.Mutex
	points []*write.Point
}

func (w *capturingWriter) WriteRecord(ctx context.Context, line ...string) error { return nil }

func (w *capturingWriter) WritePoint(ctx context.Context, points ...*write.Point) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points = append(w.points, points...)
	return nil
}

func (w *capturingWriter) EnableBatching() {}

func (w *capturingWriter) Flush(ctx context.Context) error { return nil }

func (w *capturingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.points)
}

func TestReporter_WritesPointPerUpdate(t *testing.T) {
	broker := events.NewBroker()
	writer := &capturingWriter{}

	r := newReporter(writer, broker)
	r.Start()
	defer r.Stop()

	broker.Publish(events.TopicPipelinesUpdated, events.Event{Payload: 3})
	broker.Publish(events.TopicPipelinesUpdated, events.Event{Payload: 2})

	deadline := time.Now().Add(2 * time.Second)
	for writer.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if writer.count() != 2 {
		t.Fatalf("expected 2 points, got %d", writer.count())
	}

	writer.mu.Lock()
	defer writer.mu.Unlock()
	if writer.points[0].Name() != measurement {
		t.Errorf("expected measurement '%s', got '%s'", measurement, writer.points[0].Name())
	}
}

func TestReporter_IgnoresMalformedPayload(t *testing.T) {
	broker := events.NewBroker()
	writer := &capturingWriter{}

	r := newReporter(writer, broker)
	r.Start()
	defer r.Stop()

	broker.Publish(events.TopicPipelinesUpdated, events.Event{Payload: "not-a-count"})

	time.Sleep(50 * time.Millisecond)
	if writer.count() != 0 {
		t.Errorf("expected no points for malformed payloads, got %d", writer.count())
	}
}
