package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/jakegut/quickwit/kernel/events"
	"github.com/jakegut/quickwit/kernel/metastore"
	"github.com/jakegut/quickwit/kernel/model"
	"github.com/jakegut/quickwit/kernel/runtime"
	"github.com/jakegut/quickwit/kernel/search"
	"github.com/jakegut/quickwit/kernel/storage"
)

const testRunInterval = 30 * time.Millisecond

func newTestService(t *testing.T, ms metastore.Metastore, broker *events.Broker, interval time.Duration) *JanitorService {
	t.Helper()
	svc, err := NewJanitorService(
		ms,
		search.NewJobPlacer("127.0.0.1:7280"),
		storage.NewResolver(),
		t.TempDir(),
		2,
		broker,
		interval,
	)
	if err != nil {
		t.Fatalf("NewJanitorService failed: %v", err)
	}
	return svc
}

func waitForPipelines(t *testing.T, svc *JanitorService, want int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if svc.State().NumRunningPipelines == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d running pipelines, got %d", want, svc.State().NumRunningPipelines)
}

func TestJanitorService_InitialPassRunsBeforeReady(t *testing.T) {
	ms := metastore.NewMemoryMetastore()
	ms.CreateIndex(context.Background(), "index-a", "ram://indexes/index-a")

	svc := newTestService(t, ms, events.NewBroker(), time.Hour)
	u := runtime.NewUniverse()
	_, handle := u.Spawn(svc)
	defer u.Shutdown()

	// No interval has elapsed: the startup pass alone must account for A.
	if got := svc.State().NumRunningPipelines; got != 1 {
		t.Errorf("expected 1 pipeline right after spawn, got %d", got)
	}

	state := handle.ProcessPendingAndObserve().(JanitorServiceState)
	if state.NumRunningPipelines != 1 {
		t.Errorf("expected observation to report 1 pipeline, got %d", state.NumRunningPipelines)
	}
}

func TestJanitorService_Convergence(t *testing.T) {
	ms := metastore.NewMemoryMetastore()
	ctx := context.Background()
	ms.CreateIndex(ctx, "index-a", "ram://indexes/index-a")

	broker := events.NewBroker()
	stopped := broker.Subscribe(events.TopicPipelineStopped)

	svc := newTestService(t, ms, broker, testRunInterval)
	u := runtime.NewUniverse()
	u.Spawn(svc)
	defer u.Shutdown()

	waitForPipelines(t, svc, 1)

	descB, _ := ms.CreateIndex(ctx, "index-b", "ram://indexes/index-b")
	waitForPipelines(t, svc, 2)

	ms.DeleteIndex(ctx, "index-a")
	waitForPipelines(t, svc, 1)

	// The survivor is B: the stop event names A.
	select {
	case evt := <-stopped:
		if evt.IndexUid.IndexID != "index-a" {
			t.Errorf("expected stop for index-a, got %v", evt.IndexUid)
		}
		if evt.IndexUid == descB.Uid {
			t.Error("index-b's pipeline must not be stopped")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for pipeline-stopped event")
	}
}

func TestJanitorService_Idempotence(t *testing.T) {
	ms := metastore.NewMemoryMetastore()
	ms.CreateIndex(context.Background(), "index-a", "ram://indexes/index-a")

	broker := events.NewBroker()
	started := broker.Subscribe(events.TopicPipelineStarted)
	stopped := broker.Subscribe(events.TopicPipelineStopped)

	svc := newTestService(t, ms, broker, testRunInterval)
	u := runtime.NewUniverse()
	u.Spawn(svc)
	defer u.Shutdown()

	<-started

	// Several passes over an unchanged desired set: no spawns, no stops.
	time.Sleep(5 * testRunInterval)

	select {
	case evt := <-started:
		t.Errorf("unexpected extra spawn for %v", evt.IndexUid)
	default:
	}
	select {
	case evt := <-stopped:
		t.Errorf("unexpected stop for %v", evt.IndexUid)
	default:
	}
	waitForPipelines(t, svc, 1)
}

type flakyMetastore struct {
	metastore.Metastore
	failListings atomic.Bool
}

func (f *flakyMetastore) ListActiveIndexes(ctx context.Context) ([]model.IndexDescriptor, error) {
	if f.failListings.Load() {
		return nil, errors.New("metastore unavailable")
	}
	return f.Metastore.ListActiveIndexes(ctx)
}

func TestJanitorService_ListingFailureLeavesMapUnchanged(t *testing.T) {
	inner := metastore.NewMemoryMetastore()
	ctx := context.Background()
	inner.CreateIndex(ctx, "index-a", "ram://indexes/index-a")
	ms := &flakyMetastore{Metastore: inner}

	svc := newTestService(t, ms, events.NewBroker(), testRunInterval)
	u := runtime.NewUniverse()
	u.Spawn(svc)
	defer u.Shutdown()

	waitForPipelines(t, svc, 1)

	// Listings fail while the index set changes underneath: the pass is
	// abandoned and the map stays as it was.
	ms.failListings.Store(true)
	inner.CreateIndex(ctx, "index-b", "ram://indexes/index-b")
	time.Sleep(5 * testRunInterval)
	if got := svc.State().NumRunningPipelines; got != 1 {
		t.Fatalf("expected map unchanged during listing failures, got %d", got)
	}

	// Recovery: the next successful pass converges.
	ms.failListings.Store(false)
	waitForPipelines(t, svc, 2)
}

func TestJanitorService_SpawnFailureIsRetried(t *testing.T) {
	ms := metastore.NewMemoryMetastore()
	ctx := context.Background()

	// Block storage resolution for index-c by placing a regular file where
	// the storage root's parent must be a directory.
	base := t.TempDir()
	blocker := filepath.Join(base, "blocked")
	if err := os.WriteFile(blocker, []byte{}, 0644); err != nil {
		t.Fatalf("failed to write blocker file: %v", err)
	}
	ms.CreateIndex(ctx, "index-c", "file://"+filepath.Join(blocker, "index-c"))

	svc := newTestService(t, ms, events.NewBroker(), testRunInterval)
	u := runtime.NewUniverse()
	u.Spawn(svc)
	defer u.Shutdown()

	time.Sleep(3 * testRunInterval)
	if got := svc.State().NumRunningPipelines; got != 0 {
		t.Fatalf("expected resolution failure to keep index-c out, got %d pipelines", got)
	}

	// Unblock: the very next passes pick the index up.
	if err := os.Remove(blocker); err != nil {
		t.Fatalf("failed to remove blocker file: %v", err)
	}
	waitForPipelines(t, svc, 1)
}

func TestJanitorService_RecreatedIndexStopsBeforeStarting(t *testing.T) {
	ms := metastore.NewMemoryMetastore()
	ctx := context.Background()
	first, _ := ms.CreateIndex(ctx, "index-a", "ram://indexes/index-a")

	broker := events.NewBroker()
	started := broker.Subscribe(events.TopicPipelineStarted)
	stopped := broker.Subscribe(events.TopicPipelineStopped)

	svc := newTestService(t, ms, broker, testRunInterval)
	u := runtime.NewUniverse()
	u.Spawn(svc)
	defer u.Shutdown()

	firstStart := <-started
	if firstStart.IndexUid != first.Uid {
		t.Fatalf("expected first start for %v, got %v", first.Uid, firstStart.IndexUid)
	}

	// Recreate under the same index id between passes.
	ms.DeleteIndex(ctx, "index-a")
	second, _ := ms.CreateIndex(ctx, "index-a", "ram://indexes/index-a")
	if second.Uid == first.Uid {
		t.Fatal("recreated index must carry a fresh uid")
	}

	var secondStart events.Event
	select {
	case secondStart = <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for recreated index's pipeline")
	}
	if secondStart.IndexUid != second.Uid {
		t.Errorf("expected start for %v, got %v", second.Uid, secondStart.IndexUid)
	}

	// The old generation's stop was published before the new start: the
	// stopped event is already buffered by the time the start arrives.
	select {
	case evt := <-stopped:
		if evt.IndexUid != first.Uid {
			t.Errorf("expected stop for %v, got %v", first.Uid, evt.IndexUid)
		}
	default:
		t.Error("old pipeline must stop before the recreated index's pipeline starts")
	}

	waitForPipelines(t, svc, 1)
}

type recreatingMetastore struct {
	metastore.Metastore
	fresh model.IndexDescriptor
}

func (r *recreatingMetastore) IndexMetadata(ctx context.Context, indexID string) (model.IndexDescriptor, error) {
	return r.fresh, nil
}

func TestJanitorService_FreshFetchUidIsAuthoritative(t *testing.T) {
	inner := metastore.NewMemoryMetastore()
	ctx := context.Background()
	stale, _ := inner.CreateIndex(ctx, "index-a", "ram://indexes/index-a")

	// The per-index fetch reports a newer incarnation than the listing.
	fresh := stale
	fresh.Uid = model.NewIndexUid("index-a")
	ms := &recreatingMetastore{Metastore: inner, fresh: fresh}

	broker := events.NewBroker()
	started := broker.Subscribe(events.TopicPipelineStarted)

	svc := newTestService(t, ms, broker, time.Hour)
	u := runtime.NewUniverse()
	u.Spawn(svc)
	defer u.Shutdown()

	select {
	case evt := <-started:
		if evt.IndexUid != fresh.Uid {
			t.Errorf("pipeline must be keyed by the fresh uid %v, got %v", fresh.Uid, evt.IndexUid)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for pipeline start")
	}
	waitForPipelines(t, svc, 1)
}

func TestJanitorService_PurgesTaskDir(t *testing.T) {
	dataDir := t.TempDir()
	leftover := filepath.Join(dataDir, DeleteServiceTaskDirName, "stale-scratch")
	if err := os.MkdirAll(leftover, 0755); err != nil {
		t.Fatalf("failed to seed leftover scratch: %v", err)
	}

	_, err := NewJanitorService(
		metastore.NewMemoryMetastore(),
		search.NewJobPlacer(),
		storage.NewResolver(),
		dataDir,
		2,
		events.NewBroker(),
		time.Hour,
	)
	if err != nil {
		t.Fatalf("NewJanitorService failed: %v", err)
	}

	if _, err := os.Stat(leftover); !os.IsNotExist(err) {
		t.Error("expected pre-existing scratch content to be purged")
	}
}
