// Package engine contains the janitor service: a reconciliation loop keeping
// exactly one delete-task pipeline running per index known to the metastore.
package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jakegut/quickwit/kernel/events"
	"github.com/jakegut/quickwit/kernel/metastore"
	"github.com/jakegut/quickwit/kernel/model"
	"github.com/jakegut/quickwit/kernel/pipeline"
	"github.com/jakegut/quickwit/kernel/runtime"
	"github.com/jakegut/quickwit/kernel/search"
	"github.com/jakegut/quickwit/kernel/storage"
)

// DeleteServiceTaskDirName is the scratch subdirectory shared with pipelines,
// created under the data dir and purged on every service construction.
const DeleteServiceTaskDirName = "delete_task_service"

type updatePipelinesMsg struct{}

// JanitorServiceState is the service's observable snapshot.
type JanitorServiceState struct {
	NumRunningPipelines int `json:"num_running_pipelines"`
}

// JanitorService owns the index-uid → pipeline-handle map. It runs as an
// actor: every reconciliation pass is one message, so passes never overlap.
// The map is touched only from the actor's own goroutine; the atomic counter
// mirrors its size for lock-free observation.
type JanitorService struct {
	metastore            metastore.Metastore
	jobPlacer            *search.JobPlacer
	storageResolver      *storage.Resolver
	taskDir              string
	pipelineHandles      map[model.IndexUid]*runtime.Handle
	maxConcurrentUploads int
	broker               *events.Broker
	runInterval          time.Duration

	numRunning atomic.Int64
}

func NewJanitorService(
	ms metastore.Metastore,
	jobPlacer *search.JobPlacer,
	storageResolver *storage.Resolver,
	dataDir string,
	maxConcurrentUploads int,
	broker *events.Broker,
	runInterval time.Duration,
) (*JanitorService, error) {
	taskDir := filepath.Join(dataDir, DeleteServiceTaskDirName)
	if err := createOrPurgeDirectory(taskDir); err != nil {
		return nil, err
	}
	if runInterval <= 0 {
		runInterval = model.DefaultRunInterval
	}
	return &JanitorService{
		metastore:            ms,
		jobPlacer:            jobPlacer,
		storageResolver:      storageResolver,
		taskDir:              taskDir,
		pipelineHandles:      make(map[model.IndexUid]*runtime.Handle),
		maxConcurrentUploads: maxConcurrentUploads,
		broker:               broker,
		runInterval:          runInterval,
	}, nil
}

func (s *JanitorService) Name() string {
	return "delete-task-service"
}

// State is a lock-free snapshot, readable at any time without disturbing an
// in-flight pass.
func (s *JanitorService) State() JanitorServiceState {
	return JanitorServiceState{NumRunningPipelines: int(s.numRunning.Load())}
}

func (s *JanitorService) ObservableState() interface{} {
	return s.State()
}

// Initialize runs one reconciliation pass before the service processes any
// message, so a freshly spawned service already tracks every live index.
func (s *JanitorService) Initialize(ctx *runtime.Context) error {
	s.handleUpdate(ctx)
	return nil
}

func (s *JanitorService) Receive(ctx *runtime.Context, msg runtime.Message) error {
	switch msg.(type) {
	case updatePipelinesMsg:
		s.handleUpdate(ctx)
	}
	return nil
}

// handleUpdate runs one pass and rearms the timer. A failed pass is logged
// and abandoned; the next one is scheduled regardless, with no backoff.
func (s *JanitorService) handleUpdate(ctx *runtime.Context) {
	if err := s.updatePipelines(ctx); err != nil {
		logrus.WithError(err).Error("delete task pipelines update failed")
	}
	ctx.ScheduleSelfMsg(s.runInterval, updatePipelinesMsg{})
}

// updatePipelines reconciles the pipeline map against the metastore listing.
// Stale pipelines are stopped before any new one starts, so a recreated index
// never has two generations running past a pass boundary.
func (s *JanitorService) updatePipelines(ctx *runtime.Context) error {
	descriptors, err := s.metastore.ListActiveIndexes(context.Background())
	if err != nil {
		return err
	}
	desired := make(map[model.IndexUid]model.IndexDescriptor, len(descriptors))
	for _, desc := range descriptors {
		desired[desc.Uid] = desc
	}

	for uid, handle := range s.pipelineHandles {
		if _, ok := desired[uid]; ok {
			continue
		}
		logrus.Infof("removing deleted index [%s] from delete task pipelines", uid)
		delete(s.pipelineHandles, uid)
		s.numRunning.Store(int64(len(s.pipelineHandles)))
		// Kill rather than drain: no point waiting for a delete operation
		// that can no longer complete.
		handle.Kill()
		s.broker.Publish(events.TopicPipelineStopped, events.Event{IndexUid: uid})
	}

	for uid, desc := range desired {
		if _, ok := s.pipelineHandles[uid]; ok {
			continue
		}
		if err := s.spawnPipeline(ctx, desc); err != nil {
			logrus.WithError(err).Warnf("failed to spawn delete pipeline for [%s]", desc.IndexID)
		}
	}

	s.broker.Publish(events.TopicPipelinesUpdated, events.Event{
		Payload: len(s.pipelineHandles),
	})
	return nil
}

func (s *JanitorService) spawnPipeline(ctx *runtime.Context, desc model.IndexDescriptor) error {
	indexStorage, err := s.storageResolver.Resolve(desc.IndexURI)
	if err != nil {
		return err
	}
	// The bulk listing may be stale. Re-fetch the authoritative descriptor;
	// its uid wins if the index was recreated between the two reads.
	fresh, err := s.metastore.IndexMetadata(context.Background(), desc.IndexID)
	if err != nil {
		return err
	}
	if _, ok := s.pipelineHandles[fresh.Uid]; ok {
		return nil
	}

	p := pipeline.New(
		fresh.Uid,
		s.metastore,
		s.jobPlacer,
		indexStorage,
		s.taskDir,
		s.maxConcurrentUploads,
		s.broker,
	)
	_, handle := ctx.Spawn(p)
	s.pipelineHandles[fresh.Uid] = handle
	s.numRunning.Store(int64(len(s.pipelineHandles)))
	s.broker.Publish(events.TopicPipelineStarted, events.Event{IndexUid: fresh.Uid})
	return nil
}

func createOrPurgeDirectory(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return errors.Wrapf(err, "failed to purge directory '%s'", path)
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return errors.Wrapf(err, "failed to create directory '%s'", path)
	}
	return nil
}
