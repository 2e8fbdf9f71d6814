package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/jakegut/quickwit/kernel/events"
	"github.com/jakegut/quickwit/kernel/metastore"
	"github.com/jakegut/quickwit/kernel/model"
	"github.com/jakegut/quickwit/kernel/runtime"
	"github.com/jakegut/quickwit/kernel/search"
	"github.com/jakegut/quickwit/kernel/storage"
)

const defaultWorkInterval = 2 * time.Second

type processTasksMsg struct{}

// DeleteTaskPipelineState is the pipeline's observable snapshot.
type DeleteTaskPipelineState struct {
	LastOpstamp     uint64 `json:"last_opstamp"`
	NumAppliedTasks int    `json:"num_applied_tasks"`
}

// DeleteTaskPipeline executes an index's delete tasks. One pipeline runs per
// live index; it polls the metastore for tasks past its opstamp cursor,
// assigns each to a searcher, and uploads a tombstone to the index's storage.
// A batch that fails is retried whole on the next tick; tombstone keys are
// derived from opstamps, so reapplying is idempotent.
type DeleteTaskPipeline struct {
	uid       model.IndexUid
	metastore metastore.Metastore
	jobPlacer *search.JobPlacer
	storage   storage.Storage
	workDir   string
	uploadSem *semaphore.Weighted
	broker    *events.Broker

	// WorkInterval is the polling cadence. Set before the pipeline is spawned.
	WorkInterval time.Duration

	lastOpstamp uint64
	numApplied  int
}

func New(
	uid model.IndexUid,
	ms metastore.Metastore,
	jobPlacer *search.JobPlacer,
	indexStorage storage.Storage,
	workDir string,
	maxConcurrentUploads int,
	broker *events.Broker,
) *DeleteTaskPipeline {
	return &DeleteTaskPipeline{
		uid:          uid,
		metastore:    ms,
		jobPlacer:    jobPlacer,
		storage:      indexStorage,
		workDir:      workDir,
		uploadSem:    semaphore.NewWeighted(int64(maxConcurrentUploads)),
		broker:       broker,
		WorkInterval: defaultWorkInterval,
	}
}

func (p *DeleteTaskPipeline) Name() string {
	return "delete-task-pipeline-" + p.uid.String()
}

func (p *DeleteTaskPipeline) ObservableState() interface{} {
	return DeleteTaskPipelineState{
		LastOpstamp:     p.lastOpstamp,
		NumAppliedTasks: p.numApplied,
	}
}

func (p *DeleteTaskPipeline) Initialize(ctx *runtime.Context) error {
	if err := os.MkdirAll(filepath.Join(p.workDir, p.uid.String()), 0755); err != nil {
		return err
	}
	ctx.ScheduleSelfMsg(p.WorkInterval, processTasksMsg{})
	return nil
}

func (p *DeleteTaskPipeline) Receive(ctx *runtime.Context, msg runtime.Message) error {
	switch msg.(type) {
	case processTasksMsg:
		if err := p.processTasks(); err != nil {
			logrus.WithError(err).Warnf("[%s] delete task batch failed, will retry", p.Name())
		}
		ctx.ScheduleSelfMsg(p.WorkInterval, processTasksMsg{})
	}
	return nil
}

func (p *DeleteTaskPipeline) processTasks() error {
	ctx := context.Background()
	tasks, err := p.metastore.ListDeleteTasks(ctx, p.uid, p.lastOpstamp)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		task := task
		group.Go(func() error {
			if err := p.uploadSem.Acquire(groupCtx, 1); err != nil {
				return err
			}
			defer p.uploadSem.Release(1)
			return p.applyTask(groupCtx, task)
		})
	}
	if err := group.Wait(); err != nil {
		// Cursor unchanged: the whole batch is retried on the next tick.
		return err
	}

	p.lastOpstamp = tasks[len(tasks)-1].Opstamp
	p.numApplied += len(tasks)
	return nil
}

type tombstone struct {
	Opstamp  uint64            `json:"opstamp"`
	Query    model.DeleteQuery `json:"query"`
	Searcher string            `json:"searcher,omitempty"`
}

func (p *DeleteTaskPipeline) applyTask(ctx context.Context, task model.DeleteTask) error {
	var endpoint string
	if searcher, err := p.jobPlacer.Assign(fmt.Sprintf("%s:%d", p.uid, task.Opstamp)); err != nil {
		logrus.Debugf("[%s] no searchers available, applying locally", p.Name())
	} else {
		endpoint = searcher.Endpoint
	}

	data, err := json.Marshal(tombstone{
		Opstamp:  task.Opstamp,
		Query:    task.DeleteQuery,
		Searcher: endpoint,
	})
	if err != nil {
		return err
	}
	key := fmt.Sprintf("tombstones/%020d.json", task.Opstamp)
	if err := p.storage.Put(ctx, key, data); err != nil {
		return err
	}

	p.broker.Publish(events.TopicDeleteTaskApplied, events.Event{
		IndexUid: p.uid,
		Payload:  task.Opstamp,
	})
	return nil
}
