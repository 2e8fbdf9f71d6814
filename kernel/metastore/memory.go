package metastore

import (
	"context"
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/pkg/errors"

	"github.com/jakegut/quickwit/kernel/model"
)

// MemoryMetastore is an in-memory Metastore used by tests and by the ram://
// metastore uri.
type MemoryMetastore struct {
	indexes cmap.ConcurrentMap[string, model.IndexDescriptor]

	mu          sync.Mutex
	nextOpstamp uint64
	deleteTasks map[model.IndexUid][]model.DeleteTask
}

func NewMemoryMetastore() *MemoryMetastore {
	return &MemoryMetastore{
		indexes:     cmap.New[model.IndexDescriptor](),
		deleteTasks: make(map[model.IndexUid][]model.DeleteTask),
	}
}

func (m *MemoryMetastore) ListActiveIndexes(ctx context.Context) ([]model.IndexDescriptor, error) {
	descriptors := make([]model.IndexDescriptor, 0, m.indexes.Count())
	for _, desc := range m.indexes.Items() {
		descriptors = append(descriptors, desc)
	}
	return descriptors, nil
}

func (m *MemoryMetastore) IndexMetadata(ctx context.Context, indexID string) (model.IndexDescriptor, error) {
	desc, ok := m.indexes.Get(indexID)
	if !ok {
		return model.IndexDescriptor{}, errors.Wrapf(ErrIndexNotFound, "index '%s'", indexID)
	}
	return desc, nil
}

func (m *MemoryMetastore) CreateIndex(ctx context.Context, indexID, indexURI string) (model.IndexDescriptor, error) {
	if _, exists := m.indexes.Get(indexID); exists {
		return model.IndexDescriptor{}, errors.Errorf("index '%s' already exists", indexID)
	}
	desc := model.IndexDescriptor{
		Uid:             model.NewIndexUid(indexID),
		IndexID:         indexID,
		IndexURI:        indexURI,
		CreateTimestamp: time.Now().Unix(),
	}
	m.indexes.Set(indexID, desc)
	return desc, nil
}

func (m *MemoryMetastore) DeleteIndex(ctx context.Context, indexID string) error {
	desc, ok := m.indexes.Get(indexID)
	if !ok {
		return errors.Wrapf(ErrIndexNotFound, "index '%s'", indexID)
	}
	m.indexes.Remove(indexID)

	m.mu.Lock()
	delete(m.deleteTasks, desc.Uid)
	m.mu.Unlock()
	return nil
}

func (m *MemoryMetastore) CreateDeleteTask(ctx context.Context, query model.DeleteQuery) (model.DeleteTask, error) {
	if _, err := m.IndexMetadata(ctx, query.IndexUid.IndexID); err != nil {
		return model.DeleteTask{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextOpstamp++
	task := model.DeleteTask{
		CreateTimestamp: time.Now().Unix(),
		Opstamp:         m.nextOpstamp,
		DeleteQuery:     query,
	}
	m.deleteTasks[query.IndexUid] = append(m.deleteTasks[query.IndexUid], task)
	return task, nil
}

func (m *MemoryMetastore) ListDeleteTasks(ctx context.Context, uid model.IndexUid, afterOpstamp uint64) ([]model.DeleteTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var tasks []model.DeleteTask
	for _, task := range m.deleteTasks[uid] {
		if task.Opstamp > afterOpstamp {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}
