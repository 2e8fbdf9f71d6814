package metastore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/jakegut/quickwit/kernel/model"
)

const stateFileName = "metastore.json"

// fileState is the on-disk layout. Delete tasks are keyed by the uid's string
// form because JSON object keys must be strings.
type fileState struct {
	Indexes     map[string]model.IndexDescriptor `json:"indexes"`
	DeleteTasks map[string][]model.DeleteTask    `json:"delete_tasks"`
	NextOpstamp uint64                           `json:"next_opstamp"`
}

func newFileState() *fileState {
	return &fileState{
		Indexes:     make(map[string]model.IndexDescriptor),
		DeleteTasks: make(map[string][]model.DeleteTask),
	}
}

// FileMetastore persists the full metastore state as a single JSON file under
// a root directory. Every mutation is a read-modify-write of that file, which
// keeps independently constructed instances pointed at the same root
// consistent with each other.
type FileMetastore struct {
	root string
	mu   sync.RWMutex
}

func NewFileMetastore(root string) (*FileMetastore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create metastore root '%s'", root)
	}
	return &FileMetastore{root: root}, nil
}

func (m *FileMetastore) ListActiveIndexes(ctx context.Context) ([]model.IndexDescriptor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, err := m.load()
	if err != nil {
		return nil, err
	}
	descriptors := make([]model.IndexDescriptor, 0, len(state.Indexes))
	for _, desc := range state.Indexes {
		descriptors = append(descriptors, desc)
	}
	return descriptors, nil
}

func (m *FileMetastore) IndexMetadata(ctx context.Context, indexID string) (model.IndexDescriptor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, err := m.load()
	if err != nil {
		return model.IndexDescriptor{}, err
	}
	desc, ok := state.Indexes[indexID]
	if !ok {
		return model.IndexDescriptor{}, errors.Wrapf(ErrIndexNotFound, "index '%s'", indexID)
	}
	return desc, nil
}

func (m *FileMetastore) CreateIndex(ctx context.Context, indexID, indexURI string) (model.IndexDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.load()
	if err != nil {
		return model.IndexDescriptor{}, err
	}
	if _, exists := state.Indexes[indexID]; exists {
		return model.IndexDescriptor{}, errors.Errorf("index '%s' already exists", indexID)
	}
	desc := model.IndexDescriptor{
		Uid:             model.NewIndexUid(indexID),
		IndexID:         indexID,
		IndexURI:        indexURI,
		CreateTimestamp: time.Now().Unix(),
	}
	state.Indexes[indexID] = desc
	return desc, m.save(state)
}

func (m *FileMetastore) DeleteIndex(ctx context.Context, indexID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.load()
	if err != nil {
		return err
	}
	desc, ok := state.Indexes[indexID]
	if !ok {
		return errors.Wrapf(ErrIndexNotFound, "index '%s'", indexID)
	}
	delete(state.Indexes, indexID)
	delete(state.DeleteTasks, desc.Uid.String())
	return m.save(state)
}

func (m *FileMetastore) CreateDeleteTask(ctx context.Context, query model.DeleteQuery) (model.DeleteTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.load()
	if err != nil {
		return model.DeleteTask{}, err
	}
	if _, ok := state.Indexes[query.IndexUid.IndexID]; !ok {
		return model.DeleteTask{}, errors.Wrapf(ErrIndexNotFound, "index '%s'", query.IndexUid.IndexID)
	}
	state.NextOpstamp++
	task := model.DeleteTask{
		CreateTimestamp: time.Now().Unix(),
		Opstamp:         state.NextOpstamp,
		DeleteQuery:     query,
	}
	key := query.IndexUid.String()
	state.DeleteTasks[key] = append(state.DeleteTasks[key], task)
	return task, m.save(state)
}

func (m *FileMetastore) ListDeleteTasks(ctx context.Context, uid model.IndexUid, afterOpstamp uint64) ([]model.DeleteTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, err := m.load()
	if err != nil {
		return nil, err
	}
	var tasks []model.DeleteTask
	for _, task := range state.DeleteTasks[uid.String()] {
		if task.Opstamp > afterOpstamp {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

func (m *FileMetastore) statePath() string {
	return filepath.Join(m.root, stateFileName)
}

func (m *FileMetastore) load() (*fileState, error) {
	data, err := os.ReadFile(m.statePath())
	if os.IsNotExist(err) {
		return newFileState(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read metastore state")
	}

	state := newFileState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, errors.Wrap(err, "failed to parse metastore state")
	}
	return state, nil
}

func (m *FileMetastore) save(state *fileState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal metastore state")
	}
	if err := os.WriteFile(m.statePath(), data, 0644); err != nil {
		return errors.Wrap(err, "failed to write metastore state")
	}
	return nil
}
