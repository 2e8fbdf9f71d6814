package metastore

import (
	"context"
	"testing"

	"github.com/jakegut/quickwit/kernel/model"
)

func TestFileMetastore_PersistsAcrossInstances(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	first, err := NewFileMetastore(root)
	if err != nil {
		t.Fatalf("NewFileMetastore failed: %v", err)
	}

	desc, err := first.CreateIndex(ctx, "index-a", "file:///tmp/index-a")
	if err != nil {
		t.Fatalf("CreateIndex failed: %v", err)
	}
	if _, err := first.CreateDeleteTask(ctx, model.DeleteQuery{IndexUid: desc.Uid, QueryAst: "*"}); err != nil {
		t.Fatalf("CreateDeleteTask failed: %v", err)
	}

	// A fresh instance over the same root sees the same state.
	second, err := NewFileMetastore(root)
	if err != nil {
		t.Fatalf("NewFileMetastore failed: %v", err)
	}

	got, err := second.IndexMetadata(ctx, "index-a")
	if err != nil {
		t.Fatalf("IndexMetadata failed: %v", err)
	}
	if got.Uid != desc.Uid {
		t.Errorf("expected uid %v, got %v", desc.Uid, got.Uid)
	}

	tasks, err := second.ListDeleteTasks(ctx, desc.Uid, 0)
	if err != nil {
		t.Fatalf("ListDeleteTasks failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 delete task, got %d", len(tasks))
	}
	if tasks[0].Opstamp != 1 {
		t.Errorf("expected opstamp 1, got %d", tasks[0].Opstamp)
	}
}

func TestFileMetastore_EmptyRoot(t *testing.T) {
	ms, err := NewFileMetastore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileMetastore failed: %v", err)
	}

	descriptors, err := ms.ListActiveIndexes(context.Background())
	if err != nil {
		t.Fatalf("ListActiveIndexes failed: %v", err)
	}
	if len(descriptors) != 0 {
		t.Errorf("expected empty listing, got %d", len(descriptors))
	}
}

func TestFileMetastore_RecreateMintsNewIncarnation(t *testing.T) {
	ms, err := NewFileMetastore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileMetastore failed: %v", err)
	}
	ctx := context.Background()

	first, _ := ms.CreateIndex(ctx, "index-a", "file:///tmp/index-a")
	if err := ms.DeleteIndex(ctx, "index-a"); err != nil {
		t.Fatalf("DeleteIndex failed: %v", err)
	}
	second, err := ms.CreateIndex(ctx, "index-a", "file:///tmp/index-a")
	if err != nil {
		t.Fatalf("CreateIndex failed: %v", err)
	}

	if first.Uid == second.Uid {
		t.Error("recreated index must carry a fresh incarnation")
	}
}
