package search

import "testing"

func TestJobPlacer_EmptyPool(t *testing.T) {
	p := NewJobPlacer()

	if _, err := p.Assign("index-a:0001"); err == nil {
		t.Fatal("expected error assigning on an empty pool")
	}
}

func TestJobPlacer_StableAssignment(t *testing.T) {
	p := NewJobPlacer("10.0.0.1:7280", "10.0.0.2:7280", "10.0.0.3:7280")

	first, err := p.Assign("index-a:0001")
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, _ := p.Assign("index-a:0001")
		if again != first {
			t.Fatalf("assignment is not stable: %v then %v", first, again)
		}
	}
}

func TestJobPlacer_PoolChanges(t *testing.T) {
	p := NewJobPlacer("10.0.0.1:7280")

	s, _ := p.Assign("index-a:0001")
	if s.Endpoint != "10.0.0.1:7280" {
		t.Errorf("single-member pool must assign that member, got %s", s.Endpoint)
	}

	p.RemoveSearcher("10.0.0.1:7280")
	if p.NumSearchers() != 0 {
		t.Errorf("expected empty pool, got %d", p.NumSearchers())
	}
	if _, err := p.Assign("index-a:0001"); err == nil {
		t.Error("expected error after last searcher removed")
	}
}
