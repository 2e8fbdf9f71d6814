package search

import (
	"hash/fnv"
	"sort"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/pkg/errors"
)

// Searcher is one member of the searcher pool.
type Searcher struct {
	Endpoint string
}

// JobPlacer assigns per-index delete work to a searcher from a shared pool.
// The pool may change while pipelines run; assignment is recomputed per call.
type JobPlacer struct {
	searchers cmap.ConcurrentMap[string, Searcher]
}

func NewJobPlacer(endpoints ...string) *JobPlacer {
	p := &JobPlacer{searchers: cmap.New[Searcher]()}
	for _, endpoint := range endpoints {
		p.AddSearcher(endpoint)
	}
	return p
}

func (p *JobPlacer) AddSearcher(endpoint string) {
	p.searchers.Set(endpoint, Searcher{Endpoint: endpoint})
}

func (p *JobPlacer) RemoveSearcher(endpoint string) {
	p.searchers.Remove(endpoint)
}

func (p *JobPlacer) NumSearchers() int {
	return p.searchers.Count()
}

// Assign picks the searcher responsible for key. The same key maps to the
// same searcher as long as the pool is unchanged.
func (p *JobPlacer) Assign(key string) (Searcher, error) {
	endpoints := p.searchers.Keys()
	if len(endpoints) == 0 {
		return Searcher{}, errors.New("no searchers available")
	}
	sort.Strings(endpoints)

	h := fnv.New32a()
	h.Write([]byte(key))
	endpoint := endpoints[int(h.Sum32())%len(endpoints)]

	searcher, _ := p.searchers.Get(endpoint)
	return searcher, nil
}
