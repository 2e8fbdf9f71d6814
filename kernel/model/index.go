package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// IndexUid identifies a single incarnation of an index. Two indexes created
// under the same index id at different times carry different incarnations, so
// a pipeline spawned for a deleted-and-recreated index is never confused with
// its predecessor.
type IndexUid struct {
	IndexID     string `json:"index_id" yaml:"index_id"`
	Incarnation string `json:"incarnation" yaml:"incarnation"`
}

// NewIndexUid mints a fresh incarnation for the given index id.
func NewIndexUid(indexID string) IndexUid {
	return IndexUid{
		IndexID:     indexID,
		Incarnation: strings.Split(uuid.NewString(), "-")[0],
	}
}

func (u IndexUid) String() string {
	return u.IndexID + ":" + u.Incarnation
}

func (u IndexUid) IsZero() bool {
	return u.IndexID == "" && u.Incarnation == ""
}

// ParseIndexUid parses the "index-id:incarnation" form produced by String.
func ParseIndexUid(s string) (IndexUid, error) {
	idx := strings.LastIndex(s, ":")
	if idx <= 0 || idx == len(s)-1 {
		return IndexUid{}, fmt.Errorf("malformed index uid '%s'", s)
	}
	return IndexUid{IndexID: s[:idx], Incarnation: s[idx+1:]}, nil
}

// IndexDescriptor is the metastore's authoritative record for one index.
type IndexDescriptor struct {
	Uid             IndexUid `json:"uid" yaml:"uid"`
	IndexID         string   `json:"index_id" yaml:"index_id"`
	IndexURI        string   `json:"index_uri" yaml:"index_uri"`
	CreateTimestamp int64    `json:"create_timestamp" yaml:"create_timestamp"`
}

// DeleteQuery selects the documents a delete task must remove from an index.
type DeleteQuery struct {
	IndexUid       IndexUid `json:"index_uid"`
	StartTimestamp *int64   `json:"start_timestamp,omitempty"`
	EndTimestamp   *int64   `json:"end_timestamp,omitempty"`
	QueryAst       string   `json:"query_ast"`
}

// DeleteTask is a delete query stamped by the metastore. Opstamps are strictly
// increasing per index; pipelines use them as a progress cursor.
type DeleteTask struct {
	CreateTimestamp int64       `json:"create_timestamp"`
	Opstamp         uint64      `json:"opstamp"`
	DeleteQuery     DeleteQuery `json:"delete_query"`
}
