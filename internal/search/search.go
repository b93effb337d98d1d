package search

import (
	"context"
	"strconv"
	"strings"
)

// PublishedRecord is what gets indexed for one published node: the content
// of the version readers currently see.
type PublishedRecord struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	NodeID        int64  `json:"nodeId"`
	ParentID      int64  `json:"parentId"`
	VersionID     int64  `json:"versionId"`
	VersionNumber int    `json:"versionNumber"`
	TitleEn       string `json:"titleEn"`
	TitleFr       string `json:"titleFr"`
	BodyEn        string `json:"bodyEn"`
	BodyFr        string `json:"bodyFr"`
}

// RecordID is the index key of a node: "<kind>-<id>".
func RecordID(kind string, nodeID int64) string {
	return strings.ToLower(kind) + "-" + strconv.FormatInt(nodeID, 10)
}

// Result is a single search hit returned to the caller.
type Result struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	NodeID        int64  `json:"nodeId"`
	ParentID      int64  `json:"parentId"`
	VersionID     int64  `json:"versionId"`
	VersionNumber int    `json:"versionNumber"`
	Title         string `json:"title"`
	Snippet       string `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text   string
	Kind   string // empty = all kinds
	Limit  int
	Offset int
}

func (q Query) normalized() Query {
	q.Text = strings.TrimSpace(q.Text)
	q.Kind = strings.ToUpper(strings.TrimSpace(q.Kind))
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Backend string   `json:"backend"`
}

// Searcher can execute a full-text search over published content.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push published records into a search index.
type Indexer interface {
	IndexPublished(records []PublishedRecord) error
	DeletePublished(ids []string) error
}
