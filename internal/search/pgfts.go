package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher via PostgreSQL full-text search over the
// published version of every node.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS fallback searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

func (p *PgFTS) Healthy() bool {
	return p.db != nil
}

// ftsSource describes where one kind keeps its published text. The
// tsvector expression must match the GIN index on the versions table.
type ftsSource struct {
	kind      string
	nodes     string
	versions  string
	parentCol string
	titleEn   string
	titleFr   string
	bodyEn    string
	bodyFr    string
}

var ftsSources = []ftsSource{
	{"BOOK", "books", "book_versions", "category_id", "v.title_en", "v.title_fr", "v.intro_en", "v.intro_fr"},
	{"CHAPTER", "chapters", "chapter_versions", "book_id", "v.title_en", "v.title_fr", "v.intro_en", "v.intro_fr"},
	{"SECTION", "sections", "section_versions", "chapter_id", "v.title_en", "v.title_fr", "v.intro_en", "v.intro_fr"},
	{"PARAGRAPH", "paragraphs", "paragraph_versions", "section_id", "''", "''", "v.content_en", "v.content_fr"},
}

func (s ftsSource) document() string {
	if s.titleEn == "''" {
		return fmt.Sprintf("to_tsvector('simple', %s || ' ' || %s)", s.bodyEn, s.bodyFr)
	}
	return fmt.Sprintf("to_tsvector('simple', %s || ' ' || %s || ' ' || %s || ' ' || %s)",
		s.titleEn, s.titleFr, s.bodyEn, s.bodyFr)
}

func (s ftsSource) subquery() string {
	return fmt.Sprintf(`SELECT '%[1]s'::text AS kind, n.id AS node_id, n.%[4]s AS parent_id,
		v.id AS version_id, v.version_number,
		COALESCE(NULLIF(%[5]s, ''), %[6]s) AS title,
		ts_headline('simple', %[7]s || ' ' || %[8]s, plainto_tsquery('simple', $1),
			'StartSel=<mark>, StopSel=</mark>, MaxWords=30, MinWords=10') AS snippet,
		ts_rank(%[9]s, plainto_tsquery('simple', $1)) AS rank
	FROM content_status cs
	JOIN %[2]s n ON n.id = cs.entity_id
	JOIN %[3]s v ON v.id = cs.published_version_id
	WHERE cs.entity_type = '%[1]s' AND cs.status = 'PUBLISHED'
		AND %[9]s @@ plainto_tsquery('simple', $1)`,
		s.kind, s.nodes, s.versions, s.parentCol,
		s.titleEn, s.titleFr, s.bodyEn, s.bodyFr, s.document())
}

// unionQuery assembles the per-kind subqueries selected by kind.
func unionQuery(kind string) (string, error) {
	var parts []string
	for _, src := range ftsSources {
		if kind == "" || kind == src.kind {
			parts = append(parts, src.subquery())
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("unknown kind %q", kind)
	}
	return strings.Join(parts, "\nUNION ALL\n"), nil
}

func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	union, err := unionQuery(q.Kind)
	if err != nil {
		return nil, 0, err
	}

	var total int
	countSQL := fmt.Sprintf(`SELECT COUNT(*) FROM (%s) AS matches`, union)
	if err := p.db.QueryRowContext(ctx, countSQL, q.Text).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`SELECT kind, node_id, parent_id, version_id, version_number, title, snippet
		FROM (%s) AS matches
		ORDER BY rank DESC, kind, node_id
		LIMIT $2 OFFSET $3`, union)
	rows, err := p.db.QueryContext(ctx, dataSQL, q.Text, q.Limit, q.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts search: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Kind, &r.NodeID, &r.ParentID, &r.VersionID, &r.VersionNumber, &r.Title, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.ID = RecordID(r.Kind, r.NodeID)
		results = append(results, r)
	}
	return results, total, rows.Err()
}
