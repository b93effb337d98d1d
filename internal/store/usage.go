package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLParagraphUsage asks the database which paragraphs learning content
// still references. The query receives the candidate ids as $1 (bigint[])
// and returns the referenced ones. It runs on the caller's transaction when
// one is given and on db otherwise.
type SQLParagraphUsage struct {
	db    *sql.DB
	query string
}

func NewSQLParagraphUsage(db *sql.DB, query string) *SQLParagraphUsage {
	return &SQLParagraphUsage{db: db, query: query}
}

func (u *SQLParagraphUsage) ReferencedParagraphs(ctx context.Context, q Querier, ids []int64) ([]int64, error) {
	if u.query == "" || len(ids) == 0 {
		return nil, nil
	}
	if q == nil {
		if u.db == nil {
			return nil, errors.New("query paragraph usage: no database")
		}
		q = u.db
	}
	rows, err := q.QueryContext(ctx, u.query, ids)
	if err != nil {
		return nil, fmt.Errorf("query paragraph usage: %w", err)
	}
	defer rows.Close()

	var referenced []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan paragraph usage: %w", err)
		}
		referenced = append(referenced, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate paragraph usage: %w", err)
	}
	return referenced, nil
}
