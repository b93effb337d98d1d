package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func nullableInt64(value sql.NullInt64) *int64 {
	if !value.Valid {
		return nil
	}
	v := value.Int64
	return &v
}

func nullableTime(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	v := value.Time
	return &v
}

// Categories

const categoryColumns = `id, name_en, name_fr, sort_order, created_at, updated_at`

func scanCategory(row rowScanner) (Category, error) {
	var item Category
	err := row.Scan(&item.ID, &item.Name.En, &item.Name.Fr, &item.SortOrder, &item.CreatedAt, &item.UpdatedAt)
	return item, err
}

func (s *PostgresStore) InsertCategory(ctx context.Context, item Category) (Category, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO categories (name_en, name_fr, sort_order)
		VALUES ($1, $2, $3)
		RETURNING `+categoryColumns,
		item.Name.En, item.Name.Fr, item.SortOrder,
	)
	created, err := scanCategory(row)
	if err != nil {
		return Category{}, fmt.Errorf("insert category: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) UpdateCategory(ctx context.Context, item Category) (Category, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE categories
		SET name_en=$2, name_fr=$3, sort_order=$4, updated_at=NOW()
		WHERE id=$1
		RETURNING `+categoryColumns,
		item.ID, item.Name.En, item.Name.Fr, item.SortOrder,
	)
	updated, err := scanCategory(row)
	if err != nil {
		return Category{}, notFound(err)
	}
	return updated, nil
}

func (s *PostgresStore) GetCategory(ctx context.Context, id int64) (Category, error) {
	item, err := scanCategory(s.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id=$1`, id))
	if err != nil {
		return Category{}, notFound(err)
	}
	return item, nil
}

func (s *PostgresStore) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY sort_order ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	items := make([]Category, 0)
	for rows.Next() {
		item, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return items, nil
}

// DeleteCategory removes the category together with every book beneath it.
func (s *PostgresStore) DeleteCategory(ctx context.Context, id int64, guard DeleteGuard) (Removal, error) {
	var removal Removal
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var locked int64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM categories WHERE id=$1 FOR UPDATE`, id).Scan(&locked); err != nil {
			return notFound(err)
		}
		books, err := queryIDs(ctx, tx, `SELECT id FROM books WHERE category_id=$1 ORDER BY id FOR UPDATE`, id)
		if err != nil {
			return fmt.Errorf("lock books: %w", err)
		}
		subtree, err := collectSubtree(ctx, tx, KindBook, books)
		if err != nil {
			return err
		}
		if err := runGuard(ctx, guard, tx, subtree); err != nil {
			return err
		}
		removal, err = removeSubtree(ctx, tx, subtree)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id=$1`, id); err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		return nil
	})
	return removal, err
}

// Nodes

func scanNode(row rowScanner, kind NodeKind) (Node, error) {
	var (
		item    Node
		working sql.NullInt64
	)
	if err := row.Scan(&item.ID, &item.ParentID, &item.Number, &item.Position, &working, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return Node{}, err
	}
	item.Kind = kind
	item.WorkingVersionID = nullableInt64(working)
	return item, nil
}

func (s *PostgresStore) InsertNode(ctx context.Context, item Node) (Node, error) {
	t, err := tableFor(item.Kind)
	if err != nil {
		return Node{}, err
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s, %s) VALUES ($1, $2) RETURNING %s`, t.nodes, t.parentCol, t.numberCol, t.nodeColumns(""))
	args := []any{item.ParentID, item.Number}
	if t.position {
		query = fmt.Sprintf(`INSERT INTO %s (%s, %s, position) VALUES ($1, $2, $3) RETURNING %s`, t.nodes, t.parentCol, t.numberCol, t.nodeColumns(""))
		args = append(args, item.Position)
	}
	created, err := scanNode(s.db.QueryRowContext(ctx, query, args...), item.Kind)
	if err != nil {
		switch pgCode(err) {
		case pgUniqueViolation:
			return Node{}, ErrDuplicatePosition
		case pgForeignKeyViolation:
			return Node{}, ErrParentNotFound
		}
		return Node{}, fmt.Errorf("insert %s: %w", item.Kind.Label(), err)
	}
	return created, nil
}

func (s *PostgresStore) UpdateNodePlacement(ctx context.Context, item Node) (Node, error) {
	t, err := tableFor(item.Kind)
	if err != nil {
		return Node{}, err
	}
	query := fmt.Sprintf(`UPDATE %s SET %s=$2, updated_at=NOW() WHERE id=$1 RETURNING %s`, t.nodes, t.numberCol, t.nodeColumns(""))
	args := []any{item.ID, item.Number}
	if t.position {
		query = fmt.Sprintf(`UPDATE %s SET %s=$2, position=$3, updated_at=NOW() WHERE id=$1 RETURNING %s`, t.nodes, t.numberCol, t.nodeColumns(""))
		args = append(args, item.Position)
	}
	updated, err := scanNode(s.db.QueryRowContext(ctx, query, args...), item.Kind)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return Node{}, ErrDuplicatePosition
		}
		return Node{}, notFound(err)
	}
	return updated, nil
}

func (s *PostgresStore) GetNode(ctx context.Context, kind NodeKind, id int64) (Node, error) {
	t, err := tableFor(kind)
	if err != nil {
		return Node{}, err
	}
	item, err := scanNode(s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE id=$1`, t.nodeColumns(""), t.nodes), id), kind)
	if err != nil {
		return Node{}, notFound(err)
	}
	return item, nil
}

// ListChildren returns nodes of kind whose parent is one of parentIDs,
// ordered by parent and then by number.
func (s *PostgresStore) ListChildren(ctx context.Context, kind NodeKind, parentIDs ...int64) ([]Node, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	items := make([]Node, 0)
	if len(parentIDs) == 0 {
		return items, nil
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s = ANY($1) ORDER BY %s ASC, %s ASC, id ASC`,
		t.nodeColumns(""), t.nodes, t.parentCol, t.parentCol, t.numberCol,
	), parentIDs)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.nodes, err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanNode(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind.Label(), err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", t.nodes, err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteNode(ctx context.Context, kind NodeKind, id int64, guard DeleteGuard) (Removal, error) {
	t, err := tableFor(kind)
	if err != nil {
		return Removal{}, err
	}
	var removal Removal
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockNode(ctx, tx, t, id, nil); err != nil {
			return err
		}
		subtree, err := collectSubtree(ctx, tx, kind, []int64{id})
		if err != nil {
			return err
		}
		if err := runGuard(ctx, guard, tx, subtree); err != nil {
			return err
		}
		removal, err = removeSubtree(ctx, tx, subtree)
		return err
	})
	return removal, err
}

// lockNode takes a row lock on the node and optionally reads its working
// version pointer.
func lockNode(ctx context.Context, tx *sql.Tx, t kindTable, id int64, working *sql.NullInt64) error {
	var locked int64
	var pointer sql.NullInt64
	err := tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT id, working_version_id FROM %s WHERE id=$1 FOR UPDATE`, t.nodes), id).Scan(&locked, &pointer)
	if err != nil {
		return notFound(err)
	}
	if working != nil {
		*working = pointer
	}
	return nil
}

func queryIDs(ctx context.Context, q Querier, query string, args ...any) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// collectSubtree locks and returns every descendant of the given nodes,
// level by level.
func collectSubtree(ctx context.Context, tx *sql.Tx, kind NodeKind, ids []int64) (map[NodeKind][]int64, error) {
	subtree := map[NodeKind][]int64{kind: ids}
	parents := ids
	for current := kind; len(parents) > 0; {
		child, ok := current.Child()
		if !ok {
			break
		}
		t := kindTables[child]
		childIDs, err := queryIDs(ctx, tx, fmt.Sprintf(
			`SELECT id FROM %s WHERE %s = ANY($1) ORDER BY id FOR UPDATE`, t.nodes, t.parentCol,
		), parents)
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", t.nodes, err)
		}
		subtree[child] = childIDs
		parents = childIDs
		current = child
	}
	return subtree, nil
}

func runGuard(ctx context.Context, guard DeleteGuard, q Querier, subtree map[NodeKind][]int64) error {
	paragraphs := subtree[KindParagraph]
	if guard == nil || len(paragraphs) == 0 {
		return nil
	}
	return guard(ctx, q, paragraphs)
}

// removeSubtree deletes bottom-up: comments, reviews, reviewable items,
// status rows, versions and finally the nodes themselves.
func removeSubtree(ctx context.Context, tx *sql.Tx, subtree map[NodeKind][]int64) (Removal, error) {
	removal := Removal{Nodes: make(map[NodeKind][]int64)}
	for i := len(NodeKinds) - 1; i >= 0; i-- {
		kind := NodeKinds[i]
		ids := subtree[kind]
		if len(ids) == 0 {
			continue
		}
		t := kindTables[kind]

		result, err := tx.ExecContext(ctx, `
			DELETE FROM review_comments
			WHERE review_id IN (
				SELECT r.id FROM reviews r
				JOIN reviewable_items i ON i.id = r.reviewable_item_id
				WHERE i.item_type=$1 AND i.reference_id = ANY($2)
			)
		`, string(kind), ids)
		if err != nil {
			return Removal{}, fmt.Errorf("delete %s review comments: %w", kind.Label(), err)
		}
		removal.Comments += affected(result)

		result, err = tx.ExecContext(ctx, `
			DELETE FROM reviews
			WHERE reviewable_item_id IN (
				SELECT id FROM reviewable_items WHERE item_type=$1 AND reference_id = ANY($2)
			)
		`, string(kind), ids)
		if err != nil {
			return Removal{}, fmt.Errorf("delete %s reviews: %w", kind.Label(), err)
		}
		removal.Reviews += affected(result)

		if _, err := tx.ExecContext(ctx, `DELETE FROM reviewable_items WHERE item_type=$1 AND reference_id = ANY($2)`, string(kind), ids); err != nil {
			return Removal{}, fmt.Errorf("delete %s reviewable items: %w", kind.Label(), err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM content_status WHERE entity_type=$1 AND entity_id = ANY($2)`, string(kind), ids); err != nil {
			return Removal{}, fmt.Errorf("delete %s status: %w", kind.Label(), err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET working_version_id=NULL WHERE id = ANY($1)`, t.nodes), ids); err != nil {
			return Removal{}, fmt.Errorf("clear %s working versions: %w", kind.Label(), err)
		}
		result, err = tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s = ANY($1)`, t.versions, t.versionFK), ids)
		if err != nil {
			return Removal{}, fmt.Errorf("delete %s: %w", t.versions, err)
		}
		removal.Versions += affected(result)

		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, t.nodes), ids); err != nil {
			return Removal{}, fmt.Errorf("delete %s: %w", t.nodes, err)
		}
		removal.Nodes[kind] = ids
	}
	return removal, nil
}

func affected(result sql.Result) int64 {
	n, err := result.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}

// Versions

func scanVersion(row rowScanner, kind NodeKind) (Version, error) {
	var item Version
	err := row.Scan(&item.ID, &item.NodeID, &item.Number, &item.Title.En, &item.Title.Fr, &item.Body.En, &item.Body.Fr, &item.AuthorID, &item.CreatedAt)
	if err != nil {
		return Version{}, err
	}
	item.Kind = kind
	return item, nil
}

// CreateVersion appends a version numbered one past the current maximum
// and moves the node's working pointer to it. The node row lock
// serializes concurrent writers for the same node.
func (s *PostgresStore) CreateVersion(ctx context.Context, item Version) (Version, error) {
	t, err := tableFor(item.Kind)
	if err != nil {
		return Version{}, err
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockNode(ctx, tx, t, item.NodeID, nil); err != nil {
			return err
		}
		var next int
		if err := tx.QueryRowContext(ctx, fmt.Sprintf(
			`SELECT COALESCE(MAX(version_number), 0) + 1 FROM %s WHERE %s=$1`, t.versions, t.versionFK,
		), item.NodeID).Scan(&next); err != nil {
			return fmt.Errorf("next version number: %w", err)
		}
		if err := tx.QueryRowContext(ctx, t.insertVersionSQL(), t.insertVersionArgs(item, next)...).Scan(&item.ID, &item.CreatedAt); err != nil {
			return fmt.Errorf("insert %s: %w", t.versions, err)
		}
		item.Number = next
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			`UPDATE %s SET working_version_id=$2, updated_at=NOW() WHERE id=$1`, t.nodes,
		), item.NodeID, item.ID); err != nil {
			return fmt.Errorf("move working version: %w", err)
		}
		return nil
	})
	if err != nil {
		return Version{}, err
	}
	if !item.Kind.HasTitle() {
		item.Title = Text{}
	}
	return item, nil
}

func (s *PostgresStore) GetVersion(ctx context.Context, kind NodeKind, id int64) (Version, error) {
	t, err := tableFor(kind)
	if err != nil {
		return Version{}, err
	}
	item, err := scanVersion(s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE id=$1`, t.versionColumns(""), t.versions), id), kind)
	if err != nil {
		return Version{}, notFound(err)
	}
	return item, nil
}

func (s *PostgresStore) GetVersions(ctx context.Context, kind NodeKind, ids []int64) (map[int64]Version, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	items := make(map[int64]Version, len(ids))
	if len(ids) == 0 {
		return items, nil
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE id = ANY($1)`, t.versionColumns(""), t.versions), ids)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", t.versions, err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanVersion(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("scan %s version: %w", kind.Label(), err)
		}
		items[item.ID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", t.versions, err)
	}
	return items, nil
}

func (s *PostgresStore) LatestVersion(ctx context.Context, kind NodeKind, nodeID int64) (Version, error) {
	t, err := tableFor(kind)
	if err != nil {
		return Version{}, err
	}
	item, err := scanVersion(s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s=$1 ORDER BY version_number DESC LIMIT 1`, t.versionColumns(""), t.versions, t.versionFK,
	), nodeID), kind)
	if err != nil {
		return Version{}, notFound(err)
	}
	return item, nil
}

func (s *PostgresStore) VersionByNumber(ctx context.Context, kind NodeKind, nodeID int64, number int) (Version, error) {
	t, err := tableFor(kind)
	if err != nil {
		return Version{}, err
	}
	item, err := scanVersion(s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s=$1 AND version_number=$2`, t.versionColumns(""), t.versions, t.versionFK,
	), nodeID, number), kind)
	if err != nil {
		return Version{}, notFound(err)
	}
	return item, nil
}

func (s *PostgresStore) ListVersions(ctx context.Context, kind NodeKind, nodeID int64) ([]Version, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s=$1 ORDER BY version_number DESC`, t.versionColumns(""), t.versions, t.versionFK,
	), nodeID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.versions, err)
	}
	defer rows.Close()

	items := make([]Version, 0)
	for rows.Next() {
		item, err := scanVersion(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("scan %s version: %w", kind.Label(), err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", t.versions, err)
	}
	return items, nil
}

// Content status

func scanStatus(row rowScanner, kind NodeKind, id int64) (ContentStatus, error) {
	var (
		item      = ContentStatus{Kind: kind, EntityID: id}
		state     string
		published sql.NullInt64
		updatedAt time.Time
	)
	if err := row.Scan(&state, &published, &item.UpdatedBy, &updatedAt); err != nil {
		return ContentStatus{}, err
	}
	item.State = ContentState(state)
	item.PublishedVersionID = nullableInt64(published)
	item.UpdatedAt = &updatedAt
	return item, nil
}

func draftStatus(kind NodeKind, id int64) ContentStatus {
	return ContentStatus{Kind: kind, EntityID: id, State: StateDraft}
}

func (s *PostgresStore) GetContentStatus(ctx context.Context, kind NodeKind, id int64) (ContentStatus, error) {
	item, err := scanStatus(s.db.QueryRowContext(ctx, `
		SELECT status, published_version_id, updated_by, updated_at
		FROM content_status
		WHERE entity_type=$1 AND entity_id=$2
	`, string(kind), id), kind, id)
	if errors.Is(err, sql.ErrNoRows) {
		return draftStatus(kind, id), nil
	}
	if err != nil {
		return ContentStatus{}, fmt.Errorf("read content status: %w", err)
	}
	return item, nil
}

// ListContentStatuses returns stored rows only; absent ids are drafts.
func (s *PostgresStore) ListContentStatuses(ctx context.Context, kind NodeKind, ids []int64) (map[int64]ContentStatus, error) {
	items := make(map[int64]ContentStatus, len(ids))
	if len(ids) == 0 {
		return items, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, status, published_version_id, updated_by, updated_at
		FROM content_status
		WHERE entity_type=$1 AND entity_id = ANY($2)
	`, string(kind), ids)
	if err != nil {
		return nil, fmt.Errorf("list content status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id        int64
			state     string
			published sql.NullInt64
			updatedBy int64
			updatedAt time.Time
		)
		if err := rows.Scan(&id, &state, &published, &updatedBy, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan content status: %w", err)
		}
		items[id] = ContentStatus{
			Kind:               kind,
			EntityID:           id,
			State:              ContentState(state),
			PublishedVersionID: nullableInt64(published),
			UpdatedBy:          updatedBy,
			UpdatedAt:          &updatedAt,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate content status: %w", err)
	}
	return items, nil
}

// SetContentState writes the state cell without touching the published
// version pointer.
func (s *PostgresStore) SetContentState(ctx context.Context, kind NodeKind, id int64, state ContentState, userID int64) (ContentStatus, error) {
	t, err := tableFor(kind)
	if err != nil {
		return ContentStatus{}, err
	}
	var item ContentStatus
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockNode(ctx, tx, t, id, nil); err != nil {
			return err
		}
		item, err = scanStatus(tx.QueryRowContext(ctx, `
			INSERT INTO content_status (entity_type, entity_id, status, updated_by, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (entity_type, entity_id) DO UPDATE
			SET status=EXCLUDED.status, updated_by=EXCLUDED.updated_by, updated_at=EXCLUDED.updated_at
			RETURNING status, published_version_id, updated_by, updated_at
		`, string(kind), id, string(state), userID), kind, id)
		if err != nil {
			return fmt.Errorf("write content status: %w", err)
		}
		return nil
	})
	return item, err
}

func publishStatus(ctx context.Context, tx *sql.Tx, kind NodeKind, id, versionID, userID int64) (ContentStatus, error) {
	item, err := scanStatus(tx.QueryRowContext(ctx, `
		INSERT INTO content_status (entity_type, entity_id, status, published_version_id, updated_by, updated_at)
		VALUES ($1, $2, 'PUBLISHED', $3, $4, NOW())
		ON CONFLICT (entity_type, entity_id) DO UPDATE
		SET status=EXCLUDED.status,
			published_version_id=EXCLUDED.published_version_id,
			updated_by=EXCLUDED.updated_by,
			updated_at=EXCLUDED.updated_at
		RETURNING status, published_version_id, updated_by, updated_at
	`, string(kind), id, versionID, userID), kind, id)
	if err != nil {
		return ContentStatus{}, fmt.Errorf("publish content status: %w", err)
	}
	return item, nil
}

func hasPendingReview(ctx context.Context, q Querier, kind NodeKind, id int64) (bool, error) {
	var pending bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM reviews r
			JOIN reviewable_items i ON i.id = r.reviewable_item_id
			WHERE i.item_type=$1 AND i.reference_id=$2 AND r.status='PENDING'
		)
	`, string(kind), id).Scan(&pending)
	if err != nil {
		return false, fmt.Errorf("check pending review: %w", err)
	}
	return pending, nil
}

// Publish marks the node's working version as published without a review.
func (s *PostgresStore) Publish(ctx context.Context, kind NodeKind, id, userID int64) (ContentStatus, error) {
	t, err := tableFor(kind)
	if err != nil {
		return ContentStatus{}, err
	}
	var item ContentStatus
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var working sql.NullInt64
		if err := lockNode(ctx, tx, t, id, &working); err != nil {
			return err
		}
		if !working.Valid {
			return ErrNoVersion
		}
		pending, err := hasPendingReview(ctx, tx, kind, id)
		if err != nil {
			return err
		}
		if pending {
			return ErrReviewPending
		}
		item, err = publishStatus(ctx, tx, kind, id, working.Int64, userID)
		return err
	})
	return item, err
}

func (s *PostgresStore) ListPublished(ctx context.Context, kind NodeKind) ([]PublishedVersion, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s, %s
		FROM content_status cs
		JOIN %s n ON n.id = cs.entity_id
		JOIN %s v ON v.id = cs.published_version_id
		WHERE cs.entity_type=$1 AND cs.status='PUBLISHED'
		ORDER BY n.id ASC
	`, t.nodeColumns("n"), t.versionColumns("v"), t.nodes, t.versions), string(kind))
	if err != nil {
		return nil, fmt.Errorf("list published %s: %w", t.nodes, err)
	}
	defer rows.Close()

	items := make([]PublishedVersion, 0)
	for rows.Next() {
		var (
			item    PublishedVersion
			working sql.NullInt64
		)
		if err := rows.Scan(
			&item.Node.ID, &item.Node.ParentID, &item.Node.Number, &item.Node.Position, &working, &item.Node.CreatedAt, &item.Node.UpdatedAt,
			&item.Version.ID, &item.Version.NodeID, &item.Version.Number, &item.Version.Title.En, &item.Version.Title.Fr,
			&item.Version.Body.En, &item.Version.Body.Fr, &item.Version.AuthorID, &item.Version.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan published %s: %w", kind.Label(), err)
		}
		item.Node.Kind = kind
		item.Node.WorkingVersionID = nullableInt64(working)
		item.Version.Kind = kind
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate published %s: %w", t.nodes, err)
	}
	return items, nil
}

// Reviews

const reviewSelect = `
	SELECT r.id, r.reviewable_item_id, i.item_type, i.reference_id, r.reviewed_version_id, r.status,
		r.submitted_by, r.reviewed_by, r.submit_comment, r.decision_comment, r.submitted_at, r.reviewed_at
	FROM reviews r
	JOIN reviewable_items i ON i.id = r.reviewable_item_id
`

func scanReview(row rowScanner) (Review, error) {
	var (
		item       Review
		kind       string
		status     string
		reviewedBy sql.NullInt64
		reviewedAt sql.NullTime
	)
	if err := row.Scan(
		&item.ID, &item.ItemID, &kind, &item.ReferenceID, &item.VersionID, &status,
		&item.SubmittedBy, &reviewedBy, &item.SubmitComment, &item.DecisionComment, &item.SubmittedAt, &reviewedAt,
	); err != nil {
		return Review{}, err
	}
	item.Kind = NodeKind(kind)
	item.Status = ReviewStatus(status)
	item.ReviewedBy = nullableInt64(reviewedBy)
	item.ReviewedAt = nullableTime(reviewedAt)
	return item, nil
}

func queryReviews(ctx context.Context, q Querier, query string, args ...any) ([]Review, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	items := make([]Review, 0)
	for rows.Next() {
		item, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}
	return items, nil
}

func upsertReviewableItem(ctx context.Context, q Querier, kind NodeKind, referenceID int64) (ReviewableItem, error) {
	item := ReviewableItem{Kind: kind, ReferenceID: referenceID}
	err := q.QueryRowContext(ctx, `
		INSERT INTO reviewable_items (item_type, reference_id)
		VALUES ($1, $2)
		ON CONFLICT (item_type, reference_id) DO UPDATE SET item_type=EXCLUDED.item_type
		RETURNING id, created_at
	`, string(kind), referenceID).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		return ReviewableItem{}, fmt.Errorf("upsert reviewable item: %w", err)
	}
	return item, nil
}

// GetOrCreateReviewableItem locks the node like SubmitReview does, so an item
// is never created for a node a concurrent delete is removing.
func (s *PostgresStore) GetOrCreateReviewableItem(ctx context.Context, kind NodeKind, referenceID int64) (ReviewableItem, error) {
	t, err := tableFor(kind)
	if err != nil {
		return ReviewableItem{}, err
	}
	var item ReviewableItem
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockNode(ctx, tx, t, referenceID, nil); err != nil {
			return err
		}
		var err error
		item, err = upsertReviewableItem(ctx, tx, kind, referenceID)
		return err
	})
	return item, err
}

// SubmitReview opens a PENDING review for the version. At most one review
// per item may be pending; the partial unique index backs the check.
func (s *PostgresStore) SubmitReview(ctx context.Context, item Review) (Review, error) {
	t, err := tableFor(item.Kind)
	if err != nil {
		return Review{}, err
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockNode(ctx, tx, t, item.ReferenceID, nil); err != nil {
			return err
		}
		var owner int64
		err := tx.QueryRowContext(ctx, fmt.Sprintf(
			`SELECT %s FROM %s WHERE id=$1`, t.versionFK, t.versions,
		), item.VersionID).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrVersionNotFound
		}
		if err != nil {
			return fmt.Errorf("check reviewed version: %w", err)
		}
		if owner != item.ReferenceID {
			return ErrVersionMismatch
		}
		reviewable, err := upsertReviewableItem(ctx, tx, item.Kind, item.ReferenceID)
		if err != nil {
			return err
		}
		item.ItemID = reviewable.ID

		pending, err := hasPendingReview(ctx, tx, item.Kind, item.ReferenceID)
		if err != nil {
			return err
		}
		if pending {
			return ErrReviewPending
		}
		err = tx.QueryRowContext(ctx, `
			INSERT INTO reviews (reviewable_item_id, reviewed_version_id, status, submitted_by, submit_comment)
			VALUES ($1, $2, 'PENDING', $3, $4)
			RETURNING id, submitted_at
		`, item.ItemID, item.VersionID, item.SubmittedBy, item.SubmitComment).Scan(&item.ID, &item.SubmittedAt)
		if err != nil {
			if pgCode(err) == pgUniqueViolation {
				return ErrReviewPending
			}
			return fmt.Errorf("insert review: %w", err)
		}
		item.Status = ReviewPending
		item.ReviewedBy = nil
		item.ReviewedAt = nil
		item.DecisionComment = ""
		return nil
	})
	if err != nil {
		return Review{}, err
	}
	return item, nil
}

// DecideReview moves a PENDING review to APPROVED or REJECTED. Approval
// publishes the reviewed version in the same transaction.
func (s *PostgresStore) DecideReview(ctx context.Context, id int64, status ReviewStatus, reviewedBy int64, comment string) (Review, error) {
	var item Review
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		item, err = scanReview(tx.QueryRowContext(ctx, reviewSelect+` WHERE r.id=$1`, id))
		if err != nil {
			return notFound(err)
		}
		t, err := tableFor(item.Kind)
		if err != nil {
			return err
		}
		if err := lockNode(ctx, tx, t, item.ReferenceID, nil); err != nil {
			return err
		}
		var reviewedAt time.Time
		err = tx.QueryRowContext(ctx, `
			UPDATE reviews
			SET status=$2, reviewed_by=$3, decision_comment=$4, reviewed_at=NOW()
			WHERE id=$1 AND status='PENDING'
			RETURNING reviewed_at
		`, id, string(status), reviewedBy, comment).Scan(&reviewedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrReviewNotPending
		}
		if err != nil {
			return fmt.Errorf("decide review: %w", err)
		}
		item.Status = status
		item.ReviewedBy = &reviewedBy
		item.ReviewedAt = &reviewedAt
		item.DecisionComment = comment

		if status == ReviewApproved {
			if _, err := publishStatus(ctx, tx, item.Kind, item.ReferenceID, item.VersionID, reviewedBy); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Review{}, err
	}
	return item, nil
}

func (s *PostgresStore) GetReview(ctx context.Context, id int64) (Review, error) {
	item, err := scanReview(s.db.QueryRowContext(ctx, reviewSelect+` WHERE r.id=$1`, id))
	if err != nil {
		return Review{}, notFound(err)
	}
	return item, nil
}

func (s *PostgresStore) ListReviews(ctx context.Context, kind NodeKind, referenceID int64) ([]Review, error) {
	return queryReviews(ctx, s.db, reviewSelect+`
		WHERE i.item_type=$1 AND i.reference_id=$2
		ORDER BY r.submitted_at DESC, r.id DESC
	`, string(kind), referenceID)
}

func (s *PostgresStore) LatestApprovedReview(ctx context.Context, kind NodeKind, referenceID int64) (Review, error) {
	item, err := scanReview(s.db.QueryRowContext(ctx, reviewSelect+`
		WHERE i.item_type=$1 AND i.reference_id=$2 AND r.status='APPROVED'
		ORDER BY r.reviewed_at DESC, r.id DESC
		LIMIT 1
	`, string(kind), referenceID))
	if err != nil {
		return Review{}, notFound(err)
	}
	return item, nil
}

func (s *PostgresStore) ListPendingReviews(ctx context.Context, limit int) ([]Review, error) {
	if limit <= 0 {
		limit = 100
	}
	return queryReviews(ctx, s.db, reviewSelect+`
		WHERE r.status='PENDING'
		ORDER BY r.submitted_at ASC, r.id ASC
		LIMIT $1
	`, limit)
}

// Review comments

const commentColumns = `id, review_id, reviewed_version_id, field_name, comment_text, author_id, created_at, updated_at`

func scanComment(row rowScanner) (ReviewComment, error) {
	var item ReviewComment
	err := row.Scan(&item.ID, &item.ReviewID, &item.VersionID, &item.FieldName, &item.Text, &item.AuthorID, &item.CreatedAt, &item.UpdatedAt)
	return item, err
}

func (s *PostgresStore) InsertComment(ctx context.Context, item ReviewComment) (ReviewComment, error) {
	created, err := scanComment(s.db.QueryRowContext(ctx, `
		INSERT INTO review_comments (review_id, reviewed_version_id, field_name, comment_text, author_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+commentColumns,
		item.ReviewID, item.VersionID, item.FieldName, item.Text, item.AuthorID,
	))
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return ReviewComment{}, ErrNotFound
		}
		return ReviewComment{}, fmt.Errorf("insert review comment: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetComment(ctx context.Context, id int64) (ReviewComment, error) {
	item, err := scanComment(s.db.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM review_comments WHERE id=$1`, id))
	if err != nil {
		return ReviewComment{}, notFound(err)
	}
	return item, nil
}

func (s *PostgresStore) UpdateComment(ctx context.Context, id int64, text string) (ReviewComment, error) {
	item, err := scanComment(s.db.QueryRowContext(ctx, `
		UPDATE review_comments SET comment_text=$2, updated_at=NOW()
		WHERE id=$1
		RETURNING `+commentColumns,
		id, text,
	))
	if err != nil {
		return ReviewComment{}, notFound(err)
	}
	return item, nil
}

func (s *PostgresStore) DeleteComment(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM review_comments WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete review comment: %w", err)
	}
	if affected(result) == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListComments(ctx context.Context, reviewID int64) ([]ReviewComment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+commentColumns+` FROM review_comments WHERE review_id=$1 ORDER BY created_at ASC, id ASC`, reviewID)
	if err != nil {
		return nil, fmt.Errorf("list review comments: %w", err)
	}
	defer rows.Close()

	items := make([]ReviewComment, 0)
	for rows.Next() {
		item, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review comments: %w", err)
	}
	return items, nil
}
