package store

import (
	"fmt"
	"strings"
)

// kindTable maps a node kind onto its node and version tables.
type kindTable struct {
	nodes       string
	versions    string
	parentTable string
	parentCol   string
	numberCol   string
	versionFK   string
	bodyPrefix  string
	position    bool
	title       bool
}

var kindTables = map[NodeKind]kindTable{
	KindBook: {
		nodes: "books", versions: "book_versions",
		parentTable: "categories", parentCol: "category_id", numberCol: "book_number",
		versionFK: "book_id", bodyPrefix: "intro", title: true,
	},
	KindChapter: {
		nodes: "chapters", versions: "chapter_versions",
		parentTable: "books", parentCol: "book_id", numberCol: "chapter_number",
		versionFK: "chapter_id", bodyPrefix: "intro", title: true, position: true,
	},
	KindSection: {
		nodes: "sections", versions: "section_versions",
		parentTable: "chapters", parentCol: "chapter_id", numberCol: "order_index",
		versionFK: "section_id", bodyPrefix: "intro", title: true,
	},
	KindParagraph: {
		nodes: "paragraphs", versions: "paragraph_versions",
		parentTable: "sections", parentCol: "section_id", numberCol: "paragraph_number",
		versionFK: "paragraph_id", bodyPrefix: "content",
	},
}

func tableFor(kind NodeKind) (kindTable, error) {
	t, ok := kindTables[kind]
	if !ok {
		return kindTable{}, fmt.Errorf("unknown node kind %q", kind)
	}
	return t, nil
}

func qualify(alias, column string) string {
	if alias == "" {
		return column
	}
	return alias + "." + column
}

// nodeColumns scans in the order expected by scanNode.
func (t kindTable) nodeColumns(alias string) string {
	position := "0"
	if t.position {
		position = qualify(alias, "position")
	}
	return strings.Join([]string{
		qualify(alias, "id"),
		qualify(alias, t.parentCol),
		qualify(alias, t.numberCol),
		position,
		qualify(alias, "working_version_id"),
		qualify(alias, "created_at"),
		qualify(alias, "updated_at"),
	}, ", ")
}

// versionColumns scans in the order expected by scanVersion.
func (t kindTable) versionColumns(alias string) string {
	titleEn, titleFr := "''", "''"
	if t.title {
		titleEn, titleFr = qualify(alias, "title_en"), qualify(alias, "title_fr")
	}
	return strings.Join([]string{
		qualify(alias, "id"),
		qualify(alias, t.versionFK),
		qualify(alias, "version_number"),
		titleEn,
		titleFr,
		qualify(alias, t.bodyPrefix+"_en"),
		qualify(alias, t.bodyPrefix+"_fr"),
		qualify(alias, "author_id"),
		qualify(alias, "created_at"),
	}, ", ")
}

func (t kindTable) insertVersionSQL() string {
	columns := []string{t.versionFK, "version_number"}
	if t.title {
		columns = append(columns, "title_en", "title_fr")
	}
	columns = append(columns, t.bodyPrefix+"_en", t.bodyPrefix+"_fr", "author_id")
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s) RETURNING id, created_at`,
		t.versions, strings.Join(columns, ", "), strings.Join(placeholders, ", "),
	)
}

func (t kindTable) insertVersionArgs(v Version, number int) []any {
	args := []any{v.NodeID, number}
	if t.title {
		args = append(args, v.Title.En, v.Title.Fr)
	}
	return append(args, v.Body.En, v.Body.Fr, v.AuthorID)
}
