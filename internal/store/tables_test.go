package store

import (
	"strings"
	"testing"
)

func TestKindTableColumns(t *testing.T) {
	tests := []struct {
		kind        NodeKind
		nodeCols    string
		versionCols string
	}{
		{
			kind:        KindBook,
			nodeCols:    "id, category_id, book_number, 0, working_version_id, created_at, updated_at",
			versionCols: "id, book_id, version_number, title_en, title_fr, intro_en, intro_fr, author_id, created_at",
		},
		{
			kind:        KindChapter,
			nodeCols:    "id, book_id, chapter_number, position, working_version_id, created_at, updated_at",
			versionCols: "id, chapter_id, version_number, title_en, title_fr, intro_en, intro_fr, author_id, created_at",
		},
		{
			kind:        KindParagraph,
			nodeCols:    "id, section_id, paragraph_number, 0, working_version_id, created_at, updated_at",
			versionCols: "id, paragraph_id, version_number, '', '', content_en, content_fr, author_id, created_at",
		},
	}
	for _, tc := range tests {
		table, err := tableFor(tc.kind)
		if err != nil {
			t.Fatalf("tableFor(%s) error = %v", tc.kind, err)
		}
		if got := table.nodeColumns(""); got != tc.nodeCols {
			t.Fatalf("%s node columns = %q, want %q", tc.kind, got, tc.nodeCols)
		}
		if got := table.versionColumns(""); got != tc.versionCols {
			t.Fatalf("%s version columns = %q, want %q", tc.kind, got, tc.versionCols)
		}
	}
}

func TestKindTableAliasedColumns(t *testing.T) {
	got := kindTables[KindSection].nodeColumns("n")
	if !strings.HasPrefix(got, "n.id, n.chapter_id, n.order_index, 0,") {
		t.Fatalf("unexpected aliased columns %q", got)
	}
}

func TestInsertVersionSQLMatchesArgs(t *testing.T) {
	for _, kind := range NodeKinds {
		table := kindTables[kind]
		query := table.insertVersionSQL()
		args := table.insertVersionArgs(Version{Kind: kind, NodeID: 1, AuthorID: 2}, 3)
		placeholders := strings.Count(query, "$")
		if placeholders != len(args) {
			t.Fatalf("%s: %d placeholders for %d args in %q", kind, placeholders, len(args), query)
		}
	}
}

func TestTableForRejectsUnknownKind(t *testing.T) {
	if _, err := tableFor(NodeKind("VOLUME")); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestNodeKindNavigation(t *testing.T) {
	if child, ok := KindBook.Child(); !ok || child != KindChapter {
		t.Fatalf("book child = %s, %v", child, ok)
	}
	if _, ok := KindParagraph.Child(); ok {
		t.Fatal("paragraphs have no children")
	}
	if _, ok := KindBook.Parent(); ok {
		t.Fatal("books hang off categories, not nodes")
	}
	if kind, ok := ParseNodeKind(" section "); !ok || kind != KindSection {
		t.Fatalf("ParseNodeKind() = %s, %v", kind, ok)
	}
	if !KindParagraph.HasField("contentFr") || KindParagraph.HasField("titleEn") {
		t.Fatal("paragraph comment fields are content only")
	}
}
