package store

import (
	"strings"
	"time"
)

// NodeKind identifies one level of the content tree below a category.
type NodeKind string

const (
	KindBook      NodeKind = "BOOK"
	KindChapter   NodeKind = "CHAPTER"
	KindSection   NodeKind = "SECTION"
	KindParagraph NodeKind = "PARAGRAPH"
)

// NodeKinds lists every kind from the root of the tree to the leaves.
var NodeKinds = []NodeKind{KindBook, KindChapter, KindSection, KindParagraph}

func ParseNodeKind(raw string) (NodeKind, bool) {
	kind := NodeKind(strings.ToUpper(strings.TrimSpace(raw)))
	return kind, kind.Valid()
}

func (k NodeKind) Valid() bool {
	switch k {
	case KindBook, KindChapter, KindSection, KindParagraph:
		return true
	default:
		return false
	}
}

// Child returns the kind nested directly below k.
func (k NodeKind) Child() (NodeKind, bool) {
	switch k {
	case KindBook:
		return KindChapter, true
	case KindChapter:
		return KindSection, true
	case KindSection:
		return KindParagraph, true
	default:
		return "", false
	}
}

// Parent returns the kind directly above k. Books report false because
// their parent is a category.
func (k NodeKind) Parent() (NodeKind, bool) {
	switch k {
	case KindChapter:
		return KindBook, true
	case KindSection:
		return KindChapter, true
	case KindParagraph:
		return KindSection, true
	default:
		return "", false
	}
}

// HasTitle reports whether versions of k carry a title. Paragraph versions
// carry content only.
func (k NodeKind) HasTitle() bool {
	return k != KindParagraph
}

// BodyName is the name of the bilingual body field: intro or content.
func (k NodeKind) BodyName() string {
	if k == KindParagraph {
		return "content"
	}
	return "intro"
}

// Fields lists the field names review comments may target for k.
func (k NodeKind) Fields() []string {
	if k == KindParagraph {
		return []string{"contentEn", "contentFr"}
	}
	return []string{"titleEn", "titleFr", "introEn", "introFr"}
}

func (k NodeKind) HasField(name string) bool {
	for _, field := range k.Fields() {
		if field == name {
			return true
		}
	}
	return false
}

func (k NodeKind) Label() string {
	return strings.ToLower(string(k))
}

type ContentState string

const (
	StateDraft     ContentState = "DRAFT"
	StatePublished ContentState = "PUBLISHED"
)

func (s ContentState) Valid() bool {
	return s == StateDraft || s == StatePublished
}

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "PENDING"
	ReviewApproved ReviewStatus = "APPROVED"
	ReviewRejected ReviewStatus = "REJECTED"
)

// Text is a bilingual value.
type Text struct {
	En string `json:"en"`
	Fr string `json:"fr"`
}

func (t Text) Blank() bool {
	return strings.TrimSpace(t.En) == "" && strings.TrimSpace(t.Fr) == ""
}

type Category struct {
	ID        int64     `json:"id"`
	Name      Text      `json:"name"`
	SortOrder int       `json:"sortOrder"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Node is a book, chapter, section or paragraph. Number holds the
// bookNumber, chapterNumber, orderIndex or paragraphNumber of the kind.
// Position is only meaningful for chapters.
type Node struct {
	Kind             NodeKind  `json:"kind"`
	ID               int64     `json:"id"`
	ParentID         int64     `json:"parentId"`
	Number           int       `json:"number"`
	Position         int       `json:"position"`
	WorkingVersionID *int64    `json:"workingVersionId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Version is an immutable snapshot of a node's editable content.
type Version struct {
	ID        int64     `json:"id"`
	Kind      NodeKind  `json:"kind"`
	NodeID    int64     `json:"nodeId"`
	Number    int       `json:"versionNumber"`
	Title     Text      `json:"title"`
	Body      Text      `json:"body"`
	AuthorID  int64     `json:"authorId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ContentStatus is the publication cell of one node. A node without a
// stored row is a draft.
type ContentStatus struct {
	Kind               NodeKind     `json:"entityType"`
	EntityID           int64        `json:"entityId"`
	State              ContentState `json:"status"`
	PublishedVersionID *int64       `json:"publishedVersionId,omitempty"`
	UpdatedBy          int64        `json:"updatedBy,omitempty"`
	UpdatedAt          *time.Time   `json:"updatedAt,omitempty"`
}

// Visible reports whether readers of the public hierarchy may see the node.
func (s ContentStatus) Visible() bool {
	return s.State == StatePublished && s.PublishedVersionID != nil
}

type ReviewableItem struct {
	ID          int64     `json:"id"`
	Kind        NodeKind  `json:"type"`
	ReferenceID int64     `json:"referenceId"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Review struct {
	ID              int64        `json:"id"`
	ItemID          int64        `json:"reviewableItemId"`
	Kind            NodeKind     `json:"type"`
	ReferenceID     int64        `json:"referenceId"`
	VersionID       int64        `json:"reviewedVersionId"`
	Status          ReviewStatus `json:"status"`
	SubmittedBy     int64        `json:"submittedBy"`
	ReviewedBy      *int64       `json:"reviewedBy,omitempty"`
	SubmitComment   string       `json:"submitComment,omitempty"`
	DecisionComment string       `json:"decisionComment,omitempty"`
	SubmittedAt     time.Time    `json:"submittedAt"`
	ReviewedAt      *time.Time   `json:"reviewedAt,omitempty"`
}

type ReviewComment struct {
	ID        int64     `json:"id"`
	ReviewID  int64     `json:"reviewId"`
	VersionID int64     `json:"reviewedVersionId"`
	FieldName string    `json:"fieldName"`
	Text      string    `json:"commentText"`
	AuthorID  int64     `json:"authorId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PublishedVersion pairs a visible node with the version readers see.
type PublishedVersion struct {
	Node    Node    `json:"node"`
	Version Version `json:"version"`
}

// Removal summarizes a cascading delete.
type Removal struct {
	Nodes    map[NodeKind][]int64 `json:"nodes"`
	Versions int64                `json:"versions"`
	Reviews  int64                `json:"reviews"`
	Comments int64                `json:"comments"`
}

func (r Removal) Count(kind NodeKind) int {
	return len(r.Nodes[kind])
}
