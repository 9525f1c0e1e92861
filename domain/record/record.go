// Package record defines the knowledge-base record model: experiences
// (titled playbooks) and skills (reference manuals), grouped by category.
package record

import (
	"fmt"
	"strings"
	"time"
)

// Kind discriminates the two record types.
type Kind string

// Kind values.
const (
	KindExperience Kind = "experience"
	KindSkill      Kind = "skill"
)

// legacyKindManual is an alias for skill found in old databases.
// It is normalized on read and never written back.
const legacyKindManual = "manual"

// ParseKind parses and normalizes a kind string.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(KindExperience):
		return KindExperience, nil
	case string(KindSkill), legacyKindManual:
		return KindSkill, nil
	default:
		return "", fmt.Errorf("unknown record kind %q", s)
	}
}

// Valid reports whether the kind is a canonical value.
func (k Kind) Valid() bool {
	return k == KindExperience || k == KindSkill
}

// String returns the kind as a string.
func (k Kind) String() string { return string(k) }

// EmbeddingStatus tracks a record's position in the embedding lifecycle.
type EmbeddingStatus string

// EmbeddingStatus values. Records are created pending; the embedding worker
// moves them through processing to embedded or failed.
const (
	StatusPending    EmbeddingStatus = "pending"
	StatusProcessing EmbeddingStatus = "processing"
	StatusEmbedded   EmbeddingStatus = "embedded"
	StatusFailed     EmbeddingStatus = "failed"
)

// Record is a stored experience or skill. Identified by an opaque string id
// plus its kind. Summary is only meaningful for skills.
type Record struct {
	id              string
	kind            Kind
	title           string
	body            string
	summary         string
	categoryCode    string
	author          string
	section         string
	embeddingStatus EmbeddingStatus
	createdAt       time.Time
	updatedAt       time.Time
}

// New creates a Record with embedding status pending.
func New(id string, kind Kind, title, body string) Record {
	now := time.Now().UTC()
	return Record{
		id:              id,
		kind:            kind,
		title:           title,
		body:            body,
		embeddingStatus: StatusPending,
		createdAt:       now,
		updatedAt:       now,
	}
}

// ID returns the stable record identifier.
func (r Record) ID() string { return r.id }

// Kind returns the record kind.
func (r Record) Kind() Kind { return r.kind }

// Title returns the record title.
func (r Record) Title() string { return r.title }

// Body returns the playbook text (experiences) or manual body (skills).
func (r Record) Body() string { return r.body }

// Summary returns the optional skill summary.
func (r Record) Summary() string { return r.summary }

// CategoryCode returns the opaque category code.
func (r Record) CategoryCode() string { return r.categoryCode }

// Author returns the record author, if recorded.
func (r Record) Author() string { return r.author }

// Section returns the record section, if recorded.
func (r Record) Section() string { return r.section }

// EmbeddingStatus returns the embedding lifecycle status.
func (r Record) EmbeddingStatus() EmbeddingStatus { return r.embeddingStatus }

// CreatedAt returns the creation timestamp.
func (r Record) CreatedAt() time.Time { return r.createdAt }

// UpdatedAt returns the last-modified timestamp.
func (r Record) UpdatedAt() time.Time { return r.updatedAt }

// WithSummary returns a copy with the summary set.
func (r Record) WithSummary(summary string) Record {
	r.summary = summary
	return r
}

// WithCategory returns a copy with the category code set.
func (r Record) WithCategory(code string) Record {
	r.categoryCode = code
	return r
}

// WithAuthor returns a copy with the author set.
func (r Record) WithAuthor(author string) Record {
	r.author = author
	return r
}

// WithSection returns a copy with the section set.
func (r Record) WithSection(section string) Record {
	r.section = section
	return r
}

// WithEmbeddingStatus returns a copy with the embedding status set.
func (r Record) WithEmbeddingStatus(status EmbeddingStatus) Record {
	r.embeddingStatus = status
	return r
}

// WithTimestamps returns a copy with explicit timestamps. Used by stores
// when hydrating from the database.
func (r Record) WithTimestamps(createdAt, updatedAt time.Time) Record {
	r.createdAt = createdAt
	r.updatedAt = updatedAt
	return r
}

// EmbeddingText returns the text the embedding worker encodes for this
// record: title plus body for experiences; title, summary and body for
// skills.
func (r Record) EmbeddingText() string {
	parts := make([]string, 0, 3)
	if t := strings.TrimSpace(r.title); t != "" {
		parts = append(parts, t)
	}
	if r.kind == KindSkill {
		if s := strings.TrimSpace(r.summary); s != "" {
			parts = append(parts, s)
		}
	}
	if b := strings.TrimSpace(r.body); b != "" {
		parts = append(parts, b)
	}
	return strings.Join(parts, "\n\n")
}

// RerankDocument returns the document string sent to the reranker:
// title plus body for experiences; body, or title when the body is empty,
// for skills.
func (r Record) RerankDocument() string {
	if r.kind == KindExperience {
		return strings.TrimSpace(r.title + "\n\n" + r.body)
	}
	if strings.TrimSpace(r.body) != "" {
		return r.body
	}
	return r.title
}
