package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/praxishq/praxis/domain/record"
	"github.com/praxishq/praxis/internal/database"
)

// maxTextSearchTokens caps how many query tokens the text search matches
// against. Longer queries fall back to their leading tokens plus the whole
// phrase.
const maxTextSearchTokens = 5

// RecordStore is the GORM-backed record store.
type RecordStore struct {
	db database.Database
}

// NewRecordStore creates a RecordStore.
func NewRecordStore(db database.Database) *RecordStore {
	return &RecordStore{db: db}
}

// kindValues returns the stored kind strings matching a canonical kind.
// Old databases stored skills under the kind "manual".
func kindValues(kind record.Kind) []string {
	if kind == record.KindSkill {
		return []string{string(record.KindSkill), "manual"}
	}
	return []string{string(kind)}
}

func toEntity(r record.Record) RecordEntity {
	return RecordEntity{
		ID:              r.ID(),
		Kind:            r.Kind().String(),
		Title:           r.Title(),
		Body:            r.Body(),
		Summary:         r.Summary(),
		CategoryCode:    r.CategoryCode(),
		Author:          r.Author(),
		Section:         r.Section(),
		EmbeddingStatus: string(r.EmbeddingStatus()),
		CreatedAt:       r.CreatedAt(),
		UpdatedAt:       r.UpdatedAt(),
	}
}

func fromEntity(e RecordEntity) (record.Record, error) {
	kind, err := record.ParseKind(e.Kind)
	if err != nil {
		return record.Record{}, err
	}
	status := record.EmbeddingStatus(e.EmbeddingStatus)
	if status == "" {
		status = record.StatusPending
	}
	r := record.New(e.ID, kind, e.Title, e.Body).
		WithSummary(e.Summary).
		WithCategory(e.CategoryCode).
		WithAuthor(e.Author).
		WithSection(e.Section).
		WithEmbeddingStatus(status).
		WithTimestamps(e.CreatedAt, e.UpdatedAt)
	return r, nil
}

func fromEntities(entities []RecordEntity) ([]record.Record, error) {
	out := make([]record.Record, 0, len(entities))
	for _, e := range entities {
		r, err := fromEntity(e)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Create inserts a new record.
func (s *RecordStore) Create(ctx context.Context, r record.Record) error {
	entity := toEntity(r)
	return database.WithRetry(ctx, func() error {
		if err := s.db.Session(ctx).Create(&entity).Error; err != nil {
			return fmt.Errorf("create record: %w", err)
		}
		return nil
	})
}

// Update persists changes to an existing record. When the embedded text
// changed, the embedding status is reset to pending so the worker
// re-encodes it.
func (s *RecordStore) Update(ctx context.Context, r record.Record) (record.Record, error) {
	existing, err := s.Get(ctx, r.ID(), r.Kind())
	if err != nil {
		return record.Record{}, err
	}

	if existing.Title() != r.Title() ||
		existing.Body() != r.Body() ||
		existing.Summary() != r.Summary() {
		r = r.WithEmbeddingStatus(record.StatusPending)
	} else {
		r = r.WithEmbeddingStatus(existing.EmbeddingStatus())
	}
	r = r.WithTimestamps(existing.CreatedAt(), time.Now().UTC())

	entity := toEntity(r)
	err = database.WithRetry(ctx, func() error {
		res := s.db.Session(ctx).
			Where("id = ? AND kind IN ?", r.ID(), kindValues(r.Kind())).
			Select("*").Omit("id", "kind", "created_at").
			Updates(&entity)
		if res.Error != nil {
			return fmt.Errorf("update record: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return record.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return record.Record{}, err
	}
	return r, nil
}

// Delete removes a record.
func (s *RecordStore) Delete(ctx context.Context, id string, kind record.Kind) error {
	return database.WithRetry(ctx, func() error {
		res := s.db.Session(ctx).
			Where("id = ? AND kind IN ?", id, kindValues(kind)).
			Delete(&RecordEntity{})
		if res.Error != nil {
			return fmt.Errorf("delete record: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return record.ErrNotFound
		}
		return nil
	})
}

// Get loads a single record.
func (s *RecordStore) Get(ctx context.Context, id string, kind record.Kind) (record.Record, error) {
	var entity RecordEntity
	err := s.db.Session(ctx).
		Where("id = ? AND kind IN ?", id, kindValues(kind)).
		Take(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return record.Record{}, record.ErrNotFound
	}
	if err != nil {
		return record.Record{}, fmt.Errorf("get record: %w", err)
	}
	return fromEntity(entity)
}

// ListPending returns up to limit records awaiting embedding, oldest first.
func (s *RecordStore) ListPending(ctx context.Context, kind *record.Kind, limit int) ([]record.Record, error) {
	return s.listByStatus(ctx, kind, limit, []string{string(record.StatusPending), ""})
}

// ListFailed returns up to limit records whose embedding failed, oldest
// first.
func (s *RecordStore) ListFailed(ctx context.Context, kind *record.Kind, limit int) ([]record.Record, error) {
	return s.listByStatus(ctx, kind, limit, []string{string(record.StatusFailed)})
}

func (s *RecordStore) listByStatus(ctx context.Context, kind *record.Kind, limit int, statuses []string) ([]record.Record, error) {
	q := s.db.Session(ctx).
		Where("embedding_status IN ?", statuses).
		Order("created_at ASC")
	if kind != nil {
		q = q.Where("kind IN ?", kindValues(*kind))
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var entities []RecordEntity
	if err := q.Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("list records by status: %w", err)
	}
	return fromEntities(entities)
}

// SetStatus updates a record's embedding status.
func (s *RecordStore) SetStatus(ctx context.Context, id string, kind record.Kind, status record.EmbeddingStatus) error {
	return database.WithRetry(ctx, func() error {
		res := s.db.Session(ctx).Model(&RecordEntity{}).
			Where("id = ? AND kind IN ?", id, kindValues(kind)).
			Updates(map[string]interface{}{
				"embedding_status": string(status),
				"updated_at":       time.Now().UTC(),
			})
		if res.Error != nil {
			return fmt.Errorf("set embedding status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return record.ErrNotFound
		}
		return nil
	})
}

// MatchText returns records matching a query by substring: the whole
// phrase, or any of its first tokens, against title, body and summary.
// Records whose embedding failed are excluded from every search surface.
// Results come back most recently updated first; scoring is the caller's
// concern.
func (s *RecordStore) MatchText(ctx context.Context, query string, kind *record.Kind, category string, limit int) ([]record.Record, error) {
	terms := searchTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	session := s.db.Session(ctx)
	match := session.Where("1 = 0")
	for _, term := range terms {
		pattern := "%" + escapeLike(term) + "%"
		match = match.Or(
			session.Where(
				"lower(title) LIKE ? ESCAPE '\\' OR lower(body) LIKE ? ESCAPE '\\' OR lower(summary) LIKE ? ESCAPE '\\'",
				pattern, pattern, pattern,
			),
		)
	}

	q := session.Where(match).
		Where("embedding_status <> ?", string(record.StatusFailed)).
		Order("updated_at DESC")
	if kind != nil {
		q = q.Where("kind IN ?", kindValues(*kind))
	}
	if category != "" {
		q = q.Where("category_code = ?", category)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var entities []RecordEntity
	if err := q.Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}
	return fromEntities(entities)
}

// FindByTitle returns records whose title contains the given title,
// case-insensitively, optionally scoped to a category and excluding one
// record id. Records with failed embeddings are excluded here too, so
// duplicate probing sees the same population as search.
func (s *RecordStore) FindByTitle(ctx context.Context, title string, kind record.Kind, category, excludeID string) ([]record.Record, error) {
	title = strings.TrimSpace(strings.ToLower(title))
	if title == "" {
		return nil, nil
	}

	q := s.db.Session(ctx).
		Where("kind IN ?", kindValues(kind)).
		Where("embedding_status <> ?", string(record.StatusFailed)).
		Where("lower(title) LIKE ? ESCAPE '\\'", "%"+escapeLike(title)+"%")
	if category != "" {
		q = q.Where("category_code = ?", category)
	}
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}

	var entities []RecordEntity
	if err := q.Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("find by title: %w", err)
	}
	return fromEntities(entities)
}

// searchTerms returns the whole lowercased phrase plus up to
// maxTextSearchTokens leading tokens, split on whitespace and commas.
func searchTerms(query string) []string {
	phrase := strings.ToLower(strings.TrimSpace(query))
	if phrase == "" {
		return nil
	}

	terms := []string{phrase}
	tokens := strings.FieldsFunc(phrase, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(tokens) <= 1 {
		return terms
	}
	if len(tokens) > maxTextSearchTokens {
		tokens = tokens[:maxTextSearchTokens]
	}
	for _, tok := range tokens {
		if tok != phrase {
			terms = append(terms, tok)
		}
	}
	return terms
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
