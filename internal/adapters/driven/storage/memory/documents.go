package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	s *Store
}

// SaveDocument stores or updates a document, holding the write lock for the
// whole save so serial allocation is serialised.
func (d *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document, prepare driven.PrepareFunc) (*domain.Document, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}
	s := d.s
	s.mu.Lock()
	defer s.mu.Unlock()

	next := func(courtCode string, year int) (int, error) {
		max := 0
		for _, other := range s.documents {
			j := other.Judgment
			if j == nil || !strings.EqualFold(j.Court.Code, courtCode) || other.Date.Year() != year {
				continue
			}
			if j.SerialNumber > max {
				max = j.SerialNumber
			}
		}
		return max + 1, nil
	}
	if prepare != nil {
		if err := prepare(doc, next); err != nil {
			return nil, err
		}
	}
	if doc.WorkFrbrURI == "" || doc.ExpressionFrbrURI == "" {
		return nil, fmt.Errorf("%w: document has no identifiers", domain.ErrInvalidIdentifier)
	}

	var prev *domain.Document
	if doc.ID != 0 {
		if p, ok := s.documents[doc.ID]; ok {
			prev = &p
		}
	} else if p := s.findByExpression(doc.ExpressionFrbrURI); p != nil {
		prev = p
	}

	work, err := s.ensureWork(doc.WorkFrbrURI, doc.Title, false)
	if err != nil {
		return nil, err
	}
	doc.WorkID = work.ID

	now := time.Now().UTC()
	doc.UpdatedAt = now
	if prev != nil {
		doc.ID = prev.ID
		doc.CreatedAt = prev.CreatedAt
	} else {
		s.nextDocumentID++
		doc.ID = s.nextDocumentID
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = now
		}
	}
	s.documents[doc.ID] = *doc

	doc.MostRecent = s.recomputeMostRecent(doc.WorkID, doc.Language) == doc.ID
	if prev != nil && (prev.WorkID != doc.WorkID || prev.Language != doc.Language) {
		s.recomputeMostRecent(prev.WorkID, prev.Language)
	}
	return prev, nil
}

// GetDocument retrieves a document by ID.
func (d *DocumentStore) GetDocument(_ context.Context, id int64) (*domain.Document, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	doc, ok := d.s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// GetDocumentByExpressionURI retrieves a document by its expression FRBR URI.
func (d *DocumentStore) GetDocumentByExpressionURI(_ context.Context, uri string) (*domain.Document, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	if doc := d.s.findByExpression(uri); doc != nil {
		return doc, nil
	}
	return nil, domain.ErrNotFound
}

// DeleteDocument removes a document and its dependents.
func (d *DocumentStore) DeleteDocument(_ context.Context, id int64) (*domain.Document, error) {
	s := d.s
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	delete(s.documents, id)
	delete(s.citations, id)
	delete(s.chunks, id)
	delete(s.embeds, id)
	s.recomputeMostRecent(doc.WorkID, doc.Language)
	return &doc, nil
}

// ListDocuments returns documents matching the filter, ordered by ID.
func (d *DocumentStore) ListDocuments(_ context.Context, filter driven.DocumentFilter) ([]domain.Document, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()

	works := make(map[int64]bool, len(filter.WorkIDs))
	for _, id := range filter.WorkIDs {
		works[id] = true
	}
	var out []domain.Document
	for _, doc := range d.s.sortedDocuments() {
		switch {
		case doc.ID <= filter.AfterID:
			continue
		case filter.MostRecentOnly && !doc.MostRecent:
			continue
		case len(works) > 0 && !works[doc.WorkID]:
			continue
		}
		out = append(out, doc)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// ListExpressionURIs returns the expression URIs of all local documents.
func (d *DocumentStore) ListExpressionURIs(_ context.Context) ([]string, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	out := make([]string, 0, len(d.s.documents))
	for _, doc := range d.s.sortedDocuments() {
		out = append(out, doc.ExpressionFrbrURI)
	}
	return out, nil
}

// SiblingDocuments returns documents of the same Work and language.
func (d *DocumentStore) SiblingDocuments(_ context.Context, workID int64, language string) ([]domain.Document, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	return d.s.siblings(workID, language), nil
}

// GetWork retrieves a work by ID.
func (d *DocumentStore) GetWork(_ context.Context, id int64) (*domain.Work, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	w, ok := d.s.works[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

// GetWorkByURI retrieves a work by its FRBR URI.
func (d *DocumentStore) GetWorkByURI(ctx context.Context, uri string) (*domain.Work, error) {
	d.s.mu.RLock()
	id, ok := d.s.workByURI[uri]
	d.s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return d.GetWork(ctx, id)
}

// EnsureWork returns the work for uri, creating a stub when missing.
func (d *DocumentStore) EnsureWork(_ context.Context, uri, title string) (*domain.Work, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	w, err := d.s.ensureWork(uri, title, true)
	if err != nil {
		return nil, err
	}
	cp := *w
	return &cp, nil
}

// ListWorks returns all works ordered by ID.
func (d *DocumentStore) ListWorks(_ context.Context) ([]domain.Work, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	out := make([]domain.Work, 0, len(d.s.works))
	for _, w := range d.s.works {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateWorkLanguages recomputes Work.Languages from its documents.
func (d *DocumentStore) UpdateWorkLanguages(_ context.Context, workID int64) ([]string, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	w, ok := d.s.works[workID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	var langs []string
	for _, doc := range d.s.documents {
		if doc.WorkID == workID {
			langs = append(langs, doc.Language)
		}
	}
	w.Languages = domain.SortedLanguages(langs)
	return w.Languages, nil
}

// ReplaceRelationships replaces the relationships whose subject is subjectURI.
func (d *DocumentStore) ReplaceRelationships(_ context.Context, subjectURI string, rels []domain.Relationship) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	kept := d.s.rels[:0]
	for _, r := range d.s.rels {
		if r.SubjectWorkURI != subjectURI {
			kept = append(kept, r)
		}
	}
	d.s.rels = append(kept, rels...)
	return nil
}

// ListRelationships returns relationships where the work is subject or object.
func (d *DocumentStore) ListRelationships(_ context.Context, workURI string) ([]domain.Relationship, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	var out []domain.Relationship
	for _, r := range d.s.rels {
		if r.SubjectWorkURI == workURI || r.ObjectWorkURI == workURI {
			out = append(out, r)
		}
	}
	return out, nil
}

// SaveRatification stores a ratification, replacing its country list.
func (d *DocumentStore) SaveRatification(_ context.Context, r *domain.Ratification) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now().UTC()
	}
	d.s.ratifs[r.WorkURI] = *r
	return nil
}

// GetRatification retrieves a ratification by work URI.
func (d *DocumentStore) GetRatification(_ context.Context, workURI string) (*domain.Ratification, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	r, ok := d.s.ratifs[workURI]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

// SaveTopics upserts taxonomy topics.
func (d *DocumentStore) SaveTopics(_ context.Context, topics []domain.Topic) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	for _, t := range topics {
		d.s.topics[t.Slug] = t
	}
	return nil
}

// The helpers below expect the caller to hold the lock.

func (s *Store) findByExpression(uri string) *domain.Document {
	for _, doc := range s.documents {
		if doc.ExpressionFrbrURI == uri {
			return &doc
		}
	}
	return nil
}

func (s *Store) sortedDocuments() []domain.Document {
	out := make([]domain.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) siblings(workID int64, language string) []domain.Document {
	var out []domain.Document
	for _, doc := range s.sortedDocuments() {
		if doc.WorkID == workID && doc.Language == language {
			out = append(out, doc)
		}
	}
	return out
}

func (s *Store) recomputeMostRecent(workID int64, language string) int64 {
	siblings := s.siblings(workID, language)
	best := domain.MostRecentID(siblings)
	for _, doc := range siblings {
		doc.MostRecent = doc.ID == best
		s.documents[doc.ID] = doc
	}
	return best
}

func (s *Store) ensureWork(uri, title string, stub bool) (*domain.Work, error) {
	if id, ok := s.workByURI[uri]; ok {
		w := s.works[id]
		if w.Stub && !stub {
			w.Stub, w.Title = false, title
			w.UpdatedAt = time.Now().UTC()
		}
		return w, nil
	}
	if _, err := domain.ParseFrbrURI(uri); err != nil {
		return nil, err
	}
	s.nextWorkID++
	now := time.Now().UTC()
	w := &domain.Work{ID: s.nextWorkID, FrbrURI: uri, Title: title, Stub: stub, CreatedAt: now, UpdatedAt: now}
	s.works[w.ID] = w
	s.workByURI[uri] = w.ID
	return w, nil
}
