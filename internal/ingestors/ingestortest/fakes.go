// Package ingestortest provides in-memory dependencies for adapter tests.
package ingestortest

import (
	"context"
	"sort"
	"sync"

	"github.com/spf13/afero"

	"github.com/laws-africa/peachjam/internal/adapters/driven/blob"
	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
)

// Documents is an in-memory driven.DocumentWriter keyed by expression URI.
type Documents struct {
	mu            sync.Mutex
	nextID        int64
	Docs          map[string]*domain.Document
	Works         map[string]*domain.Work
	Relationships map[string][]domain.Relationship
	Ratifications map[string]*domain.Ratification
	Topics        map[string]domain.Topic
	Deleted       []int64
}

// NewDocuments creates an empty document writer.
func NewDocuments() *Documents {
	return &Documents{
		Docs:          make(map[string]*domain.Document),
		Works:         make(map[string]*domain.Work),
		Relationships: make(map[string][]domain.Relationship),
		Ratifications: make(map[string]*domain.Ratification),
		Topics:        make(map[string]domain.Topic),
	}
}

// Add stores a document as if it had been imported earlier.
func (d *Documents) Add(doc *domain.Document) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	doc.ID = d.nextID
	d.Docs[doc.ExpressionFrbrURI] = doc
}

// SaveDocument derives identifiers and upserts by expression URI.
func (d *Documents) SaveDocument(_ context.Context, doc *domain.Document) (*domain.Document, error) {
	if doc.Judgment != nil {
		serial := doc.Judgment.SerialNumber
		if err := domain.AssignJudgmentFrbrURI(doc, func() (int, error) { return serial + 1, nil }); err != nil {
			return nil, err
		}
	}
	if err := doc.DeriveIdentifiers(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if prev, ok := d.Docs[doc.ExpressionFrbrURI]; ok {
		doc.ID = prev.ID
	} else {
		d.nextID++
		doc.ID = d.nextID
	}
	d.Docs[doc.ExpressionFrbrURI] = doc
	if _, ok := d.Works[doc.WorkFrbrURI]; !ok {
		d.Works[doc.WorkFrbrURI] = &domain.Work{FrbrURI: doc.WorkFrbrURI, Title: doc.Title}
	}
	return doc, nil
}

// DeleteDocument removes a document by id.
func (d *Documents) DeleteDocument(_ context.Context, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for uri, doc := range d.Docs {
		if doc.ID == id {
			delete(d.Docs, uri)
			d.Deleted = append(d.Deleted, id)
			return nil
		}
	}
	return domain.ErrNotFound
}

// GetDocumentByExpressionURI returns a stored document or domain.ErrNotFound.
func (d *Documents) GetDocumentByExpressionURI(_ context.Context, uri string) (*domain.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, ok := d.Docs[uri]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

// ListExpressionURIs returns every stored expression URI, sorted.
func (d *Documents) ListExpressionURIs(context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.Docs))
	for uri := range d.Docs {
		out = append(out, uri)
	}
	sort.Strings(out)
	return out, nil
}

// EnsureWork returns a work, creating a stub when missing.
func (d *Documents) EnsureWork(_ context.Context, uri, title string) (*domain.Work, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if w, ok := d.Works[uri]; ok {
		return w, nil
	}
	w := &domain.Work{FrbrURI: uri, Title: title, Stub: true}
	d.Works[uri] = w
	return w, nil
}

// ReplaceRelationships replaces the relationships of a subject.
func (d *Documents) ReplaceRelationships(_ context.Context, subjectURI string, rels []domain.Relationship) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Relationships[subjectURI] = rels
	return nil
}

// SaveRatification stores a ratification by work URI.
func (d *Documents) SaveRatification(_ context.Context, r *domain.Ratification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Ratifications[r.WorkURI] = r
	return nil
}

// SaveTopics upserts topics by slug.
func (d *Documents) SaveTopics(_ context.Context, topics []domain.Topic) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range topics {
		d.Topics[t.Slug] = t
	}
	return nil
}

// Task is an enqueued task.
type Task struct {
	Name string
	Args any
	Opts domain.TaskOptions
}

// Tasks records enqueued tasks.
type Tasks struct {
	mu    sync.Mutex
	Queue []Task
}

// Enqueue records the task.
func (t *Tasks) Enqueue(_ context.Context, name string, args any, opts domain.TaskOptions) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Queue = append(t.Queue, Task{Name: name, Args: args, Opts: opts})
	return name, nil
}

// Snapshot returns a copy of the recorded tasks.
func (t *Tasks) Snapshot() []Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Task(nil), t.Queue...)
}

// Deps returns adapter dependencies backed by in-memory stores. The blob
// store serves the "file" prefix from memory.
func Deps(docs *Documents, tasks *Tasks) driven.AdapterDeps {
	return driven.AdapterDeps{
		Documents:  docs,
		Blobs:      blob.NewStore(map[string]blob.Backend{"file": blob.NewFileBackendFs(afero.NewMemMapFs())}),
		Tasks:      tasks,
		BlobPrefix: "file",
	}
}
