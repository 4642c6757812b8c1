package bleve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.SearchIndex = (*Index)(nil)

const (
	// fingerprintKey stores the mapping fingerprint inside each index.
	fingerprintKey = "peachjam:mapping"

	// batchOps is the number of operations per bleve batch.
	batchOps = 1000

	// childPageSize is the page size used to find the children of a document.
	childPageSize = 1000
)

// Index manages a set of named bleve indexes.
type Index struct {
	mu      sync.RWMutex
	dir     string
	indexes map[string]bleve.Index
}

// New creates an index set persisted under dir, one sub-directory per index.
func New(dir string) (*Index, error) {
	if dir == "" {
		return nil, errors.New("bleve: dir cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("bleve: creating %s: %w", dir, err)
	}
	return &Index{dir: dir, indexes: make(map[string]bleve.Index)}, nil
}

// NewMemOnly creates an index set held in memory, for tests and one-off runs.
func NewMemOnly() *Index {
	return &Index{indexes: make(map[string]bleve.Index)}
}

// EnsureIndex opens or creates the named index.
func (x *Index) EnsureIndex(_ context.Context, name, analyzer string) error {
	m, err := buildMapping(analyzer)
	if err != nil {
		return err
	}
	want, err := fingerprint(m)
	if err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if idx, ok := x.indexes[name]; ok {
		return checkFingerprint(idx, name, want)
	}

	var idx bleve.Index
	switch {
	case x.dir == "":
		idx, err = bleve.NewMemOnly(m)
	default:
		path := filepath.Join(x.dir, name+".bleve")
		idx, err = bleve.Open(path)
		if err == nil {
			if err := checkFingerprint(idx, name, want); err != nil {
				_ = idx.Close()
				return err
			}
			break
		}
		if !errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			return fmt.Errorf("bleve: opening %s: %w", name, err)
		}
		idx, err = bleve.New(path, m)
	}
	if err != nil {
		return fmt.Errorf("bleve: creating %s: %w", name, err)
	}
	if err := idx.SetInternal([]byte(fingerprintKey), []byte(want)); err != nil {
		_ = idx.Close()
		return fmt.Errorf("bleve: storing mapping of %s: %w", name, err)
	}
	idx.SetName(name)
	x.indexes[name] = idx
	return nil
}

func checkFingerprint(idx bleve.Index, name, want string) error {
	got, err := idx.GetInternal([]byte(fingerprintKey))
	if err != nil {
		return fmt.Errorf("bleve: reading mapping of %s: %w", name, err)
	}
	if string(got) != want {
		return fmt.Errorf("%w: index %s", domain.ErrSchemaMismatch, name)
	}
	idx.SetName(name)
	return nil
}

// get returns an open index.
func (x *Index) get(name string) (bleve.Index, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	idx, ok := x.indexes[name]
	if !ok {
		return nil, fmt.Errorf("bleve: index %s: %w", name, domain.ErrNotFound)
	}
	return idx, nil
}

// IndexDocuments replaces documents and their children.
func (x *Index) IndexDocuments(ctx context.Context, name string, docs []driven.IndexDocument) error {
	idx, err := x.get(name)
	if err != nil {
		return err
	}

	b := newBatcher(idx)
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := x.deleteChildren(ctx, idx, b, doc.ID); err != nil {
			return err
		}
		if err := b.index(doc.ID, parentFields(doc)); err != nil {
			return err
		}
		for _, p := range doc.Pages {
			child := map[string]interface{}{
				fieldDocKind:  kindPage,
				fieldParentID: doc.ID,
				"pages":       map[string]interface{}{"page_num": p.PageNum, "body": p.Body},
			}
			if err := b.index(pageID(doc.ID, p.PageNum), child); err != nil {
				return err
			}
		}
		for _, p := range doc.Provisions {
			child := map[string]interface{}{
				fieldDocKind:  kindProvision,
				fieldParentID: doc.ID,
				"provisions": map[string]interface{}{
					"id":            p.ID,
					"type":          p.Type,
					"title":         p.Title,
					"body":          p.Body,
					"parent_ids":    p.ParentIDs,
					"parent_titles": p.ParentTitles,
				},
			}
			if err := b.index(provisionID(doc.ID, p.ID), child); err != nil {
				return err
			}
		}
	}
	return b.flush()
}

func pageID(parent string, n int) string {
	return parent + "#page-" + strconv.Itoa(n)
}

func provisionID(parent, id string) string {
	return parent + "#prov-" + id
}

// parentFields builds the stored form of a document.
func parentFields(doc driven.IndexDocument) map[string]interface{} {
	out := make(map[string]interface{}, len(doc.Fields)+2)
	for k, v := range doc.Fields {
		if t, ok := v.(time.Time); ok && t.IsZero() {
			continue
		}
		out[k] = v
	}
	out[fieldDocKind] = kindDocument
	if len(doc.Suggest) > 0 {
		out[fieldSuggest] = doc.Suggest
	}
	return out
}

// DeleteDocument removes a document and its children.
func (x *Index) DeleteDocument(ctx context.Context, name, id string) error {
	idx, err := x.get(name)
	if err != nil {
		return err
	}
	b := newBatcher(idx)
	if err := x.deleteChildren(ctx, idx, b, id); err != nil {
		return err
	}
	if err := b.delete(id); err != nil {
		return err
	}
	return b.flush()
}

// deleteChildren queues deletes for every child of a document.
func (x *Index) deleteChildren(ctx context.Context, idx bleve.Index, b *batcher, parent string) error {
	q := bleve.NewTermQuery(parent)
	q.SetField(fieldParentID)
	var ids []string
	for from := 0; ; from += childPageSize {
		req := bleve.NewSearchRequestOptions(q, childPageSize, from, false)
		res, err := idx.SearchInContext(ctx, req)
		if err != nil {
			return fmt.Errorf("bleve: finding children of %s: %w", parent, err)
		}
		for _, hit := range res.Hits {
			ids = append(ids, hit.ID)
		}
		if len(res.Hits) < childPageSize {
			break
		}
	}
	for _, id := range ids {
		if err := b.delete(id); err != nil {
			return err
		}
	}
	return nil
}

// UpdateRanking rewrites the ranking field of stored documents.
func (x *Index) UpdateRanking(ctx context.Context, name string, ranking map[string]float64) error {
	idx, err := x.get(name)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(ranking))
	for id := range ranking {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	b := newBatcher(idx)
	for start := 0; start < len(ids); start += childPageSize {
		end := min(start+childPageSize, len(ids))
		req := bleve.NewSearchRequestOptions(bleve.NewDocIDQuery(ids[start:end]), end-start, 0, false)
		req.Fields = []string{"*"}
		res, err := idx.SearchInContext(ctx, req)
		if err != nil {
			return fmt.Errorf("bleve: loading documents for ranking: %w", err)
		}
		for _, hit := range res.Hits {
			fields := storedParent(hit.Fields)
			fields[fieldRanking] = ranking[hit.ID]
			if err := b.index(hit.ID, fields); err != nil {
				return err
			}
		}
	}
	return b.flush()
}

// storedParent turns stored fields back into an indexable document.
func storedParent(stored map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(stored))
	for k, v := range stored {
		if strings.HasSuffix(k, exactSuffix) {
			continue
		}
		out[k] = v
	}
	return out
}

// Suggest returns completions whose suggest inputs start with prefix,
// highest ranked first.
func (x *Index) Suggest(ctx context.Context, indexes []string, prefix string, size int) ([]string, error) {
	lower := strings.ToLower(strings.TrimSpace(prefix))
	if lower == "" || size <= 0 {
		return []string{}, nil
	}
	alias, _ := x.alias(indexes)
	if alias == nil {
		return []string{}, nil
	}

	pq := bleve.NewPrefixQuery(lower)
	pq.SetField(fieldSuggest)
	req := bleve.NewSearchRequestOptions(pq, size*4, 0, false)
	req.Fields = []string{fieldSuggest}
	req.SortBy([]string{"-" + fieldRanking, "_id"})
	res, err := alias.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve: suggest: %w", err)
	}

	out := []string{}
	seen := make(map[string]bool)
	for _, hit := range res.Hits {
		for _, s := range stringValues(hit.Fields[fieldSuggest]) {
			if !strings.HasPrefix(strings.ToLower(s), lower) || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
			if len(out) == size {
				return out, nil
			}
		}
	}
	return out, nil
}

// alias groups the open indexes among names. Unknown names are returned as missing.
func (x *Index) alias(names []string) (bleve.IndexAlias, []string) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var open []bleve.Index
	var missing []string
	for _, n := range names {
		if idx, ok := x.indexes[n]; ok {
			open = append(open, idx)
		} else {
			missing = append(missing, n)
		}
	}
	if len(open) == 0 {
		return nil, missing
	}
	return bleve.NewIndexAlias(open...), missing
}

// Close closes every index.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	var errs []error
	for name, idx := range x.indexes {
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("bleve: closing %s: %w", name, err))
		}
		delete(x.indexes, name)
	}
	return errors.Join(errs...)
}

// batcher flushes a bleve batch every batchOps operations.
type batcher struct {
	idx   bleve.Index
	batch *bleve.Batch
}

func newBatcher(idx bleve.Index) *batcher {
	return &batcher{idx: idx, batch: idx.NewBatch()}
}

func (b *batcher) index(id string, data interface{}) error {
	if err := b.batch.Index(id, data); err != nil {
		return fmt.Errorf("bleve: indexing %s: %w", id, err)
	}
	return b.maybeFlush()
}

func (b *batcher) delete(id string) error {
	b.batch.Delete(id)
	return b.maybeFlush()
}

func (b *batcher) maybeFlush() error {
	if b.batch.Size() < batchOps {
		return nil
	}
	return b.flush()
}

func (b *batcher) flush() error {
	if b.batch.Size() == 0 {
		return nil
	}
	if err := b.idx.Batch(b.batch); err != nil {
		return fmt.Errorf("bleve: writing batch: %w", err)
	}
	b.batch.Reset()
	return nil
}

func stringValues(v interface{}) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
