package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
	"github.com/laws-africa/peachjam/internal/core/ports/driving"
	"github.com/laws-africa/peachjam/internal/logger"
	"github.com/laws-africa/peachjam/internal/normalisers/html"
)

// Ensure Indexer implements the interface.
var _ driving.IndexService = (*Indexer)(nil)

// MaxIndexChildren caps the pages or provisions indexed per document.
const MaxIndexChildren = 50000

// reindexBatchSize is the number of documents written per bulk request.
const reindexBatchSize = 100

// Indexer writes documents to their language index.
type Indexer struct {
	documents driven.DocumentStore
	index     driven.SearchIndex
	manager   *IndexManager
}

// NewIndexer creates an indexer.
func NewIndexer(documents driven.DocumentStore, index driven.SearchIndex, manager *IndexManager) *Indexer {
	return &Indexer{documents: documents, index: index, manager: manager}
}

// EnsureIndexes creates every language index, failing on mapping mismatch.
func (x *Indexer) EnsureIndexes(ctx context.Context) error {
	return x.manager.EnsureIndexes(ctx)
}

// ReindexDocument writes one document to its language index. Unpublished
// documents are removed instead; a missing document is a no-op.
func (x *Indexer) ReindexDocument(ctx context.Context, documentID int64) error {
	doc, err := x.documents.GetDocument(ctx, documentID)
	if isNotFound(err) {
		logger.Debug("document %d is gone, nothing to index", documentID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading document %d: %w", documentID, err)
	}

	id := strconv.FormatInt(doc.ID, 10)
	target := x.manager.IndexForLanguage(doc.Language)

	// the language may have changed since the last write
	for _, name := range x.manager.AllIndexNames() {
		if name == target && doc.Published {
			continue
		}
		if err := x.index.DeleteDocument(ctx, name, id); err != nil {
			return fmt.Errorf("removing %s from %s: %w", id, name, err)
		}
	}
	// an unpublished save can still move the most-recent flag of its siblings
	return x.indexExpressions(ctx, doc.WorkID, doc.Language)
}

// UnindexDocument removes a deleted document from its language index and
// rewrites its siblings, one of which may have become most recent.
func (x *Indexer) UnindexDocument(ctx context.Context, documentID, workID int64, language string) error {
	err := x.index.DeleteDocument(ctx, x.manager.IndexForLanguage(language), strconv.FormatInt(documentID, 10))
	if err != nil {
		return err
	}
	if workID == 0 {
		return nil
	}
	return x.indexExpressions(ctx, workID, language)
}

// indexExpressions writes every published expression of a work in one
// language, so their most-recent flags stay in step.
func (x *Indexer) indexExpressions(ctx context.Context, workID int64, language string) error {
	siblings, err := x.documents.SiblingDocuments(ctx, workID, language)
	if err != nil {
		return fmt.Errorf("loading expressions of work %d: %w", workID, err)
	}
	if len(siblings) == 0 {
		return nil
	}
	work, err := x.documents.GetWork(ctx, workID)
	if err != nil {
		return fmt.Errorf("loading work %d: %w", workID, err)
	}

	var batch []driven.IndexDocument
	for i := range siblings {
		if !siblings[i].Published {
			continue
		}
		idxDoc, err := BuildIndexDocument(&siblings[i], work)
		if err != nil {
			return err
		}
		batch = append(batch, idxDoc)
	}
	if len(batch) == 0 {
		return nil
	}
	return x.index.IndexDocuments(ctx, x.manager.IndexForLanguage(language), batch)
}

// ReindexAll rewrites every published document in batches.
func (x *Indexer) ReindexAll(ctx context.Context) (int, error) {
	works := make(map[int64]*domain.Work)
	var after int64
	total := 0
	for {
		docs, err := x.documents.ListDocuments(ctx, driven.DocumentFilter{AfterID: after, Limit: reindexBatchSize})
		if err != nil {
			return total, fmt.Errorf("listing documents: %w", err)
		}
		if len(docs) == 0 {
			break
		}
		after = docs[len(docs)-1].ID

		batches := make(map[string][]driven.IndexDocument)
		for i := range docs {
			doc := &docs[i]
			if !doc.Published {
				continue
			}
			work, ok := works[doc.WorkID]
			if !ok {
				if work, err = x.documents.GetWork(ctx, doc.WorkID); err != nil {
					return total, fmt.Errorf("loading work of %d: %w", doc.ID, err)
				}
				works[doc.WorkID] = work
			}
			idxDoc, err := BuildIndexDocument(doc, work)
			if err != nil {
				logger.Warn("skipping %s: %v", doc.ExpressionFrbrURI, err)
				continue
			}
			name := x.manager.IndexForLanguage(doc.Language)
			batches[name] = append(batches[name], idxDoc)
		}
		for name, batch := range batches {
			if err := x.index.IndexDocuments(ctx, name, batch); err != nil {
				return total, fmt.Errorf("indexing into %s: %w", name, err)
			}
			total += len(batch)
		}
		logger.Debug("indexed up to document %d (%d so far)", after, total)
	}
	logger.Info("reindexed %d documents", total)
	return total, nil
}

// BuildIndexDocument flattens a document into its index form.
func BuildIndexDocument(doc *domain.Document, work *domain.Work) (driven.IndexDocument, error) {
	fields := map[string]any{
		"id":                  doc.ID,
		"kind":                string(doc.Kind),
		"doc_type":            doc.Doctype,
		"title":               doc.Title,
		"title_expanded":      titleExpanded(doc),
		"citation":            doc.Citation,
		"alternative_names":   doc.AlternativeNames,
		"content":             doc.ContentText,
		"expression_frbr_uri": doc.ExpressionFrbrURI,
		"work_frbr_uri":       doc.WorkFrbrURI,
		"language":            doc.Language,
		"jurisdiction":        doc.Jurisdiction,
		"locality":            doc.Locality,
		"nature":              doc.Nature,
		"matter_type":         doc.MatterType,
		"authors":             doc.Authors,
		"labels":              doc.Labels,
		"topics":              doc.Topics,
		"blurb":               doc.Blurb,
		"year":                doc.Year(),
		"date":                doc.Date,
		"created_at":          doc.CreatedAt,
		"is_most_recent":      doc.MostRecent,
	}
	if work != nil {
		fields["ranking"] = work.Pagerank
		fields["authority_score"] = work.AuthorityScore
	}
	if j := doc.Judgment; j != nil {
		fields["court"] = j.Court.Name
		fields["registry"] = j.Registry
		fields["judges"] = j.Judges
		fields["judges_text"] = strings.Join(j.Judges, " ")
		fields["attorneys"] = j.Attorneys
		fields["outcome"] = j.Outcomes
		fields["case_number"] = j.CaseNumbers
		fields["case_name"] = j.CaseName
		fields["case_action"] = j.CaseAction
		fields["flynote"] = j.Flynote
		fields["case_summary"] = j.CaseSummary
		fields["mnc"] = j.MNC
	}
	for k, v := range fields {
		if s, ok := v.(string); ok && s == "" {
			delete(fields, k)
		}
	}

	out := driven.IndexDocument{
		ID:     strconv.FormatInt(doc.ID, 10),
		Fields: fields,
	}
	for _, s := range []string{doc.Title, doc.Citation} {
		if s = strings.TrimSpace(s); s != "" {
			out.Suggest = append(out.Suggest, s)
		}
	}

	switch {
	case doc.HasProvisions():
		provisions, err := indexProvisions(doc)
		if err != nil {
			return out, err
		}
		out.Provisions = provisions
	case doc.IsPaged():
		for i, page := range doc.Pages() {
			if len(out.Pages) == MaxIndexChildren {
				break
			}
			if page = strings.TrimSpace(page); page != "" {
				out.Pages = append(out.Pages, driven.IndexPage{PageNum: i + 1, Body: page})
			}
		}
	}
	return out, nil
}

func indexProvisions(doc *domain.Document) ([]driven.IndexProvision, error) {
	flat := domain.FlattenTOC(doc.TOC)
	ids := make([]string, 0, len(flat))
	for _, e := range flat {
		ids = append(ids, e.ID)
	}
	bodies, err := html.ProvisionTexts(doc.ContentHTML, ids)
	if err != nil {
		return nil, fmt.Errorf("extracting provisions of %d: %w", doc.ID, err)
	}
	var out []driven.IndexProvision
	for _, e := range flat {
		body, ok := bodies[e.ID]
		if !ok {
			continue
		}
		if len(out) == MaxIndexChildren {
			break
		}
		out = append(out, driven.IndexProvision{
			ID:           e.ID,
			Type:         e.Type,
			Title:        e.Title,
			Body:         body,
			ParentIDs:    e.ParentIDs,
			ParentTitles: e.ParentTitles,
		})
	}
	return out, nil
}

// titleExpanded adds the citation and alternative names to the title.
func titleExpanded(doc *domain.Document) string {
	parts := []string{doc.Title}
	if doc.Citation != "" && doc.Citation != doc.Title {
		parts = append(parts, doc.Citation)
	}
	parts = append(parts, doc.AlternativeNames...)
	return strings.Join(parts, " ")
}
