package indigo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/logger"
)

// UpdateDocument fetches one expression and upserts it with its attachments,
// relationships and topics. Stubs and stranded expressions are skipped.
func (a *Adapter) UpdateDocument(ctx context.Context, id string) error {
	if !a.settings.IsResponsibleFor(id) {
		logger.Debug("indigo: %s is not handled by %s", id, a.ing.Name)
		return nil
	}

	var rec expression
	if err := a.client.GetJSON(ctx, id+".json", nil, &rec); err != nil {
		return fmt.Errorf("indigo: fetching %s: %w", id, err)
	}
	if rec.isStub() {
		logger.Debug("indigo: skipping stub %s", id)
		return nil
	}
	if rec.stranded() {
		logger.Warn("indigo: %s is stranded: %s is not a point in time of %s", id, rec.ExpressionDate, rec.FrbrURI)
		return nil
	}

	doc, err := a.buildDocument(&rec)
	if err != nil {
		return err
	}

	existing, err := a.deps.Documents.GetDocumentByExpressionURI(ctx, doc.ExpressionFrbrURI)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("indigo: loading %s: %w", doc.ExpressionFrbrURI, err)
	}
	var existingTopics []string
	if existing != nil {
		doc.ID = existing.ID
		existingTopics = existing.Topics
	}

	if doc.ContentHTML, err = a.client.GetText(ctx, id+".html"); err != nil {
		return fmt.Errorf("indigo: fetching content of %s: %w", id, err)
	}
	var toc tocResponse
	if err := optional(a.client.GetJSON(ctx, id+"/toc.json", nil, &toc)); err != nil {
		return fmt.Errorf("indigo: fetching toc of %s: %w", id, err)
	}
	doc.TOC = toc.TOC

	dir := strings.TrimPrefix(doc.ExpressionFrbrURI, "/")
	if err := a.attachSource(ctx, &rec, doc, dir); err != nil {
		return err
	}
	if err := a.attachImages(ctx, id, doc, dir); err != nil {
		return err
	}

	mirrored := a.settings.Topics(rec.TaxonomyTopics)
	if len(mirrored) > 0 {
		topics := make([]domain.Topic, 0, len(mirrored))
		for _, slug := range mirrored {
			topics = append(topics, domain.Topic{Slug: slug, Name: topicName(slug, a.settings.TaxonomyTopicRoot)})
		}
		if err := a.deps.Documents.SaveTopics(ctx, topics); err != nil {
			return fmt.Errorf("indigo: saving topics: %w", err)
		}
	}
	doc.Topics = a.settings.MergeTopics(existingTopics, mirrored)

	if _, err := a.deps.Documents.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("indigo: saving %s: %w", id, err)
	}

	for _, w := range rec.relatedWorks(a.settings.SkipCommencements) {
		if _, err := a.deps.Documents.EnsureWork(ctx, w.FrbrURI, w.Title); err != nil {
			return fmt.Errorf("indigo: creating work %s: %w", w.FrbrURI, err)
		}
	}
	if err := a.deps.Documents.ReplaceRelationships(ctx, rec.FrbrURI, rec.relationships(a.settings.SkipCommencements)); err != nil {
		return fmt.Errorf("indigo: saving relationships of %s: %w", rec.FrbrURI, err)
	}

	logger.Info("indigo: updated %s", doc.ExpressionFrbrURI)
	return nil
}

// buildDocument maps the record onto a document and checks that the derived
// identifier matches the upstream one.
func (a *Adapter) buildDocument(rec *expression) (*domain.Document, error) {
	frbr, err := domain.ParseFrbrURI(rec.FrbrURI)
	if err != nil {
		return nil, fmt.Errorf("indigo: %w", err)
	}
	date, err := parseDate(rec.ExpressionDate)
	if err != nil {
		return nil, err
	}

	doc := &domain.Document{
		Kind:      domain.KindLegislation,
		Language:  rec.Language,
		Date:      date,
		Title:     rec.Title,
		Citation:  rec.NumberedTitle,
		Nature:    rec.Nature,
		Published: true,
		Legislation: &domain.LegislationDetails{
			Repealed:     rec.Repeal != nil,
			Commenced:    rec.Commenced,
			PointsInTime: rec.pointInTimeDates(),
		},
	}
	if rec.ParentWork != nil {
		doc.Legislation.ParentWork = rec.ParentWork.FrbrURI
	}
	for _, n := range rec.AlternativeNames {
		doc.AlternativeNames = append(doc.AlternativeNames, n.Title)
	}
	doc.SetFrbrParts(frbr)

	if err := doc.DeriveIdentifiers(); err != nil {
		return nil, fmt.Errorf("indigo: %w", err)
	}
	if doc.ExpressionFrbrURI != rec.ExpressionFrbrURI {
		return nil, fmt.Errorf("%w: upstream %s, derived %s", domain.ErrIdentifierMismatch, rec.ExpressionFrbrURI, doc.ExpressionFrbrURI)
	}
	return doc, nil
}

// attachSource stores the DOCX or PDF rendition, falling back to the
// publication document.
func (a *Adapter) attachSource(ctx context.Context, rec *expression, doc *domain.Document, dir string) error {
	ref, filename := "", ""
	if l, ok := rec.sourceLink(); ok {
		ref = l.Href
	} else if rec.PublicationDocument != nil {
		ref, filename = rec.PublicationDocument.URL, rec.PublicationDocument.Filename
	}
	if ref == "" {
		return nil
	}
	sf, err := a.attach.SourceFile(ctx, ref, dir, filename, nil)
	if err != nil {
		return fmt.Errorf("indigo: downloading source of %s: %w", rec.ExpressionFrbrURI, err)
	}
	doc.SourceFile = sf
	return nil
}

// attachImages replaces the document's images. Repeated filenames are skipped.
func (a *Adapter) attachImages(ctx context.Context, id string, doc *domain.Document, dir string) error {
	seen := make(map[string]bool)
	doc.Images = nil
	err := a.client.Each(ctx, id+"/media.json", nil, func(raw json.RawMessage) error {
		var m mediaItem
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("decoding media: %w", err)
		}
		if !strings.HasPrefix(m.MimeType, "image/") || m.Filename == "" || seen[m.Filename] {
			return nil
		}
		seen[m.Filename] = true
		img, err := a.attach.Image(ctx, m.URL, dir, m.Filename)
		if err != nil {
			return err
		}
		doc.Images = append(doc.Images, img)
		return nil
	})
	if err := optional(err); err != nil {
		return fmt.Errorf("indigo: downloading images of %s: %w", id, err)
	}
	return nil
}

// topicName turns "subject-areas-land-tenure" under "subject-areas" into "Land tenure".
func topicName(slug, root string) string {
	name := slug
	if root != "" {
		if rest, ok := strings.CutPrefix(slug, root+"-"); ok {
			name = rest
		}
	}
	name = strings.ReplaceAll(name, "-", " ")
	if name == "" {
		return slug
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
