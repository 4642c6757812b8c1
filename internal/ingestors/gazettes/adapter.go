// Package gazettes ingests gazette PDFs from a peer archive. The PDF text is
// stored page by page.
package gazettes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
	"github.com/laws-africa/peachjam/internal/ingestors/settings"
	"github.com/laws-africa/peachjam/internal/ingestors/upstream"
	"github.com/laws-africa/peachjam/internal/logger"
)

// Name is the registered adapter name.
const Name = "gazettes"

// listPath is the gazette collection, relative to api_url.
const listPath = "gazettes/"

// Ensure Adapter implements the interface.
var _ driven.IngestionAdapter = (*Adapter)(nil)

type sourceFile struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
}

type gazette struct {
	ExpressionFrbrURI string      `json:"expression_frbr_uri"`
	Title             string      `json:"title"`
	Date              string      `json:"date"`
	Language          string      `json:"language"`
	UpdatedAt         string      `json:"updated_at"`
	Published         *bool       `json:"published"`
	SourceFile        *sourceFile `json:"source_file"`
}

// Adapter mirrors gazettes.
type Adapter struct {
	ing      domain.Ingestor
	settings settings.Settings
	client   *upstream.Client
	attach   *upstream.Attacher
	deps     driven.AdapterDeps
}

// New builds a gazettes adapter.
func New(ing domain.Ingestor, raw map[string]string, deps driven.AdapterDeps) (driven.IngestionAdapter, error) {
	s := settings.Parse(raw)
	client, err := upstream.NewClient(upstream.Config{BaseURL: s.APIURL, Token: s.Token})
	if err != nil {
		return nil, fmt.Errorf("gazettes: %w", err)
	}
	return newAdapter(ing, s, client, deps), nil
}

func newAdapter(ing domain.Ingestor, s settings.Settings, client *upstream.Client, deps driven.AdapterDeps) *Adapter {
	return &Adapter{ing: ing, settings: s, client: client, attach: upstream.NewAttacher(client, deps), deps: deps}
}

// CheckForUpdates lists every gazette and returns those changed since lastRefreshed.
func (a *Adapter) CheckForUpdates(ctx context.Context, lastRefreshed *time.Time) ([]string, []string, error) {
	present := make(map[string]bool)
	var updated []string
	err := a.client.Each(ctx, listPath, nil, func(raw json.RawMessage) error {
		var g gazette
		if err := json.Unmarshal(raw, &g); err != nil {
			return fmt.Errorf("decoding gazette: %w", err)
		}
		if !a.settings.IsResponsibleFor(g.ExpressionFrbrURI) {
			return nil
		}
		present[g.ExpressionFrbrURI] = true
		if upstream.Newer(g.UpdatedAt, lastRefreshed) {
			updated = append(updated, g.ExpressionFrbrURI)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("gazettes: listing: %w", err)
	}
	deleted, err := upstream.Missing(ctx, a.deps.Documents, a.owns, present)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("gazettes: %s: %d updated, %d deleted", a.ing.Name, len(updated), len(deleted))
	return updated, deleted, nil
}

// owns limits deletion to gazettes under the configured places.
func (a *Adapter) owns(uri string) bool {
	f, err := domain.ParseFrbrURI(uri)
	return err == nil && f.Doctype == domain.KindGazette.DefaultDoctype() && a.settings.IsResponsibleFor(uri)
}

// UpdateDocument downloads the gazette PDF and stores its pages.
func (a *Adapter) UpdateDocument(ctx context.Context, id string) error {
	g, err := a.fetch(ctx, id)
	if err != nil {
		return err
	}
	if g.SourceFile == nil || g.SourceFile.URL == "" {
		logger.Debug("gazettes: skipping %s without a file", id)
		return nil
	}

	f, err := domain.ParseFrbrURI(g.ExpressionFrbrURI)
	if err != nil {
		return fmt.Errorf("gazettes: %w", err)
	}
	date, err := upstream.ParseDate(g.Date)
	if err != nil {
		return fmt.Errorf("gazettes: %w", err)
	}
	if date.IsZero() {
		date, _ = upstream.ParseDate(f.ExpressionDate)
	}
	doc := &domain.Document{
		Kind:      domain.KindGazette,
		Language:  g.Language,
		Date:      date,
		Title:     g.Title,
		Published: g.Published == nil || *g.Published,
		Topics:    append([]string(nil), a.settings.AddTopics...),
	}
	if doc.Language == "" {
		doc.Language = f.Language
	}
	doc.SetFrbrParts(f)
	if err := doc.DeriveIdentifiers(); err != nil {
		return fmt.Errorf("gazettes: %w", err)
	}
	if doc.ExpressionFrbrURI != g.ExpressionFrbrURI {
		return fmt.Errorf("%w: upstream %s, derived %s", domain.ErrIdentifierMismatch, g.ExpressionFrbrURI, doc.ExpressionFrbrURI)
	}

	dir := strings.TrimPrefix(doc.ExpressionFrbrURI, "/")
	sf, err := a.attach.SourceFile(ctx, g.SourceFile.URL, dir, g.SourceFile.Filename, func(localPath, mimeType string) error {
		text, err := a.extract(ctx, localPath, mimeType)
		doc.ContentText = text
		return err
	})
	if err != nil {
		return fmt.Errorf("gazettes: %s: %w", id, err)
	}
	doc.SourceFile = sf

	if _, err := a.deps.Documents.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("gazettes: saving %s: %w", id, err)
	}
	logger.Info("gazettes: updated %s", doc.ExpressionFrbrURI)
	return nil
}

// extract runs the file through the normalisers. Text of a PDF is paged.
func (a *Adapter) extract(ctx context.Context, localPath, mimeType string) (string, error) {
	if a.deps.Normalisers == nil {
		return "", nil
	}
	content, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", localPath, err)
	}
	res, err := a.deps.Normalisers.Normalise(ctx, &domain.RawDocument{URI: localPath, MIMEType: mimeType, Content: content})
	if errors.Is(err, domain.ErrUnsupportedType) {
		logger.Warn("gazettes: no text extraction for %s", mimeType)
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

func (a *Adapter) fetch(ctx context.Context, id string) (*gazette, error) {
	var page struct {
		Results []gazette `json:"results"`
	}
	if err := a.client.GetJSON(ctx, listPath, url.Values{"expression_frbr_uri": {id}}, &page); err != nil {
		return nil, fmt.Errorf("gazettes: fetching %s: %w", id, err)
	}
	for i := range page.Results {
		if page.Results[i].ExpressionFrbrURI == id {
			return &page.Results[i], nil
		}
	}
	return nil, fmt.Errorf("gazettes: %s: %w", id, domain.ErrNotFoundUpstream)
}

// DeleteDocument removes the local gazette.
func (a *Adapter) DeleteDocument(ctx context.Context, id string) error {
	return upstream.DeleteByExpressionURI(ctx, a.deps.Documents, id)
}

// HandleWebhook is not supported.
func (a *Adapter) HandleWebhook(context.Context, []byte) error {
	return fmt.Errorf("gazettes: webhooks: %w", domain.ErrNotImplemented)
}

// EditURL returns "".
func (a *Adapter) EditURL(*domain.Document) string { return "" }
