// Package judgments mirrors judgments published by a peer instance.
package judgments

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
const Name = "judgments"

const listPath = "judgments/"

// Ensure Adapter implements the interface.
var _ driven.IngestionAdapter = (*Adapter)(nil)

type court struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type judgment struct {
	ExpressionFrbrURI string `json:"expression_frbr_uri"`
	Title             string `json:"title"`
	Date              string `json:"date"`
	Language          string `json:"language"`
	UpdatedAt         string `json:"updated_at"`
	Published         *bool  `json:"published"`

	Court        court    `json:"court"`
	Jurisdiction string   `json:"jurisdiction"`
	Registry     string   `json:"registry"`
	Judges       []string `json:"judges"`
	Attorneys    []string `json:"attorneys"`
	Outcomes     []string `json:"outcomes"`
	CaseNumbers  []string `json:"case_numbers"`
	CaseName     string   `json:"case_name"`
	SerialNumber int      `json:"serial_number"`
	MNC          string   `json:"mnc"`

	Blurb       string `json:"blurb"`
	Flynote     string `json:"flynote"`
	CaseSummary string `json:"case_summary"`
	Issues      string `json:"issues"`
	Held        string `json:"held"`
	Order       string `json:"order"`

	ContentHTML string `json:"content_html"`
	SourceFile  *struct {
		URL      string `json:"url"`
		Filename string `json:"filename"`
	} `json:"source_file"`
}

// Adapter mirrors judgments of the configured places and courts. Courts are
// filtered with the actor include and exclude lists.
type Adapter struct {
	ing      domain.Ingestor
	settings settings.Settings
	client   *upstream.Client
	attach   *upstream.Attacher
	deps     driven.AdapterDeps
}

// New builds a judgments adapter.
func New(ing domain.Ingestor, raw map[string]string, deps driven.AdapterDeps) (driven.IngestionAdapter, error) {
	s := settings.Parse(raw)
	client, err := upstream.NewClient(upstream.Config{BaseURL: s.APIURL, Token: s.Token})
	if err != nil {
		return nil, fmt.Errorf("judgments: %w", err)
	}
	return newAdapter(ing, s, client, deps), nil
}

func newAdapter(ing domain.Ingestor, s settings.Settings, client *upstream.Client, deps driven.AdapterDeps) *Adapter {
	return &Adapter{ing: ing, settings: s, client: client, attach: upstream.NewAttacher(client, deps), deps: deps}
}

// CheckForUpdates lists every judgment and returns those changed since lastRefreshed.
func (a *Adapter) CheckForUpdates(ctx context.Context, lastRefreshed *time.Time) ([]string, []string, error) {
	present := make(map[string]bool)
	var updated []string
	err := a.client.Each(ctx, listPath, nil, func(raw json.RawMessage) error {
		var j judgment
		if err := json.Unmarshal(raw, &j); err != nil {
			return fmt.Errorf("decoding judgment: %w", err)
		}
		if !a.owns(j.ExpressionFrbrURI) {
			return nil
		}
		present[j.ExpressionFrbrURI] = true
		if upstream.Newer(j.UpdatedAt, lastRefreshed) {
			updated = append(updated, j.ExpressionFrbrURI)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("judgments: listing: %w", err)
	}
	deleted, err := upstream.Missing(ctx, a.deps.Documents, a.owns, present)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("judgments: %s: %d updated, %d deleted", a.ing.Name, len(updated), len(deleted))
	return updated, deleted, nil
}

func (a *Adapter) owns(uri string) bool {
	f, err := domain.ParseFrbrURI(uri)
	return err == nil && f.Doctype == "judgment" && a.settings.IsResponsibleFor(uri)
}

// UpdateDocument fetches one judgment and upserts it. The upstream serial
// number is kept as an override so the local MNC matches the peer's.
func (a *Adapter) UpdateDocument(ctx context.Context, id string) error {
	j, err := a.fetch(ctx, id)
	if err != nil {
		return err
	}
	doc, err := a.buildDocument(j)
	if err != nil {
		return err
	}

	if j.SourceFile != nil && j.SourceFile.URL != "" {
		dir := strings.TrimPrefix(doc.ExpressionFrbrURI, "/")
		sf, err := a.attach.SourceFile(ctx, j.SourceFile.URL, dir, j.SourceFile.Filename, func(localPath, mimeType string) error {
			if doc.ContentHTML != "" {
				return nil
			}
			return a.extract(ctx, doc, localPath, mimeType)
		})
		if err != nil {
			return fmt.Errorf("judgments: %s: %w", id, err)
		}
		doc.SourceFile = sf
	}

	if _, err := a.deps.Documents.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("judgments: saving %s: %w", id, err)
	}
	logger.Info("judgments: updated %s (%s)", doc.ExpressionFrbrURI, doc.Judgment.MNC)
	return nil
}

func (a *Adapter) buildDocument(j *judgment) (*domain.Document, error) {
	f, err := domain.ParseFrbrURI(j.ExpressionFrbrURI)
	if err != nil {
		return nil, fmt.Errorf("judgments: %w", err)
	}
	date, err := upstream.ParseDate(j.Date)
	if err != nil {
		return nil, fmt.Errorf("judgments: %w", err)
	}
	country := j.Jurisdiction
	if country == "" {
		country = f.Country
	}

	doc := &domain.Document{
		Kind:        domain.KindJudgment,
		Country:     f.Country,
		Locality:    f.Locality,
		Language:    j.Language,
		Date:        date,
		Title:       j.Title,
		Blurb:       j.Blurb,
		ContentHTML: j.ContentHTML,
		Published:   j.Published == nil || *j.Published,
		Topics:      append([]string(nil), a.settings.AddTopics...),
		Judgment: &domain.JudgmentDetails{
			Court:       domain.Court{Code: j.Court.Code, Name: j.Court.Name, Country: strings.ToLower(country)},
			Registry:    j.Registry,
			Judges:      j.Judges,
			Attorneys:   j.Attorneys,
			Outcomes:    j.Outcomes,
			CaseNumbers: j.CaseNumbers,
			CaseName:    j.CaseName,
			Flynote:     j.Flynote,
			CaseSummary: j.CaseSummary,
			Issues:      j.Issues,
			Held:        j.Held,
			Order:       j.Order,
		},
	}
	if doc.Language == "" {
		doc.Language = f.Language
	}
	if j.SerialNumber > 0 {
		serial := j.SerialNumber
		doc.Judgment.SerialNumberOverride = &serial
	}

	noSerial := func() (int, error) {
		return 0, fmt.Errorf("%w: %s has no serial number", domain.ErrInvalidInput, j.ExpressionFrbrURI)
	}
	if err := domain.AssignJudgmentFrbrURI(doc, noSerial); err != nil {
		return nil, fmt.Errorf("judgments: %w", err)
	}
	if err := doc.DeriveIdentifiers(); err != nil {
		return nil, fmt.Errorf("judgments: %w", err)
	}
	if doc.ExpressionFrbrURI != j.ExpressionFrbrURI {
		return nil, fmt.Errorf("%w: upstream %s, derived %s", domain.ErrIdentifierMismatch, j.ExpressionFrbrURI, doc.ExpressionFrbrURI)
	}
	return doc, nil
}

// extract fills the plain text from the source file when there is no HTML.
func (a *Adapter) extract(ctx context.Context, doc *domain.Document, localPath, mimeType string) error {
	if a.deps.Normalisers == nil {
		return nil
	}
	content, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	res, err := a.deps.Normalisers.Normalise(ctx, &domain.RawDocument{URI: localPath, MIMEType: mimeType, Content: content})
	if errors.Is(err, domain.ErrUnsupportedType) {
		return nil
	}
	if err != nil {
		return err
	}
	doc.ContentText = res.Text
	return nil
}

func (a *Adapter) fetch(ctx context.Context, id string) (*judgment, error) {
	var page struct {
		Results []judgment `json:"results"`
	}
	if err := a.client.GetJSON(ctx, listPath, url.Values{"expression_frbr_uri": {id}}, &page); err != nil {
		return nil, fmt.Errorf("judgments: fetching %s: %w", id, err)
	}
	for i := range page.Results {
		if page.Results[i].ExpressionFrbrURI == id {
			return &page.Results[i], nil
		}
	}
	return nil, fmt.Errorf("judgments: %s: %w", id, domain.ErrNotFoundUpstream)
}

// DeleteDocument removes the local judgment.
func (a *Adapter) DeleteDocument(ctx context.Context, id string) error {
	return upstream.DeleteByExpressionURI(ctx, a.deps.Documents, id)
}

// HandleWebhook is not supported.
func (a *Adapter) HandleWebhook(context.Context, []byte) error {
	return fmt.Errorf("judgments: webhooks: %w", domain.ErrNotImplemented)
}

// EditURL links to the judgment on the peer's site.
func (a *Adapter) EditURL(doc *domain.Document) string {
	if doc == nil || doc.ExpressionFrbrURI == "" {
		return ""
	}
	u, err := url.Parse(a.settings.APIURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := u.Host
	if rest, ok := strings.CutPrefix(host, "api."); ok {
		host = rest
	}
	return u.Scheme + "://" + host + doc.ExpressionFrbrURI
}
