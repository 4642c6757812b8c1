// Package ratifications mirrors which countries have ratified treaties.
// Upstream ids are work FRBR URIs.
package ratifications

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
	"github.com/laws-africa/peachjam/internal/ingestors/settings"
	"github.com/laws-africa/peachjam/internal/ingestors/upstream"
	"github.com/laws-africa/peachjam/internal/logger"
)

// Name is the registered adapter name.
const Name = "ratifications"

const listPath = "ratifications/"

// Ensure Adapter implements the interface.
var _ driven.IngestionAdapter = (*Adapter)(nil)

type ratification struct {
	Work struct {
		FrbrURI string `json:"frbr_uri"`
		Title   string `json:"title"`
	} `json:"work"`
	UpdatedAt string `json:"updated_at"`
	Countries []struct {
		Country          string `json:"country"`
		RatificationDate string `json:"ratification_date"`
		DepositDate      string `json:"deposit_date"`
		SignatureDate    string `json:"signature_date"`
	} `json:"countries"`
}

// Adapter mirrors ratifications, keeping only allowed countries.
type Adapter struct {
	ing      domain.Ingestor
	settings settings.Settings
	client   *upstream.Client
	deps     driven.AdapterDeps
}

// New builds a ratifications adapter.
func New(ing domain.Ingestor, raw map[string]string, deps driven.AdapterDeps) (driven.IngestionAdapter, error) {
	s := settings.Parse(raw)
	client, err := upstream.NewClient(upstream.Config{BaseURL: s.APIURL, Token: s.Token})
	if err != nil {
		return nil, fmt.Errorf("ratifications: %w", err)
	}
	return &Adapter{ing: ing, settings: s, client: client, deps: deps}, nil
}

// CheckForUpdates returns the treaties changed since lastRefreshed. Nothing
// is reported deleted: ratifications are not documents.
func (a *Adapter) CheckForUpdates(ctx context.Context, lastRefreshed *time.Time) ([]string, []string, error) {
	var updated []string
	err := a.client.Each(ctx, listPath, nil, func(raw json.RawMessage) error {
		var r ratification
		if err := json.Unmarshal(raw, &r); err != nil {
			return fmt.Errorf("decoding ratification: %w", err)
		}
		if r.Work.FrbrURI == "" || !a.settings.IsResponsibleFor(r.Work.FrbrURI) {
			return nil
		}
		if upstream.Newer(r.UpdatedAt, lastRefreshed) {
			updated = append(updated, r.Work.FrbrURI)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("ratifications: listing: %w", err)
	}
	logger.Info("ratifications: %s: %d updated", a.ing.Name, len(updated))
	return updated, nil, nil
}

// UpdateDocument replaces the ratification of one treaty.
func (a *Adapter) UpdateDocument(ctx context.Context, id string) error {
	var page struct {
		Results []ratification `json:"results"`
	}
	if err := a.client.GetJSON(ctx, listPath, url.Values{"work": {id}}, &page); err != nil {
		return fmt.Errorf("ratifications: fetching %s: %w", id, err)
	}
	var rec *ratification
	for i := range page.Results {
		if page.Results[i].Work.FrbrURI == id {
			rec = &page.Results[i]
			break
		}
	}
	if rec == nil {
		return fmt.Errorf("ratifications: %s: %w", id, domain.ErrNotFoundUpstream)
	}

	if _, err := a.deps.Documents.EnsureWork(ctx, id, rec.Work.Title); err != nil {
		return fmt.Errorf("ratifications: creating work %s: %w", id, err)
	}

	out := &domain.Ratification{WorkURI: id}
	if t, err := upstream.ParseTime(rec.UpdatedAt); err == nil {
		out.UpdatedAt = t
	}
	for _, c := range rec.Countries {
		if !a.settings.CountryAllowed(c.Country) {
			continue
		}
		out.Countries = append(out.Countries, domain.RatificationCountry{
			Country:          strings.ToUpper(c.Country),
			RatificationDate: c.RatificationDate,
			DepositDate:      c.DepositDate,
			SignatureDate:    c.SignatureDate,
		})
	}
	if err := a.deps.Documents.SaveRatification(ctx, out); err != nil {
		return fmt.Errorf("ratifications: saving %s: %w", id, err)
	}
	logger.Info("ratifications: updated %s (%d countries)", id, len(out.Countries))
	return nil
}

// DeleteDocument clears the countries of a treaty.
func (a *Adapter) DeleteDocument(ctx context.Context, id string) error {
	return a.deps.Documents.SaveRatification(ctx, &domain.Ratification{WorkURI: id, UpdatedAt: time.Now().UTC()})
}

// HandleWebhook is not supported.
func (a *Adapter) HandleWebhook(context.Context, []byte) error {
	return fmt.Errorf("ratifications: webhooks: %w", domain.ErrNotImplemented)
}

// EditURL returns "".
func (a *Adapter) EditURL(*domain.Document) string { return "" }
