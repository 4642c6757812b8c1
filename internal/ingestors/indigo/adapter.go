// Package indigo ingests legislation from an Indigo-style content API.
package indigo

import (
	"context"
	"encoding/json"
	"errors"
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
const Name = "indigo"

// Ensure Adapter implements the interface.
var _ driven.IngestionAdapter = (*Adapter)(nil)

// Adapter mirrors legislation expressions for a set of places.
type Adapter struct {
	ing      domain.Ingestor
	settings settings.Settings
	client   *upstream.Client
	attach   *upstream.Attacher
	deps     driven.AdapterDeps
}

// New builds an indigo adapter. api_url and places are required.
func New(ing domain.Ingestor, raw map[string]string, deps driven.AdapterDeps) (driven.IngestionAdapter, error) {
	s := settings.Parse(raw)
	if len(s.Places) == 0 {
		return nil, fmt.Errorf("%w: indigo: places is required", domain.ErrInvalidInput)
	}
	client, err := upstream.NewClient(upstream.Config{BaseURL: s.APIURL, Token: s.Token})
	if err != nil {
		return nil, fmt.Errorf("indigo: %w", err)
	}
	return newAdapter(ing, s, client, deps), nil
}

func newAdapter(ing domain.Ingestor, s settings.Settings, client *upstream.Client, deps driven.AdapterDeps) *Adapter {
	return &Adapter{
		ing:      ing,
		settings: s,
		client:   client,
		attach:   upstream.NewAttacher(client, deps),
		deps:     deps,
	}
}

// CheckForUpdates lists the works of each place. Every expression of an
// updated work is returned, since a new point in time touches its siblings.
func (a *Adapter) CheckForUpdates(ctx context.Context, lastRefreshed *time.Time) ([]string, []string, error) {
	present := make(map[string]bool)
	seen := make(map[string]bool)
	var updated []string

	for _, place := range a.settings.Places {
		err := a.client.Each(ctx, "/akn/"+place+"/.json", nil, func(raw json.RawMessage) error {
			var rec expression
			if err := json.Unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("indigo: decoding work: %w", err)
			}
			uris := rec.expressionURIs()
			for _, uri := range uris {
				present[uri] = true
			}
			if !upstream.Newer(rec.UpdatedAt, lastRefreshed) {
				return nil
			}
			for _, uri := range uris {
				if !seen[uri] && a.settings.IsResponsibleFor(uri) {
					seen[uri] = true
					updated = append(updated, uri)
				}
			}
			return nil
		})
		if err != nil {
			return nil, nil, fmt.Errorf("indigo: listing %s: %w", place, err)
		}
	}

	deleted, err := upstream.Missing(ctx, a.deps.Documents, a.settings.IsResponsibleFor, present)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("indigo: %s: %d updated, %d deleted", a.ing.Name, len(updated), len(deleted))
	return updated, deleted, nil
}

// DeleteDocument removes the local expression.
func (a *Adapter) DeleteDocument(ctx context.Context, id string) error {
	return upstream.DeleteByExpressionURI(ctx, a.deps.Documents, id)
}

// HandleWebhook enqueues an update or delete for the expression named in the payload.
func (a *Adapter) HandleWebhook(ctx context.Context, payload []byte) error {
	var hook webhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return fmt.Errorf("%w: indigo webhook: %v", domain.ErrInvalidInput, err)
	}
	uri := hook.Data.ExpressionFrbrURI
	if uri == "" {
		return fmt.Errorf("%w: indigo webhook has no expression_frbr_uri", domain.ErrInvalidInput)
	}
	if !a.settings.IsResponsibleFor(uri) {
		logger.Debug("indigo: ignoring webhook for %s", uri)
		return nil
	}
	switch hook.Action {
	case "deleted", "unpublished":
		return upstream.EnqueueDelete(ctx, a.deps.Tasks, a.ing.ID, uri)
	default:
		return upstream.EnqueueUpdate(ctx, a.deps.Tasks, a.ing.ID, uri)
	}
}

// EditURL links to the work in the editor that serves the API.
func (a *Adapter) EditURL(doc *domain.Document) string {
	if doc == nil || doc.WorkFrbrURI == "" {
		return ""
	}
	u, err := url.Parse(a.settings.APIURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := u.Host
	if rest, ok := strings.CutPrefix(host, "api."); ok {
		host = "edit." + rest
	}
	return u.Scheme + "://" + host + "/works" + doc.WorkFrbrURI + "/"
}

// optional treats a missing upstream resource as empty.
func optional(err error) error {
	if errors.Is(err, domain.ErrNotFoundUpstream) {
		return nil
	}
	return err
}
