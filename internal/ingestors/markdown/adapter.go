// Package markdown ingests books and journals from markdown files with YAML
// front matter, kept in a local directory or a GitHub repository. Upstream
// ids are expression FRBR URIs.
package markdown

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	gh "github.com/google/go-github/v80/github"
	"github.com/spf13/afero"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
	"github.com/laws-africa/peachjam/internal/ingestors/settings"
	"github.com/laws-africa/peachjam/internal/ingestors/upstream"
	"github.com/laws-africa/peachjam/internal/logger"
	mdnorm "github.com/laws-africa/peachjam/internal/normalisers/markdown"
)

// Name is the registered adapter name.
const Name = "markdown"

// Adapter-specific setting keys.
const (
	SettingPath     = "path"
	SettingPattern  = "pattern"
	SettingKind     = "kind"
	SettingCountry  = "country"
	SettingLanguage = "language"

	// SettingRepo is "owner/name" of a GitHub repository, used instead of path.
	SettingRepo = "repo"
	// SettingRef is the branch to mirror. Defaults to the repository's default branch.
	SettingRef = "ref"
	// SettingPollInterval is how often Watch polls a repository.
	SettingPollInterval = "poll_interval"
)

// DefaultPollInterval is used when poll_interval is unset.
const DefaultPollInterval = 5 * time.Minute

// DefaultPattern matches every markdown file below the root.
const DefaultPattern = "**/*.md"

// Ensure Adapter implements the interfaces.
var (
	_ driven.IngestionAdapter = (*Adapter)(nil)
	_ driven.Watcher          = (*Adapter)(nil)
)

// Adapter imports markdown files below a root directory.
type Adapter struct {
	ing      domain.Ingestor
	settings settings.Settings
	deps     driven.AdapterDeps

	root     string
	mirror   *mirror
	poll     time.Duration
	fsys     fs.FS
	pattern  string
	kind     domain.Kind
	country  string
	language string

	// uris maps relative paths to the expression URIs last seen for them.
	mu   sync.Mutex
	uris map[string]string
}

// New builds a markdown adapter. Either path or repo is required.
func New(ing domain.Ingestor, raw map[string]string, deps driven.AdapterDeps) (driven.IngestionAdapter, error) {
	ing.Settings = raw
	kind := domain.Kind(ing.Setting(SettingKind))
	switch kind {
	case "":
		kind = domain.KindBook
	case domain.KindBook, domain.KindJournal:
	default:
		return nil, fmt.Errorf("%w: markdown: kind must be book or journal, got %q", domain.ErrInvalidInput, kind)
	}

	parsed := settings.Parse(raw)
	a := &Adapter{
		ing:      ing,
		settings: parsed,
		deps:     deps,
		pattern:  firstNonEmpty(ing.Setting(SettingPattern), DefaultPattern),
		kind:     kind,
		country:  firstNonEmpty(ing.Setting(SettingCountry), "za"),
		language: firstNonEmpty(ing.Setting(SettingLanguage), "eng"),
		poll:     DefaultPollInterval,
		uris:     make(map[string]string),
	}
	if v := ing.Setting(SettingPollInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("%w: markdown: bad poll_interval %q", domain.ErrInvalidInput, v)
		}
		a.poll = d
	}

	if repo := ing.Setting(SettingRepo); repo != "" {
		m, err := newMirror(repo, ing.Setting(SettingRef), parsed.Token, parsed.APIURL, a.pattern)
		if err != nil {
			return nil, err
		}
		a.mirror = m
		a.root = "github:" + m.FullName()
		a.fsys = afero.NewIOFS(m.fs)
		return a, nil
	}

	root := ing.Setting(SettingPath)
	if root == "" {
		return nil, fmt.Errorf("%w: markdown: path or repo is required", domain.ErrInvalidInput)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("markdown: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: markdown: %s is not a directory", domain.ErrInvalidInput, root)
	}
	a.root = root
	a.fsys = os.DirFS(root)
	return a, nil
}

// remember records the URIs of scanned files.
func (a *Adapter) remember(files []*file) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, f := range files {
		a.uris[f.Path] = f.ExpressionURI
	}
}

// CheckForUpdates returns the files modified since lastRefreshed, and owned
// documents whose file has gone.
func (a *Adapter) CheckForUpdates(ctx context.Context, lastRefreshed *time.Time) ([]string, []string, error) {
	files, err := a.scan(ctx)
	if err != nil {
		return nil, nil, err
	}
	a.remember(files)

	present := make(map[string]bool, len(files))
	var updated []string
	for _, f := range files {
		present[f.ExpressionURI] = true
		if lastRefreshed == nil || f.ModTime.After(*lastRefreshed) {
			updated = append(updated, f.ExpressionURI)
		}
	}
	deleted, err := upstream.Missing(ctx, a.deps.Documents, a.owns, present)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("markdown: %s: %d updated, %d deleted", a.ing.Name, len(updated), len(deleted))
	return updated, deleted, nil
}

// owns limits deletion to documents of the adapter's kind.
func (a *Adapter) owns(uri string) bool {
	f, err := domain.ParseFrbrURI(uri)
	return err == nil &&
		f.Doctype == a.kind.DefaultDoctype() &&
		f.Subtype == string(a.kind) &&
		a.settings.IsResponsibleFor(uri)
}

// UpdateDocument finds the file for id and upserts its document.
func (a *Adapter) UpdateDocument(ctx context.Context, id string) error {
	files, err := a.scan(ctx)
	if err != nil {
		return err
	}
	a.remember(files)
	for _, f := range files {
		if f.ExpressionURI == id {
			return a.save(ctx, f)
		}
	}
	return fmt.Errorf("markdown: %s: %w", id, domain.ErrNotFoundUpstream)
}

func (a *Adapter) save(ctx context.Context, f *file) error {
	frbr, err := domain.ParseFrbrURI(f.ExpressionURI)
	if err != nil {
		return fmt.Errorf("markdown: %w", err)
	}
	date, err := time.Parse(domain.DateLayout, frbr.ExpressionDate)
	if err != nil {
		return fmt.Errorf("%w: markdown: %s: bad date %q", domain.ErrInvalidInput, f.Path, frbr.ExpressionDate)
	}

	res, err := mdnorm.New().Normalise(ctx, &domain.RawDocument{URI: f.Path, MIMEType: "text/markdown", Content: f.Raw})
	if err != nil {
		return fmt.Errorf("markdown: %s: %w", f.Path, err)
	}

	doc := &domain.Document{
		Kind:        a.kind,
		Language:    frbr.Language,
		Date:        date,
		Title:       firstNonEmpty(f.Meta.Title, res.Title),
		Citation:    f.Meta.Citation,
		Authors:     f.Meta.Authors,
		Blurb:       f.Meta.Blurb,
		ContentText: res.Text,
		Published:   f.Meta.Published == nil || *f.Meta.Published,
	}
	doc.SetFrbrParts(frbr)
	for _, t := range append(append([]string(nil), f.Meta.Topics...), a.settings.AddTopics...) {
		if !slices.Contains(doc.Topics, t) {
			doc.Topics = append(doc.Topics, t)
		}
	}
	if err := doc.DeriveIdentifiers(); err != nil {
		return fmt.Errorf("markdown: %s: %w", f.Path, err)
	}
	if doc.ExpressionFrbrURI != f.ExpressionURI {
		return fmt.Errorf("%w: %s: file %s, derived %s", domain.ErrIdentifierMismatch, f.Path, f.ExpressionURI, doc.ExpressionFrbrURI)
	}

	if a.deps.Blobs != nil {
		prefix := firstNonEmpty(a.deps.BlobPrefix, "file")
		name := prefix + ":" + path.Join(a.deps.BlobDir, strings.TrimPrefix(doc.ExpressionFrbrURI, "/"), filepath.Base(f.Path))
		stored, err := a.deps.Blobs.Save(ctx, name, bytes.NewReader(f.Raw))
		if err != nil {
			return fmt.Errorf("markdown: storing %s: %w", f.Path, err)
		}
		doc.SourceFile = &domain.SourceFile{
			Filename: filepath.Base(f.Path),
			MimeType: "text/markdown",
			Size:     int64(len(f.Raw)),
			Blob:     stored,
		}
	}

	if _, err := a.deps.Documents.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("markdown: saving %s: %w", f.Path, err)
	}
	logger.Info("markdown: updated %s from %s", doc.ExpressionFrbrURI, f.Path)
	return nil
}

// DeleteDocument removes the local document.
func (a *Adapter) DeleteDocument(ctx context.Context, id string) error {
	return upstream.DeleteByExpressionURI(ctx, a.deps.Documents, id)
}

// HandleWebhook accepts GitHub push events for a mirrored repository and
// enqueues the files the push changed. Directory sources use Watch instead.
func (a *Adapter) HandleWebhook(ctx context.Context, payload []byte) error {
	if a.mirror == nil {
		return fmt.Errorf("markdown: webhooks: %w", domain.ErrNotImplemented)
	}
	var ev gh.PushEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("%w: markdown webhook: %v", domain.ErrInvalidInput, err)
	}
	if !a.mirror.matchesPush(&ev) {
		logger.Debug("markdown: ignoring push to %s %s", ev.GetRepo().GetFullName(), ev.GetRef())
		return nil
	}
	return a.pull(ctx)
}

// EditURL links to the file on GitHub for mirrored repositories.
func (a *Adapter) EditURL(doc *domain.Document) string {
	if a.mirror == nil || doc == nil {
		return ""
	}
	branch := a.mirror.Branch()
	a.mu.Lock()
	defer a.mu.Unlock()
	for p, uri := range a.uris {
		if uri == doc.ExpressionFrbrURI && branch != "" {
			return fmt.Sprintf("https://github.com/%s/edit/%s/%s", a.mirror.FullName(), branch, p)
		}
	}
	return ""
}
