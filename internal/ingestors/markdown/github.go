package markdown

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	gh "github.com/google/go-github/v80/github"
	"github.com/spf13/afero"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

const (
	// githubTimeout bounds each GitHub API request.
	githubTimeout = 30 * time.Second

	// githubRate throttles API calls below the authenticated hourly quota.
	githubRate  = 5
	githubBurst = 10

	// maxBlobSize skips files GitHub will not return inline.
	maxBlobSize = 1 << 20
)

// mirror keeps an in-memory copy of the markdown files in one branch of a
// GitHub repository.
type mirror struct {
	client  *gh.Client
	limiter *rate.Limiter
	owner   string
	repo    string
	branch  string
	pattern string

	fs afero.Fs

	mu   sync.Mutex
	shas map[string]string
}

// newMirror parses "owner/name" and builds a client. apiURL overrides the
// public API, for GitHub Enterprise.
func newMirror(fullName, branch, token, apiURL, pattern string) (*mirror, error) {
	owner, repo, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, fmt.Errorf("%w: markdown: repo must be owner/name, got %q", domain.ErrInvalidInput, fullName)
	}

	hc := &http.Client{Timeout: githubTimeout}
	if token != "" {
		hc = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
		hc.Timeout = githubTimeout
	}
	client := gh.NewClient(hc)
	if apiURL != "" {
		u, err := url.Parse(strings.TrimSuffix(apiURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("%w: markdown: api_url: %v", domain.ErrInvalidInput, err)
		}
		client.BaseURL = u
	}

	return &mirror{
		client:  client,
		limiter: rate.NewLimiter(githubRate, githubBurst),
		owner:   owner,
		repo:    repo,
		branch:  branch,
		pattern: pattern,
		fs:      afero.NewMemMapFs(),
		shas:    make(map[string]string),
	}, nil
}

// FullName is "owner/name".
func (m *mirror) FullName() string { return m.owner + "/" + m.repo }

// Branch is the mirrored branch, or "" before the first sync resolves it.
func (m *mirror) Branch() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.branch
}

// ensureBranch looks up the default branch when none was configured.
func (m *mirror) ensureBranch(ctx context.Context) (string, error) {
	if branch := m.Branch(); branch != "" {
		return branch, nil
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return "", err
	}
	repo, _, err := m.client.Repositories.Get(ctx, m.owner, m.repo)
	if err != nil {
		return "", m.wrap(err, "get repository")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.branch = repo.GetDefaultBranch()
	return m.branch, nil
}

// sync fetches the branch tree, downloads blobs whose sha changed and drops
// files that are gone. It returns the changed and removed paths.
func (m *mirror) sync(ctx context.Context) (changed, removed []string, err error) {
	branch, err := m.ensureBranch(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}
	tree, _, err := m.client.Git.GetTree(ctx, m.owner, m.repo, branch, true)
	if err != nil {
		return nil, nil, m.wrap(err, "get tree")
	}
	if tree.GetTruncated() {
		return nil, nil, fmt.Errorf("markdown: %s: tree is too large to list", m.FullName())
	}

	seen := make(map[string]bool)
	for _, entry := range tree.Entries {
		p := entry.GetPath()
		if entry.GetType() != "blob" || entry.GetSize() > maxBlobSize {
			continue
		}
		if ok, _ := doublestar.Match(m.pattern, p); !ok {
			continue
		}
		seen[p] = true

		m.mu.Lock()
		same := m.shas[p] == entry.GetSHA()
		m.mu.Unlock()
		if same {
			continue
		}
		content, err := m.blob(ctx, entry.GetSHA())
		if err != nil {
			return nil, nil, err
		}
		if err := afero.WriteFile(m.fs, p, content, 0o644); err != nil {
			return nil, nil, fmt.Errorf("markdown: mirroring %s: %w", p, err)
		}
		m.mu.Lock()
		m.shas[p] = entry.GetSHA()
		m.mu.Unlock()
		changed = append(changed, p)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for p := range m.shas {
		if seen[p] {
			continue
		}
		delete(m.shas, p)
		if err := m.fs.Remove(p); err != nil && !errors.Is(err, afero.ErrFileNotFound) {
			return nil, nil, fmt.Errorf("markdown: removing %s: %w", p, err)
		}
		removed = append(removed, p)
	}
	return changed, removed, nil
}

func (m *mirror) blob(ctx context.Context, sha string) ([]byte, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	b, _, err := m.client.Git.GetBlob(ctx, m.owner, m.repo, sha)
	if err != nil {
		return nil, m.wrap(err, "get blob")
	}
	if b.GetEncoding() == "base64" {
		return base64.StdEncoding.DecodeString(strings.ReplaceAll(b.GetContent(), "\n", ""))
	}
	return []byte(b.GetContent()), nil
}

// wrap maps GitHub errors onto the upstream error kinds.
func (m *mirror) wrap(err error, op string) error {
	var rl *gh.RateLimitError
	if errors.As(err, &rl) {
		return fmt.Errorf("%w: github: rate limited until %s", domain.ErrUpstreamUnavailable, rl.Rate.Reset.Format(time.RFC3339))
	}
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("markdown: %s %s: %w", op, m.FullName(), domain.ErrNotFoundUpstream)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: github: %s %s: %s", domain.ErrUpstreamUnavailable, op, m.FullName(), ghErr.Message)
		}
	}
	return fmt.Errorf("markdown: %s %s: %w", op, m.FullName(), err)
}

// matchesPush reports whether a push webhook is for the mirrored branch.
func (m *mirror) matchesPush(ev *gh.PushEvent) bool {
	branch := m.Branch()
	if !strings.EqualFold(ev.GetRepo().GetFullName(), m.FullName()) {
		return false
	}
	return branch == "" || ev.GetRef() == "refs/heads/"+branch
}
