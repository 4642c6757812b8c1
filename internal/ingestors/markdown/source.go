package markdown

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/laws-africa/peachjam/internal/core/domain"
	mdnorm "github.com/laws-africa/peachjam/internal/normalisers/markdown"
)

// frontMatter is the YAML block at the top of each file.
type frontMatter struct {
	Title     string   `yaml:"title"`
	FrbrURI   string   `yaml:"frbr_uri"`
	Country   string   `yaml:"country"`
	Locality  string   `yaml:"locality"`
	Language  string   `yaml:"language"`
	Date      string   `yaml:"date"`
	Number    string   `yaml:"number"`
	Citation  string   `yaml:"citation"`
	Authors   []string `yaml:"authors"`
	Topics    []string `yaml:"topics"`
	Blurb     string   `yaml:"blurb"`
	Published *bool    `yaml:"published"`
}

// file is one parsed markdown file.
type file struct {
	// Path is relative to the root, with forward slashes.
	Path    string
	ModTime time.Time
	Meta    frontMatter
	Body    string
	Raw     []byte

	// ExpressionURI identifies the document built from the file.
	ExpressionURI string
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// slug turns a filename stem into an FRBR number.
func slug(name string) string {
	s := slugRe.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}

// scan globs the root for files matching pattern and parses each one. A
// mirrored repository is synced first.
func (a *Adapter) scan(ctx context.Context) ([]*file, error) {
	if a.mirror != nil {
		if _, _, err := a.mirror.sync(ctx); err != nil {
			return nil, err
		}
	}
	paths, err := doublestar.Glob(a.fsys, a.pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("markdown: globbing %s: %w", a.pattern, err)
	}
	files := make([]*file, 0, len(paths))
	for _, p := range paths {
		f, err := a.load(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// load reads and parses one file.
func (a *Adapter) load(p string) (*file, error) {
	info, err := fs.Stat(a.fsys, p)
	if err != nil {
		return nil, fmt.Errorf("markdown: %w", err)
	}
	raw, err := fs.ReadFile(a.fsys, p)
	if err != nil {
		return nil, fmt.Errorf("markdown: reading %s: %w", p, err)
	}
	front, body := mdnorm.SplitFrontMatter(string(raw))
	f := &file{Path: p, ModTime: info.ModTime(), Body: body, Raw: raw}
	if front != "" {
		if err := yaml.Unmarshal([]byte(front), &f.Meta); err != nil {
			return nil, fmt.Errorf("%w: markdown: front matter of %s: %v", domain.ErrInvalidInput, p, err)
		}
	}
	frbr, err := a.identify(f)
	if err != nil {
		return nil, fmt.Errorf("markdown: %s: %w", p, err)
	}
	if f.ExpressionURI, err = frbr.ExpressionURI(); err != nil {
		return nil, fmt.Errorf("markdown: %s: %w", p, err)
	}
	return f, nil
}

// identify builds the file's identifier from frbr_uri, or from the front
// matter and adapter defaults.
func (a *Adapter) identify(f *file) (domain.FrbrURI, error) {
	lang := firstNonEmpty(f.Meta.Language, a.language)
	date := f.Meta.Date
	if date == "" {
		date = f.ModTime.UTC().Format(domain.DateLayout)
	}

	if f.Meta.FrbrURI != "" {
		frbr, err := domain.ParseFrbrURI(f.Meta.FrbrURI)
		if err != nil {
			return frbr, err
		}
		if frbr.Language == "" {
			frbr.Language, frbr.ExpressionDate = lang, date
		}
		return frbr, nil
	}

	number := f.Meta.Number
	if number == "" {
		number = slug(strings.TrimSuffix(path.Base(f.Path), path.Ext(f.Path)))
	}
	if len(date) < 4 {
		return domain.FrbrURI{}, fmt.Errorf("%w: bad date %q", domain.ErrInvalidIdentifier, date)
	}
	return domain.FrbrURI{
		Country:        strings.ToLower(firstNonEmpty(f.Meta.Country, a.country)),
		Locality:       strings.ToLower(f.Meta.Locality),
		Doctype:        a.kind.DefaultDoctype(),
		Subtype:        string(a.kind),
		Date:           date[:4],
		Number:         number,
		Language:       lang,
		ExpressionDate: date,
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
