package markdown

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/ingestors/ingestortest"
)

const bookURI = "/akn/za/doc/book/2021/intro-to-contract/eng@2021-03-01"

const bookFile = `---
title: Introduction to Contract
date: 2021-03-01
authors: [A. Author, B. Author]
topics: [contract]
blurb: A short primer.
---
# Introduction

Offer and **acceptance**.
`

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func newTestAdapter(t *testing.T, root string, raw map[string]string) (*Adapter, *ingestortest.Documents, *ingestortest.Tasks) {
	t.Helper()
	if raw == nil {
		raw = map[string]string{}
	}
	raw[SettingPath] = root
	docs := ingestortest.NewDocuments()
	tasks := &ingestortest.Tasks{}
	a, err := New(domain.Ingestor{ID: 7, Name: "books"}, raw, ingestortest.Deps(docs, tasks))
	require.NoError(t, err)
	return a.(*Adapter), docs, tasks
}

func TestNew_Validation(t *testing.T) {
	deps := ingestortest.Deps(ingestortest.NewDocuments(), &ingestortest.Tasks{})

	_, err := New(domain.Ingestor{}, map[string]string{}, deps)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = New(domain.Ingestor{}, map[string]string{SettingPath: t.TempDir(), SettingKind: "judgment"}, deps)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = New(domain.Ingestor{}, map[string]string{SettingPath: filepath.Join(t.TempDir(), "missing")}, deps)
	assert.Error(t, err)
}

func TestIdentify(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "contract/Intro to Contract.md", bookFile)
	writeFile(t, root, "journal.md", "---\nfrbr_uri: /akn/ke/doc/journal/2020/vol-1\ndate: 2020-06-01\n---\nbody\n")
	writeFile(t, root, "notes.txt", "ignored")

	a, _, _ := newTestAdapter(t, root, nil)
	files, err := a.scan(context.Background())
	require.NoError(t, err)

	uris := map[string]string{}
	for _, f := range files {
		uris[f.Path] = f.ExpressionURI
	}
	assert.Equal(t, map[string]string{
		"contract/Intro to Contract.md": bookURI,
		"journal.md":                    "/akn/ke/doc/journal/2020/vol-1/eng@2020-06-01",
	}, uris)
}

func TestIdentify_BadFrontMatter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "bad.md", "---\ntitle: [unclosed\n---\nbody\n")

	a, _, _ := newTestAdapter(t, root, nil)
	_, err := a.scan(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCheckForUpdates(t *testing.T) {
	root := t.TempDir()
	p := writeFile(t, root, "contract/intro-to-contract.md", bookFile)
	a, docs, _ := newTestAdapter(t, root, nil)

	stale := &domain.Document{ExpressionFrbrURI: "/akn/za/doc/book/2019/gone/eng@2019-01-01"}
	docs.Add(stale)
	other := &domain.Document{ExpressionFrbrURI: "/akn/za/act/2019/1/eng@2019-01-01"}
	docs.Add(other)

	updated, deleted, err := a.CheckForUpdates(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{bookURI}, updated)
	assert.Equal(t, []string{stale.ExpressionFrbrURI}, deleted)

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(p, past, past))
	since := time.Now()
	updated, _, err = a.CheckForUpdates(context.Background(), &since)
	require.NoError(t, err)
	assert.Empty(t, updated)
}

func TestUpdateDocument(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "intro-to-contract.md", bookFile)
	a, docs, _ := newTestAdapter(t, root, map[string]string{domain.SettingAddTopics: "books"})
	ctx := context.Background()

	require.NoError(t, a.UpdateDocument(ctx, bookURI))

	doc := docs.Docs[bookURI]
	require.NotNil(t, doc)
	assert.Equal(t, domain.KindBook, doc.Kind)
	assert.Equal(t, "Introduction to Contract", doc.Title)
	assert.Equal(t, []string{"A. Author", "B. Author"}, doc.Authors)
	assert.Equal(t, []string{"contract", "books"}, doc.Topics)
	assert.Equal(t, "A short primer.", doc.Blurb)
	assert.True(t, doc.Published)
	assert.Contains(t, doc.ContentText, "Offer and acceptance.")
	assert.NotContains(t, doc.ContentText, "blurb")

	require.NotNil(t, doc.SourceFile)
	assert.Equal(t, "text/markdown", doc.SourceFile.MimeType)
	assert.Equal(t, "intro-to-contract.md", doc.SourceFile.Filename)

	rc, err := a.deps.Blobs.Open(ctx, doc.SourceFile.Blob)
	require.NoError(t, err)
	defer rc.Close()
}

func TestUpdateDocument_NotFound(t *testing.T) {
	a, _, _ := newTestAdapter(t, t.TempDir(), nil)
	err := a.UpdateDocument(context.Background(), bookURI)
	assert.ErrorIs(t, err, domain.ErrNotFoundUpstream)
}

func TestUpdateDocument_Journal(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "vol-2.md", "---\ntitle: Volume 2\ndate: 2022-01-15\npublished: false\n---\ntext\n")
	a, docs, _ := newTestAdapter(t, root, map[string]string{SettingKind: "journal", SettingCountry: "ZM"})

	uri := "/akn/zm/doc/journal/2022/vol-2/eng@2022-01-15"
	require.NoError(t, a.UpdateDocument(context.Background(), uri))
	require.Contains(t, docs.Docs, uri)
	assert.Equal(t, domain.KindJournal, docs.Docs[uri].Kind)
	assert.False(t, docs.Docs[uri].Published)
}

func TestDeleteAndWebhook(t *testing.T) {
	a, docs, _ := newTestAdapter(t, t.TempDir(), nil)
	docs.Add(&domain.Document{ExpressionFrbrURI: bookURI})

	require.NoError(t, a.DeleteDocument(context.Background(), bookURI))
	assert.NotContains(t, docs.Docs, bookURI)
	require.NoError(t, a.DeleteDocument(context.Background(), bookURI))

	assert.ErrorIs(t, a.HandleWebhook(context.Background(), []byte("{}")), domain.ErrNotImplemented)
	assert.Equal(t, "", a.EditURL(&domain.Document{}))
}

func TestWatch(t *testing.T) {
	root := t.TempDir()
	a, _, tasks := newTestAdapter(t, root, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Watch(ctx) }()
	defer func() {
		cancel()
		assert.NoError(t, <-done)
	}()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	tmp := writeFile(t, root, "intro-to-contract.tmp", bookFile)
	p := filepath.Join(root, "intro-to-contract.md")
	require.NoError(t, os.Rename(tmp, p))

	require.Eventually(t, func() bool {
		for _, task := range tasks.Snapshot() {
			if task.Name == domain.TaskIngestorUpdateDocument &&
				task.Args.(domain.IngestorTaskArgs).UpstreamID == bookURI {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.Remove(p))
	require.Eventually(t, func() bool {
		for _, task := range tasks.Snapshot() {
			if task.Name == domain.TaskIngestorDeleteDocument {
				args := task.Args.(domain.IngestorTaskArgs)
				if args.UpstreamID == bookURI && args.IngestorID == 7 {
					return true
				}
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)
}

func TestRelative(t *testing.T) {
	root := t.TempDir()
	a, _, _ := newTestAdapter(t, root, map[string]string{SettingPattern: "books/**/*.md"})

	rel, ok := a.relative(filepath.Join(root, "books", "2021", "a.md"))
	assert.True(t, ok)
	assert.Equal(t, "books/2021/a.md", rel)

	_, ok = a.relative(filepath.Join(root, "drafts", "a.md"))
	assert.False(t, ok)
	_, ok = a.relative(filepath.Join(root, "books", "a.txt"))
	assert.False(t, ok)
	_, ok = a.relative(filepath.Join(filepath.Dir(root), "elsewhere.md"))
	assert.False(t, ok)
}
