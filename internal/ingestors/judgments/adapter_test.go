package judgments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/ingestors/ingestortest"
	"github.com/laws-africa/peachjam/internal/ingestors/settings"
	"github.com/laws-africa/peachjam/internal/ingestors/upstream"
)

const judgmentURI = "/akn/za/judgment/zacc/2021/12/eng@2021-05-04"

func judgmentRecord() map[string]any {
	return map[string]any{
		"expression_frbr_uri": judgmentURI,
		"title":               "S v Makwanyane",
		"date":                "2021-05-04",
		"language":            "eng",
		"updated_at":          "2024-02-01T00:00:00Z",
		"court":               map[string]any{"code": "ZACC", "name": "Constitutional Court"},
		"jurisdiction":        "ZA",
		"judges":              []string{"Chaskalson P"},
		"case_numbers":        []string{"CCT 3/94"},
		"serial_number":       12,
		"flynote":             "Death penalty",
		"content_html":        "<p>Judgment</p>",
	}
}

func newTestAdapter(t *testing.T, raw map[string]string, records ...map[string]any) (*Adapter, *ingestortest.Documents) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/judgments/" {
			http.NotFound(w, r)
			return
		}
		want := r.URL.Query().Get("expression_frbr_uri")
		out := []map[string]any{}
		for _, rec := range records {
			if want == "" || rec["expression_frbr_uri"] == want {
				out = append(out, rec)
			}
		}
		assert.NoError(t, json.NewEncoder(w).Encode(map[string]any{"results": out}))
	}))
	t.Cleanup(srv.Close)

	client, err := upstream.NewClient(upstream.Config{BaseURL: srv.URL + "/api", Rate: 1000, RetryDelay: time.Millisecond})
	require.NoError(t, err)
	docs := ingestortest.NewDocuments()
	if raw == nil {
		raw = map[string]string{}
	}
	raw[domain.SettingAPIURL] = "https://api.example.org/api"
	return newAdapter(domain.Ingestor{Name: "peer"}, settings.Parse(raw), client, ingestortest.Deps(docs, nil)), docs
}

func TestUpdateDocument(t *testing.T) {
	a, docs := newTestAdapter(t, nil, judgmentRecord())

	require.NoError(t, a.UpdateDocument(context.Background(), judgmentURI))

	doc := docs.Docs[judgmentURI]
	require.NotNil(t, doc)
	assert.Equal(t, domain.KindJudgment, doc.Kind)
	assert.Equal(t, "[2021] ZACC 12", doc.Judgment.MNC)
	assert.Equal(t, 12, doc.Judgment.SerialNumber)
	assert.Equal(t, "Constitutional Court", doc.Judgment.Court.Name)
	assert.Equal(t, []string{"Chaskalson P"}, doc.Judgment.Judges)
	assert.Equal(t, "<p>Judgment</p>", doc.ContentHTML)
	assert.True(t, doc.Published)
}

func TestUpdateDocument_IdentifierMismatch(t *testing.T) {
	rec := judgmentRecord()
	rec["serial_number"] = 13
	a, docs := newTestAdapter(t, nil, rec)

	err := a.UpdateDocument(context.Background(), judgmentURI)
	assert.ErrorIs(t, err, domain.ErrIdentifierMismatch)
	assert.Empty(t, docs.Docs)
}

func TestUpdateDocument_NotFound(t *testing.T) {
	a, _ := newTestAdapter(t, nil)
	assert.ErrorIs(t, a.UpdateDocument(context.Background(), judgmentURI), domain.ErrNotFoundUpstream)
}

func TestCheckForUpdates_FiltersCourts(t *testing.T) {
	other := judgmentRecord()
	other["expression_frbr_uri"] = "/akn/za/judgment/zasca/2021/3/eng@2021-02-01"
	a, docs := newTestAdapter(t, map[string]string{domain.SettingIncludeActors: "zacc"}, judgmentRecord(), other)
	docs.Add(&domain.Document{ExpressionFrbrURI: "/akn/za/judgment/zacc/2019/1/eng@2019-01-01"})
	docs.Add(&domain.Document{ExpressionFrbrURI: "/akn/za/judgment/zasca/2019/1/eng@2019-01-01"})

	updated, deleted, err := a.CheckForUpdates(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{judgmentURI}, updated)
	assert.Equal(t, []string{"/akn/za/judgment/zacc/2019/1/eng@2019-01-01"}, deleted)
}

func TestEditURL(t *testing.T) {
	a, _ := newTestAdapter(t, nil)
	assert.Equal(t, "https://example.org"+judgmentURI, a.EditURL(&domain.Document{ExpressionFrbrURI: judgmentURI}))
}
