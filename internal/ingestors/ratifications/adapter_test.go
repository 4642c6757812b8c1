package ratifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/ingestors/ingestortest"
)

const treatyURI = "/akn/aa-au/act/charter/1981/human-and-peoples-rights"

func newTestAdapter(t *testing.T, raw map[string]string) (*Adapter, *ingestortest.Documents) {
	t.Helper()
	rec := map[string]any{
		"work":       map[string]any{"frbr_uri": treatyURI, "title": "African Charter"},
		"updated_at": "2024-02-01T00:00:00Z",
		"countries": []any{
			map[string]any{"country": "ZA", "ratification_date": "1996-07-09"},
			map[string]any{"country": "XX", "ratification_date": "2000-01-01"},
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ratifications/" {
			http.NotFound(w, r)
			return
		}
		out := []any{}
		if work := r.URL.Query().Get("work"); work == "" || work == treatyURI {
			out = append(out, rec)
		}
		assert.NoError(t, json.NewEncoder(w).Encode(map[string]any{"results": out}))
	}))
	t.Cleanup(srv.Close)

	if raw == nil {
		raw = map[string]string{}
	}
	raw[domain.SettingAPIURL] = srv.URL + "/api"
	docs := ingestortest.NewDocuments()
	a, err := New(domain.Ingestor{Name: "au-ratifications"}, raw, ingestortest.Deps(docs, nil))
	require.NoError(t, err)
	return a.(*Adapter), docs
}

func TestUpdateDocument_IncludeCountries(t *testing.T) {
	a, docs := newTestAdapter(t, map[string]string{domain.SettingIncludeCountries: "za"})

	require.NoError(t, a.UpdateDocument(context.Background(), treatyURI))

	r := docs.Ratifications[treatyURI]
	require.NotNil(t, r)
	require.Len(t, r.Countries, 1)
	assert.Equal(t, "ZA", r.Countries[0].Country)
	assert.Equal(t, "1996-07-09", r.Countries[0].RatificationDate)
	assert.False(t, r.UpdatedAt.IsZero())
	assert.Equal(t, "African Charter", docs.Works[treatyURI].Title)
}

func TestUpdateDocument_ExcludeCountries(t *testing.T) {
	a, docs := newTestAdapter(t, map[string]string{domain.SettingExcludeCountries: "za"})

	require.NoError(t, a.UpdateDocument(context.Background(), treatyURI))
	require.Len(t, docs.Ratifications[treatyURI].Countries, 1)
	assert.Equal(t, "XX", docs.Ratifications[treatyURI].Countries[0].Country)
}

func TestUpdateDocument_NotFound(t *testing.T) {
	a, _ := newTestAdapter(t, nil)
	err := a.UpdateDocument(context.Background(), "/akn/aa-au/act/charter/2000/other")
	assert.ErrorIs(t, err, domain.ErrNotFoundUpstream)
}

func TestCheckForUpdates(t *testing.T) {
	a, _ := newTestAdapter(t, nil)
	updated, deleted, err := a.CheckForUpdates(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{treatyURI}, updated)
	assert.Empty(t, deleted)
}

func TestDeleteDocument(t *testing.T) {
	a, docs := newTestAdapter(t, nil)
	require.NoError(t, a.UpdateDocument(context.Background(), treatyURI))
	require.NoError(t, a.DeleteDocument(context.Background(), treatyURI))
	assert.Empty(t, docs.Ratifications[treatyURI].Countries)
}
