package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/laws-africa/peachjam/internal/core/ports/driven"
)

// DefaultIndexName is the index for languages without a dedicated analyzer.
const DefaultIndexName = "peachjam"

// Analyzers understood by the search index.
const (
	AnalyzerArabic     = "arabic"
	AnalyzerEnglish    = "english"
	AnalyzerFrench     = "french"
	AnalyzerPortuguese = "portuguese"
	AnalyzerStandard   = "standard"
)

var languageAnalyzers = map[string]string{
	"ara": AnalyzerArabic,
	"eng": AnalyzerEnglish,
	"fra": AnalyzerFrench,
	"por": AnalyzerPortuguese,
}

// IndexManager routes languages to indexes.
type IndexManager struct {
	index driven.SearchIndex
}

// NewIndexManager creates an index manager over a search index backend.
func NewIndexManager(index driven.SearchIndex) *IndexManager {
	return &IndexManager{index: index}
}

// IndexForLanguage returns the index holding documents of a 3-letter language code.
func (m *IndexManager) IndexForLanguage(code string) string {
	if _, ok := languageAnalyzers[code]; ok {
		return DefaultIndexName + "_" + code
	}
	return DefaultIndexName
}

// AnalyzerFor returns the analyzer of a named index.
func (m *IndexManager) AnalyzerFor(name string) string {
	for code, analyzer := range languageAnalyzers {
		if m.IndexForLanguage(code) == name {
			return analyzer
		}
	}
	return AnalyzerStandard
}

// AllIndexNames returns every search index name, sorted.
func (m *IndexManager) AllIndexNames() []string {
	names := []string{DefaultIndexName}
	for code := range languageAnalyzers {
		names = append(names, m.IndexForLanguage(code))
	}
	sort.Strings(names)
	return names
}

// EnsureIndexes opens or creates every index. A mapping mismatch is fatal.
func (m *IndexManager) EnsureIndexes(ctx context.Context) error {
	for _, name := range m.AllIndexNames() {
		if err := m.index.EnsureIndex(ctx, name, m.AnalyzerFor(name)); err != nil {
			return fmt.Errorf("ensuring index %s: %w", name, err)
		}
	}
	return nil
}
