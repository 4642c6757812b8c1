package bleve

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/analysis/lang/ar"
	"github.com/blevesearch/bleve/analysis/lang/en"
	"github.com/blevesearch/bleve/analysis/lang/fr"
	"github.com/blevesearch/bleve/analysis/lang/pt"
	"github.com/blevesearch/bleve/analysis/token/lowercase"
	"github.com/blevesearch/bleve/analysis/tokenizer/single"
	"github.com/blevesearch/bleve/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/mapping"
)

// Document kinds stored in doc_kind.
const (
	kindDocument  = "document"
	kindPage      = "page"
	kindProvision = "provision"
)

const (
	fieldDocKind  = "doc_kind"
	fieldParentID = "parent_id"
	fieldSuggest  = "suggest"
	fieldRanking  = "ranking"

	exactAnalyzer   = "exact"
	suggestAnalyzer = "suggest"
	exactSuffix     = ".exact"
)

// bleveAnalyzers maps index analyzer names to bleve analyzers.
var bleveAnalyzers = map[string]string{
	"arabic":     ar.AnalyzerName,
	"english":    en.AnalyzerName,
	"french":     fr.AnalyzerName,
	"portuguese": pt.AnalyzerName,
	"standard":   standard.Name,
}

// Text fields are analysed with the index language and carry an unstemmed
// ".exact" sub-field when listed in exactFields.
var (
	textFields = []string{
		"title", "title_expanded", "citation", "alternative_names", "content",
		"blurb", "flynote", "case_summary", "case_name", "case_number", "judges_text",
	}
	exactFields = map[string]bool{
		"title": true, "title_expanded": true, "citation": true,
		"alternative_names": true, "content": true,
	}
	keywordFields = []string{
		"kind", "doc_type", "expression_frbr_uri", "work_frbr_uri", "language",
		"jurisdiction", "locality", "nature", "matter_type", "authors", "labels",
		"topics", "year", "court", "registry", "judges", "attorneys", "outcome",
		"case_action", "mnc", fieldDocKind, fieldParentID,
	}
	numericFields = []string{"id", fieldRanking, "authority_score"}
	dateFields    = []string{"date", "created_at"}
)

// buildMapping returns the index mapping for an analyzer.
func buildMapping(analyzer string) (*mapping.IndexMappingImpl, error) {
	lang, ok := bleveAnalyzers[analyzer]
	if !ok {
		return nil, fmt.Errorf("bleve: unknown analyzer %q", analyzer)
	}

	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = lang
	im.StoreDynamic = false
	im.IndexDynamic = false
	im.DocValuesDynamic = false
	if err := im.AddCustomAnalyzer(exactAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("bleve: exact analyzer: %w", err)
	}
	if err := im.AddCustomAnalyzer(suggestAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     single.Name,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("bleve: suggest analyzer: %w", err)
	}

	doc := bleve.NewDocumentStaticMapping()
	for _, f := range textFields {
		doc.AddFieldMappingsAt(f, textField(f, lang, exactFields[f])...)
	}
	for _, f := range keywordFields {
		doc.AddFieldMappingsAt(f, keywordField())
	}
	for _, f := range numericFields {
		fm := bleve.NewNumericFieldMapping()
		fm.IncludeInAll = false
		doc.AddFieldMappingsAt(f, fm)
	}
	for _, f := range dateFields {
		fm := bleve.NewDateTimeFieldMapping()
		fm.IncludeInAll = false
		doc.AddFieldMappingsAt(f, fm)
	}
	mostRecent := bleve.NewBooleanFieldMapping()
	mostRecent.IncludeInAll = false
	doc.AddFieldMappingsAt("is_most_recent", mostRecent)

	suggest := bleve.NewTextFieldMapping()
	suggest.Analyzer = suggestAnalyzer
	suggest.IncludeTermVectors = false
	suggest.IncludeInAll = false
	doc.AddFieldMappingsAt(fieldSuggest, suggest)

	pages := bleve.NewDocumentStaticMapping()
	pages.AddFieldMappingsAt("body", textField("body", lang, false)...)
	pageNum := bleve.NewNumericFieldMapping()
	pageNum.IncludeInAll = false
	pages.AddFieldMappingsAt("page_num", pageNum)
	doc.AddSubDocumentMapping("pages", pages)

	provisions := bleve.NewDocumentStaticMapping()
	provisions.AddFieldMappingsAt("title", textField("title", lang, false)...)
	provisions.AddFieldMappingsAt("body", textField("body", lang, false)...)
	for _, f := range []string{"id", "type", "parent_ids", "parent_titles"} {
		provisions.AddFieldMappingsAt(f, keywordField())
	}
	doc.AddSubDocumentMapping("provisions", provisions)

	im.DefaultMapping = doc
	return im, nil
}

// textField maps a text property to a stemmed field and, optionally, an
// unstemmed sub-field. Only short exact fields are stored for highlighting.
func textField(name, lang string, withExact bool) []*mapping.FieldMapping {
	stemmed := bleve.NewTextFieldMapping()
	stemmed.Analyzer = lang
	stemmed.IncludeInAll = false
	if !withExact {
		return []*mapping.FieldMapping{stemmed}
	}

	exact := bleve.NewTextFieldMapping()
	exact.Name = name + exactSuffix
	exact.Analyzer = exactAnalyzer
	exact.Store = name != "content"
	exact.IncludeInAll = false
	return []*mapping.FieldMapping{stemmed, exact}
}

func keywordField() *mapping.FieldMapping {
	fm := bleve.NewTextFieldMapping()
	fm.Analyzer = keyword.Name
	fm.IncludeTermVectors = false
	fm.IncludeInAll = false
	return fm
}

// fingerprint identifies a mapping so that a changed mapping is detected on open.
func fingerprint(m mapping.IndexMapping) (string, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("bleve: encoding mapping: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
