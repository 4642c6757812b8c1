package markdown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

func TestSupportedMIMETypes(t *testing.T) {
	mimeTypes := New().SupportedMIMETypes()
	assert.Equal(t, []string{"text/markdown", "text/x-markdown"}, mimeTypes)
	assert.Equal(t, 50, New().Priority())
}

func TestNormalise_NilDocument(t *testing.T) {
	result, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, result)
}

func TestNormalise_FrontMatterDropped(t *testing.T) {
	raw := &domain.RawDocument{
		URI:      "books/land-law.md",
		MIMEType: "text/markdown",
		Content:  []byte("---\ntitle: Land Law\nkind: book\n---\n# Land Law\n\nChapter text."),
	}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "Land Law", result.Title)
	assert.Equal(t, "Land Law\n\nChapter text.", result.Text)
}

func TestNormalise_TitleExtraction(t *testing.T) {
	tests := []struct {
		name          string
		content       string
		uri           string
		expectedTitle string
	}{
		{"H1 heading", "# My Document\n\nContent here.", "/doc.md", "My Document"},
		{"H1 with extra spaces", "#   Spaced Title   \n\nContent", "/doc.md", "Spaced Title"},
		{"no heading", "Just some content.", "/my_document.md", "my document"},
		{"H2 first", "## Second Level\n\nNo H1.", "/read-me.md", "read me"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw := &domain.RawDocument{URI: tc.uri, Content: []byte(tc.content)}
			result, err := New().Normalise(context.Background(), raw)
			require.NoError(t, err)
			assert.Equal(t, tc.expectedTitle, result.Title)
		})
	}
}

func TestSplitFrontMatter(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantFront string
		wantBody  string
	}{
		{"none", "# Title", "", "# Title"},
		{"simple", "---\na: 1\n---\nbody", "a: 1\n", "body"},
		{"crlf", "---\r\na: 1\r\n---\r\nbody", "a: 1\r\n", "body"},
		{"empty body", "---\na: 1\n---", "a: 1\n", ""},
		{"unterminated", "---\na: 1\nbody", "", "---\na: 1\nbody"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			front, body := SplitFrontMatter(tc.input)
			assert.Equal(t, tc.wantFront, front)
			assert.Equal(t, tc.wantBody, body)
		})
	}
}

func TestStripMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"headings removed", "# Title\n## Subtitle\n### Third", "Title\nSubtitle\nThird"},
		{"bold removed", "This is **bold** text", "This is bold text"},
		{"italic removed", "This is *very* _important_", "This is very important"},
		{"underscores in words kept", "see section_12 here", "see section_12 here"},
		{"links converted", "Click [here](https://example.com)", "Click here"},
		{"images removed", "See ![alt text](image.png) here", "See  here"},
		{"code fence kept as text", "Before\n```\nquoted\n```\nAfter", "Before\nquoted\n\nAfter"},
		{"inline code kept", "Use `s 12(1)` here", "Use s 12(1) here"},
		{"blockquotes cleaned", "> This is a quote", "This is a quote"},
		{"bullets removed", "- Item 1\n- Item 2", "Item 1\nItem 2"},
		{"numbering kept", "1. First\n2. Second", "1. First\n2. Second"},
		{"rules removed", "above\n\n---\n\nbelow", "above\n\nbelow"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, stripMarkdown(tc.input))
		})
	}
}
