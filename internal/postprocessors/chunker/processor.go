// Package chunker splits content chunks into sentence-aligned pieces that
// fit the embedding model's input.
package chunker

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

// Defaults for the splitter.
const (
	DefaultMaxWords = 256
	DefaultMaxChars = 2048

	// DefaultOverlapPercent of MaxWords is repeated at the start of the next piece.
	DefaultOverlapPercent = 20
)

// Processor splits oversized chunks into overlapping pieces.
// It implements the PostProcessor interface.
type Processor struct {
	maxWords     int
	maxChars     int
	overlapWords int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithMaxWords sets the target piece size in words.
func WithMaxWords(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxWords = n
			p.overlapWords = n * DefaultOverlapPercent / 100
		}
	}
}

// WithOverlap sets the overlap between pieces in words.
func WithOverlap(words int) Option {
	return func(p *Processor) {
		if words >= 0 {
			p.overlapWords = words
		}
	}
}

// WithMaxChars sets the hard character cap per piece.
func WithMaxChars(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxChars = n
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		maxWords:     DefaultMaxWords,
		maxChars:     DefaultMaxChars,
		overlapWords: DefaultMaxWords * DefaultOverlapPercent / 100,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.overlapWords >= p.maxWords {
		p.overlapWords = p.maxWords / 4
	}
	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits each incoming chunk. Provision context before the
// sentinel is repeated on every piece.
func (p *Processor) Process(_ context.Context, _ *domain.Document, chunks []domain.ContentChunk) ([]domain.ContentChunk, error) {
	out := make([]domain.ContentChunk, 0, len(chunks))
	for _, c := range chunks {
		prefix, body := "", c.Text
		if i := strings.Index(c.Text, domain.ProvisionSentinel); i >= 0 {
			prefix = c.Text[:i+len(domain.ProvisionSentinel)]
			body = c.Text[i+len(domain.ProvisionSentinel):]
		}
		prefix = tail(prefix, p.maxChars/2)

		pieces := p.Split(body, p.maxChars-utf8.RuneCountInString(prefix))
		if len(pieces) == 0 {
			c.ChunkN, c.NChunks = 0, 1
			out = append(out, c)
			continue
		}
		for i, piece := range pieces {
			pc := c
			pc.Text = prefix + piece
			pc.ChunkN = i
			pc.NChunks = len(pieces)
			out = append(out, pc)
		}
	}
	return out, nil
}

// Split breaks text into pieces of at most maxWords words and maxChars
// characters, breaking between sentences where possible.
func (p *Processor) Split(text string, maxChars int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxChars <= 0 {
		maxChars = p.maxChars
	}
	if len(strings.Fields(text)) <= p.maxWords && utf8.RuneCountInString(text) <= maxChars {
		return []string{text}
	}

	var units []unit
	for _, s := range splitSentences(text) {
		units = append(units, p.explode(s, maxChars)...)
	}

	var pieces []string
	for start := 0; start < len(units); {
		end, words, chars := start, 0, 0
		for end < len(units) {
			c := units[end].chars
			if end > start {
				c++
			}
			if end > start && (words+units[end].words > p.maxWords || chars+c > maxChars) {
				break
			}
			words += units[end].words
			chars += c
			end++
		}
		pieces = append(pieces, join(units[start:end]))
		if end == len(units) {
			break
		}

		next, overlap := end, 0
		for next-1 > start && overlap+units[next-1].words <= p.overlapWords {
			next--
			overlap += units[next].words
		}
		start = next
	}
	return pieces
}

type unit struct {
	text  string
	words int
	chars int
}

func join(units []unit) string {
	parts := make([]string, len(units))
	for i, u := range units {
		parts[i] = u.text
	}
	return strings.Join(parts, " ")
}

// explode splits a sentence that exceeds the limits into word windows.
func (p *Processor) explode(sentence string, maxChars int) []unit {
	words := strings.Fields(sentence)
	n := utf8.RuneCountInString(sentence)
	if len(words) <= p.maxWords && n <= maxChars {
		return []unit{{text: sentence, words: len(words), chars: n}}
	}

	var out []unit
	var cur []string
	curChars := 0
	flush := func() {
		if len(cur) > 0 {
			out = append(out, unit{text: strings.Join(cur, " "), words: len(cur), chars: curChars})
			cur, curChars = nil, 0
		}
	}
	for _, w := range words {
		for utf8.RuneCountInString(w) > maxChars {
			flush()
			head := truncate(w, maxChars)
			out = append(out, unit{text: head, words: 1, chars: maxChars})
			w = w[len(head):]
		}
		wc := utf8.RuneCountInString(w)
		extra := wc
		if len(cur) > 0 {
			extra++
		}
		if len(cur) >= p.maxWords || curChars+extra > maxChars {
			flush()
			extra = wc
		}
		cur = append(cur, w)
		curChars += extra
	}
	flush()
	return out
}

// splitSentences breaks on line ends and on terminal punctuation followed by space.
func splitSentences(text string) []string {
	var out []string
	start := 0
	emit := func(end int) {
		if s := strings.TrimSpace(text[start:end]); s != "" {
			out = append(out, s)
		}
	}
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n', '\f':
			emit(i)
			start = i + 1
		case '.', '!', '?':
			if i+1 == len(text) || text[i+1] == ' ' || text[i+1] == '\t' || text[i+1] == '\n' {
				emit(i + 1)
				start = i + 1
			}
		}
	}
	emit(len(text))
	return out
}

// truncate returns the first n runes of s.
func truncate(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// tail returns the last n runes of s.
func tail(s string, n int) string {
	count := utf8.RuneCountInString(s)
	if count <= n {
		return s
	}
	skip := count - n
	for pos := range s {
		if skip == 0 {
			return s[pos:]
		}
		skip--
	}
	return ""
}
