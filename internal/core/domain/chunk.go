package domain

import (
	"crypto/md5" //nolint:gosec // change detection, not security
	"encoding/hex"
	"math"
	"strings"
)

// ChunkType identifies how a chunk was derived from its document.
type ChunkType string

// Chunk types.
const (
	ChunkTypeText      ChunkType = "text"
	ChunkTypePage      ChunkType = "page"
	ChunkTypeProvision ChunkType = "provision"
	ChunkTypeSummary   ChunkType = "summary"
)

// ProvisionSentinel separates injected context (parent titles) from provision
// text inside a chunk. It must be stripped before display.
const ProvisionSentinel = "\n-<>-\n\n"

// EmbeddingDimensions is the vector size produced by the embedding model.
const EmbeddingDimensions = 1024

// ContentChunk is an atomic unit fed to the semantic index.
type ContentChunk struct {
	ID         int64
	DocumentID int64
	Type       ChunkType

	// Portion identifies the source of the chunk within its document:
	// a page number for pages, a TOC id for provisions, "" otherwise.
	Portion string

	// ChunkN is the 0-based index within its portion; NChunks is the portion's total.
	ChunkN  int
	NChunks int

	Text string

	// Provision metadata, only set for provision chunks.
	ProvisionType  string
	ProvisionID    string
	ProvisionTitle string
	ParentIDs      []string
	ParentTitles   []string

	// Embedding is unit length, or nil before embedding.
	Embedding []float32
}

// DisplayText returns the chunk text without injected provision context.
func (c *ContentChunk) DisplayText() string {
	return StripSentinel(c.Text)
}

// StripSentinel removes the injected context preceding the sentinel, if present.
func StripSentinel(text string) string {
	if i := strings.Index(text, ProvisionSentinel); i >= 0 {
		return text[i+len(ProvisionSentinel):]
	}
	return text
}

// DocumentEmbedding is the per-document aggregate embedding.
type DocumentEmbedding struct {
	DocumentID     int64
	Embedding      []float32
	ContentTextMD5 string
	SummaryTextMD5 string
}

// TextMD5 returns the hex MD5 digest of s.
func TextMD5(s string) string {
	sum := md5.Sum([]byte(s)) //nolint:gosec // change detection
	return hex.EncodeToString(sum[:])
}

// Normalize scales v to unit length in place. It returns false when v is the zero vector.
func Normalize(v []float32) bool {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return false
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return true
}

// MeanUnitVector returns the L2-normalised mean of vecs, or nil when the mean is zero.
func MeanUnitVector(vecs [][]float32) []float32 {
	if len(vecs) == 0 {
		return nil
	}
	dims := len(vecs[0])
	acc := make([]float64, dims)
	n := 0
	for _, v := range vecs {
		if len(v) != dims {
			continue
		}
		for i, x := range v {
			acc[i] += float64(x)
		}
		n++
	}
	if n == 0 {
		return nil
	}
	out := make([]float32, dims)
	for i := range acc {
		out[i] = float32(acc[i] / float64(n))
	}
	if !Normalize(out) {
		return nil
	}
	return out
}

// Dot returns the inner product of two vectors of equal length.
func Dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
