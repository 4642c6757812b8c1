// Package pdf extracts paged text from PDF files with poppler's pdftotext.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// MIMEType is the PDF MIME type.
const MIMEType = "application/pdf"

// ErrPDFToolNotFound indicates pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Normaliser handles PDF files.
type Normaliser struct {
	runner CommandRunner
}

// New creates a PDF normaliser that shells out to pdftotext.
func New() *Normaliser {
	return &Normaliser{runner: execRunner{}}
}

// NewWithRunner creates a PDF normaliser with a custom command runner.
func NewWithRunner(r CommandRunner) *Normaliser {
	return &Normaliser{runner: r}
}

// CheckAvailable reports whether pdftotext is installed.
func CheckAvailable() error {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions describes how to install pdftotext.
func InstallInstructions() string {
	return "pdftotext is part of poppler: brew install poppler, or apt install poppler-utils"
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{MIMEType}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise writes the PDF to a temp file and extracts its text. pdftotext
// separates pages with form feeds, which are kept as domain.PageBreak.
func (n *Normaliser) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	f, err := os.CreateTemp("", "peachjam-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("pdf: temp file: %w", err)
	}
	defer os.Remove(f.Name())
	_, err = f.Write(raw.Content)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("pdf: writing temp file: %w", err)
	}

	out, err := n.runner.Run(ctx, "pdftotext", "-enc", "UTF-8", f.Name(), "-")
	if err != nil {
		return nil, fmt.Errorf("%w: pdf: %w", domain.ErrConversionFailure, err)
	}

	text := strings.ReplaceAll(string(out), "\r\n", "\n")
	// pdftotext ends the last page with a form feed too
	text = strings.TrimSuffix(strings.TrimRight(text, " \n"), domain.PageBreak)

	return &driven.NormaliseResult{
		Title: extractTitle(text, raw.URI),
		Text:  text,
	}, nil
}

// extractTitle returns the first short non-empty line, or a title made from
// the filename.
func extractTitle(content, uri string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.Trim(line, domain.PageBreak+"\x00"))
		if line == "" || len(line) > 200 {
			continue
		}
		return line
	}
	name := strings.TrimSuffix(filepath.Base(uri), filepath.Ext(uri))
	return strings.ReplaceAll(strings.ReplaceAll(name, "_", " "), "-", " ")
}
