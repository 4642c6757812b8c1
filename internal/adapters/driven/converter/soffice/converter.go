// Package soffice converts office documents to PDF with a headless LibreOffice.
package soffice

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
	"github.com/laws-africa/peachjam/internal/logger"
)

// Ensure Converter implements the interface.
var _ driven.Converter = (*Converter)(nil)

// Converter runs soffice once per conversion with a private profile directory,
// so conversions may run concurrently.
type Converter struct {
	command     string
	timeout     time.Duration
	memoryLimit int64
}

// New creates a converter from settings.
func New(cfg domain.ConverterSettings) *Converter {
	if cfg.Command == "" {
		cfg.Command = "soffice"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &Converter{command: cfg.Command, timeout: cfg.Timeout, memoryLimit: cfg.MemoryLimit}
}

// ConvertToPDF converts inputPath into outDir and returns the PDF path.
// Failures wrap domain.ErrConversionFailure and leave the input untouched.
func (c *Converter) ConvertToPDF(ctx context.Context, inputPath, outDir string) (string, error) {
	profile, err := os.MkdirTemp("", "soffice-profile-")
	if err != nil {
		return "", fmt.Errorf("%w: profile dir: %w", domain.ErrConversionFailure, err)
	}
	defer os.RemoveAll(profile)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	name, args := c.commandLine(profile, inputPath, outDir)
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%w: %s timed out after %s", domain.ErrConversionFailure, filepath.Base(inputPath), c.timeout)
		}
		return "", fmt.Errorf("%w: %s: %w: %s", domain.ErrConversionFailure, filepath.Base(inputPath), err, strings.TrimSpace(stderr.String()))
	}

	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	out := filepath.Join(outDir, stem+".pdf")
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("%w: %s produced no pdf", domain.ErrConversionFailure, filepath.Base(inputPath))
	}
	logger.Debug("converted %s to pdf in %s", filepath.Base(inputPath), time.Since(start).Round(time.Millisecond))
	return out, nil
}

// commandLine builds the soffice invocation, under prlimit when a memory
// limit is set and prlimit is installed.
func (c *Converter) commandLine(profile, inputPath, outDir string) (string, []string) {
	args := []string{
		"-env:UserInstallation=file://" + filepath.ToSlash(profile),
		"--headless",
		"--convert-to", "pdf",
		"--outdir", outDir,
		inputPath,
	}
	if c.memoryLimit > 0 {
		if prlimit, err := exec.LookPath("prlimit"); err == nil {
			return prlimit, append([]string{"--as=" + strconv.FormatInt(c.memoryLimit, 10), "--", c.command}, args...)
		}
	}
	return c.command, args
}
