package blob

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode"
)

// maxStem is the longest filename stem kept by SanitizeFilename.
const maxStem = 250

// MimePDF is the MIME type of PDF files.
const MimePDF = "application/pdf"

// SanitizeFilename removes path separators, colons and control characters
// and shortens the stem, keeping the extension.
func SanitizeFilename(name string) string {
	clean := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' || unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	clean = strings.TrimSpace(clean)

	ext := filepath.Ext(clean)
	stem := strings.TrimSuffix(clean, ext)
	if runes := []rune(stem); len(runes) > maxStem {
		stem = string(runes[:maxStem])
	}
	if stem == "" {
		stem = "file"
	}
	return stem + ext
}

// documentTypes covers extensions the host mime tables may lack.
var documentTypes = map[string]string{
	".pdf":  MimePDF,
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".odt":  "application/vnd.oasis.opendocument.text",
	".rtf":  "application/rtf",
	".md":   "text/markdown",
}

// DetectMIME guesses a MIME type from the filename extension, then from the
// first bytes of the content.
func DetectMIME(filename string, head []byte) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if t, ok := documentTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if base, _, err := mime.ParseMediaType(t); err == nil {
			return base
		}
		return t
	}
	if len(head) == 0 {
		return "application/octet-stream"
	}
	t := http.DetectContentType(head)
	if base, _, err := mime.ParseMediaType(t); err == nil {
		return base
	}
	return t
}

// ExtensionFor returns a filename extension for a MIME type, or "".
func ExtensionFor(mimeType string) string {
	switch mimeType {
	case MimePDF:
		return ".pdf"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return ".docx"
	case "application/msword":
		return ".doc"
	case "text/html":
		return ".html"
	}
	exts, err := mime.ExtensionsByType(mimeType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}
