package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/h2non/filetype"
)

// Supported formats.
const (
	FormatTXT  = "txt"
	FormatPDF  = "pdf"
	FormatDOCX = "docx"
)

// UnsupportedFormatError is returned when the upload is not TXT, PDF or DOCX,
// or its content does not match the declared format.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Format == "" {
		return "unsupported document format"
	}
	return fmt.Sprintf("unsupported document format %q", e.Format)
}

// Extractor turns uploaded documents into plain text.
type Extractor struct {
	// MaxPDFPages caps how many pages are read; 0 reads all.
	MaxPDFPages int
}

func New(maxPDFPages int) *Extractor {
	return &Extractor{MaxPDFPages: maxPDFPages}
}

// FormatFromFilename maps a file extension to a declared format.
func FormatFromFilename(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

// Extract returns the raw text of data. declared is the format claimed by
// the client; the content is sniffed and wins when it is recognized.
func (e *Extractor) Extract(ctx context.Context, data []byte, declared string) (string, error) {
	format, err := detect(data, strings.ToLower(strings.TrimSpace(declared)))
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch format {
	case FormatPDF:
		return extractPDF(ctx, data, e.MaxPDFPages)
	case FormatDOCX:
		return extractDOCX(data)
	default:
		return decodeText(data)
	}
}

func detect(data []byte, declared string) (string, error) {
	kind, _ := filetype.Match(data)
	switch kind.Extension {
	case "pdf":
		return FormatPDF, nil
	case "docx":
		return FormatDOCX, nil
	case "zip":
		// plain zips that carry a Word body still count as docx
		if declared == FormatDOCX {
			return FormatDOCX, nil
		}
		return "", &UnsupportedFormatError{Format: kind.Extension}
	}
	if kind != filetype.Unknown {
		return "", &UnsupportedFormatError{Format: kind.Extension}
	}

	switch declared {
	case FormatTXT, "text", "":
		if !utf8.Valid(data) && !hasUTF16BOM(data) {
			return "", &UnsupportedFormatError{Format: "binary"}
		}
		return FormatTXT, nil
	default:
		return "", &UnsupportedFormatError{Format: declared}
	}
}
