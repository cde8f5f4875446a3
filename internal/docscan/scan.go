// Package docscan vets a file before it is offered to the upload endpoint:
// it must exist, be non-empty, and be an image or a structurally valid PDF.
// Rejections here never reach the network.
package docscan

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrEmptyFile rejects zero-byte files.
	ErrEmptyFile = errors.New("docscan: file is empty")
	// ErrUnsupportedType rejects anything that is not an image or a PDF.
	ErrUnsupportedType = errors.New("docscan: only images and PDFs are supported")
)

// Info describes an upload candidate.
type Info struct {
	Path     string
	Name     string
	Size     int64
	MimeType string
	// Pages is the PDF page count; zero for images.
	Pages int
}

// Inspect validates path as an upload candidate. PDFs are opened and their
// cross-reference table read, so corrupt files fail here instead of after a
// round-trip to the backend.
func Inspect(path string) (*Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("docscan: %w", err)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("docscan: %s is a directory", path)
	}
	if st.Size() == 0 {
		return nil, ErrEmptyFile
	}

	mimeType, err := sniffType(path)
	if err != nil {
		return nil, err
	}

	info := &Info{
		Path:     path,
		Name:     filepath.Base(path),
		Size:     st.Size(),
		MimeType: mimeType,
	}

	switch {
	case mimeType == "application/pdf":
		pages, err := pdfPageCount(path)
		if err != nil {
			return nil, fmt.Errorf("docscan: invalid PDF %s: %w", info.Name, err)
		}
		info.Pages = pages
	case strings.HasPrefix(mimeType, "image/"):
		// Images go up as-is; the backend's OCR decides what it can read.
	default:
		return nil, fmt.Errorf("%w (got %s)", ErrUnsupportedType, mimeType)
	}

	return info, nil
}

// sniffType reads the first 512 bytes and falls back to the extension when
// sniffing is inconclusive (DetectContentType reports octet-stream for
// most scanner output formats it doesn't know).
func sniffType(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("docscan: %w", err)
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("docscan: reading %s: %w", path, err)
	}

	mimeType := http.DetectContentType(buf[:n])
	if base, _, ok := strings.Cut(mimeType, ";"); ok {
		mimeType = base
	}
	if mimeType != "application/octet-stream" && mimeType != "text/plain" {
		return mimeType, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf", nil
	case ".jpg", ".jpeg":
		return "image/jpeg", nil
	case ".png":
		return "image/png", nil
	case ".tif", ".tiff":
		return "image/tiff", nil
	case ".webp":
		return "image/webp", nil
	default:
		return mimeType, nil
	}
}

func pdfPageCount(path string) (int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return r.NumPage(), nil
}
