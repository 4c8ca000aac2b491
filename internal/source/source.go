package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// Source yields the raw narration script. Implementations exist for plain
// text files and for PDFs (text extracted page by page).
type Source interface {
	Text() (string, error)
	Close() error
}

// FromPath picks a source by file extension.
func FromPath(path string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return NewPDFSource(path)
	case ".txt", ".md", "":
		return NewTextSource(path), nil
	default:
		return nil, fmt.Errorf("unsupported script source %q (want .txt or .pdf)", path)
	}
}

// TextSource reads the script from a plain text file.
type TextSource struct {
	path string
}

func NewTextSource(path string) *TextSource {
	return &TextSource{path: path}
}

func (s *TextSource) Text() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *TextSource) Close() error { return nil }

// PDFSource extracts the script text from a PDF document. Pages become
// paragraphs, so the segmenter never merges text across a page break.
type PDFSource struct {
	doc  *fitz.Document
	path string
}

func NewPDFSource(path string) (*PDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	return &PDFSource{doc: doc, path: path}, nil
}

func (s *PDFSource) Text() (string, error) {
	var pages []string
	for i := 0; i < s.doc.NumPage(); i++ {
		text, err := s.doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("extract text from %s page %d: %w", filepath.Base(s.path), i+1, err)
		}
		if t := strings.TrimSpace(text); t != "" {
			pages = append(pages, t)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

func (s *PDFSource) Close() error { return s.doc.Close() }
