// Package textextract obtains flattened report text from source
// documents. PDFs lose their visual layout here on purpose: the
// measurement parser downstream works on plain lines, not page geometry.
package textextract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// FromPDF reads a PDF document and returns the concatenated text of all
// pages, one page per block. Encrypted documents are tried with an empty
// password first, which covers the print-protected reports many labs
// issue; anything needing a real password is an error.
func FromPDF(r io.Reader) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", fmt.Errorf("read pdf bytes: %w", err)
	}

	pdfReader, err := model.NewPdfReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	encrypted, err := pdfReader.IsEncrypted()
	if err != nil {
		return "", fmt.Errorf("check pdf encryption: %w", err)
	}
	if encrypted {
		ok, err := pdfReader.Decrypt([]byte(""))
		if err != nil {
			return "", fmt.Errorf("decrypt pdf: %w", err)
		}
		if !ok {
			return "", fmt.Errorf("pdf is password-protected")
		}
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("count pdf pages: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			continue
		}
		ex, err := extractor.New(page)
		if err != nil {
			continue
		}
		text, err := ex.ExtractText()
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

// FromFile extracts text from a document on disk, dispatching on the file
// extension: .pdf goes through FromPDF, everything else is read as plain
// UTF-8 text. The returned text is raw; callers that feed the parser
// usually pass it through CleanText first.
func FromFile(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		return FromPDF(f)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}
