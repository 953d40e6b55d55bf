// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package refine

import (
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
)

// Document is the text a PDF yields for field extraction.
type Document struct {
	// Info holds the document information dictionary (Title, Author,
	// Subject, Keywords, ...), when present.
	Info map[string]string

	// FirstPage and LastPage are the plain text of those pages. They are
	// equal for single-page documents.
	FirstPage string
	LastPage  string

	Pages int
}

// TextExtractor reads a downloaded PDF.
type TextExtractor interface {
	Extract(path string) (Document, error)
}

// infoKeys are the information dictionary entries read by PDFExtractor.
var infoKeys = []string{"Title", "Author", "Subject", "Keywords", "Creator"}

// PDFExtractor is the default TextExtractor, backed by ledongthuc/pdf.
type PDFExtractor struct{}

// Extract opens path and reads its metadata plus first and last pages. The
// parser panics on some malformed files; those panics are returned as
// errors.
func (PDFExtractor) Extract(path string) (doc Document, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			doc = Document{}
			err = eris.Errorf("pdf parser panic: %v", rec)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return Document{}, eris.Wrap(err, "opening pdf")
	}
	defer f.Close()

	doc.Pages = r.NumPage()
	if doc.Pages < 1 {
		return Document{}, eris.New("pdf has no pages")
	}

	doc.Info = make(map[string]string)
	info := r.Trailer().Key("Info")
	for _, k := range infoKeys {
		if v := strings.TrimSpace(info.Key(k).Text()); v != "" {
			doc.Info[k] = v
		}
	}

	doc.FirstPage = pageText(r, 1)
	if doc.Pages == 1 {
		doc.LastPage = doc.FirstPage
	} else {
		doc.LastPage = pageText(r, doc.Pages)
	}
	return doc, nil
}

func pageText(r *pdf.Reader, n int) string {
	page := r.Page(n)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}

// ReadText returns the plain text of every page of the PDF at path, pages
// separated by newlines.
func ReadText(path string) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = eris.Errorf("pdf parser panic: %v", rec)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", eris.Wrap(err, "opening pdf")
	}
	defer f.Close()

	var b strings.Builder
	for n := 1; n <= r.NumPage(); n++ {
		b.WriteString(pageText(r, n))
		b.WriteString("\n")
	}
	return b.String(), nil
}
