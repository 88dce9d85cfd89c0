// Package pdf extracts per-page plain text from PDF files.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/kailas-cloud/reportlens/internal/domain"
	"github.com/kailas-cloud/reportlens/internal/domain/passage"
)

// ErrTooLarge is returned when a download exceeds the configured size bound.
var ErrTooLarge = errors.New("pdf exceeds size limit")

// ErrInvalid is returned for bytes that are not a readable PDF.
var ErrInvalid = errors.New("invalid pdf")

// Parser turns PDF bytes into pages.
type Parser struct{}

// NewParser creates a Parser.
func NewParser() *Parser { return &Parser{} }

// Parse returns one passage.Page per physical page, numbered from 1, in page order.
// Pages whose text cannot be extracted come back with empty text so the page count
// stays the physical one.
func (p *Parser) Parse(_ context.Context, data []byte) ([]passage.Page, error) {
	r, n, err := open(data)
	if err != nil {
		return nil, err
	}

	pages := make([]passage.Page, 0, n)
	for i := 1; i <= n; i++ {
		pages = append(pages, passage.Page{Number: i, Text: pageText(r, i)})
	}
	return pages, nil
}

func open(data []byte) (r *pdf.Reader, pages int, err error) {
	defer func() {
		if p := recover(); p != nil {
			r, pages, err = nil, 0, fmt.Errorf("%w: reader panic: %v", ErrInvalid, p)
		}
	}()

	r, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return r, r.NumPage(), nil
}

func pageText(r *pdf.Reader, i int) (text string) {
	// The reader panics on some malformed content streams.
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	page := r.Page(i)
	if page.V.IsNull() {
		return ""
	}
	t, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(t)
}

// Fetcher downloads uploaded files from the object storage URL.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewFetcher creates a Fetcher bounded to maxBytes per file.
func NewFetcher(timeout time.Duration, maxBytes int64) *Fetcher {
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

// Fetch reads the file at url. 5xx and network failures wrap domain.ErrUpstreamTransient.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w: %w", err, domain.ErrUpstreamTransient)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("download: unexpected status %d", resp.StatusCode)
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: %w", err, domain.ErrUpstreamTransient)
		}
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxBytes)
	}
	return data, nil
}
