// Package scrape extracts the main article text from external pages. It is
// the pipeline's best-effort fallback content source; callers must tolerate
// empty results.
package scrape

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"newsroom/internal/ports"
)

const (
	maxRedirects     = 10
	maxBodyBytes     = 4 << 20
	fetchTimeout     = 15 * time.Second
	minExtractedLen  = 200
	userAgent        = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// structuralSelectors is the ordered list of containers tried when
// readability comes up short.
var structuralSelectors = []string{
	"article",
	"[role=main]",
	"main",
	".article-body",
	".post-content",
	".entry-content",
	"#content",
}

// boilerplateSelectors are removed before any text extraction.
var boilerplateSelectors = "script, style, nav, header, footer, aside, form, iframe, .ad, .ads, [class*=advert]"

// Fetcher implements ports.PageFetcher with a chain of extraction
// strategies: readability first, then structural selectors, then a
// whole-page markdown conversion as the last resort.
type Fetcher struct {
	client    *http.Client
	converter *md.Converter
	logger    *slog.Logger
}

var _ ports.PageFetcher = (*Fetcher)(nil)

// NewFetcher builds a fetcher with a bounded-redirect HTTP client.
func NewFetcher(logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: fetchTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		converter: md.NewConverter("", true, nil),
		logger:    logger,
	}
}

// ExtractMainText downloads the page and returns the largest plausible
// article-body text it can find.
func (f *Fetcher) ExtractMainText(ctx context.Context, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse url %s: %w", pageURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read page body: %w", err)
	}

	for _, strategy := range []func([]byte, *url.URL) (string, error){
		f.extractReadable,
		f.extractStructural,
		f.extractWholePage,
	} {
		text, err := strategy(body, parsed)
		if err != nil {
			f.logger.Debug("extraction strategy failed", "url", pageURL, "error", err)
			continue
		}
		if text = normalize(text); len(text) >= minExtractedLen {
			return text, nil
		}
	}
	return "", fmt.Errorf("no usable article text at %s", pageURL)
}

func (f *Fetcher) extractReadable(body []byte, pageURL *url.URL) (string, error) {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}
	return article.TextContent, nil
}

// extractStructural walks the ordered selector list and keeps the largest
// text found, preferring earlier selectors when they are big enough.
func (f *Fetcher) extractStructural(body []byte, _ *url.URL) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}
	doc.Find(boilerplateSelectors).Remove()

	var largest string
	for _, selector := range structuralSelectors {
		text := normalize(doc.Find(selector).First().Text())
		if len(text) >= minExtractedLen {
			return text, nil
		}
		if len(text) > len(largest) {
			largest = text
		}
	}
	return largest, nil
}

// extractWholePage converts the full page to markdown-flavored text; noisy,
// but better than nothing for pages with unusual markup.
func (f *Fetcher) extractWholePage(body []byte, _ *url.URL) (string, error) {
	text, err := f.converter.ConvertString(string(body))
	if err != nil {
		return "", fmt.Errorf("convert page: %w", err)
	}
	return text, nil
}

func normalize(text string) string {
	fields := strings.Fields(text)
	return strings.Join(fields, " ")
}
