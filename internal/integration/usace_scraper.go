// Package integration handles external service interactions
package integration

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/abelzeko/riverstats/internal/entities"
	"github.com/jonboulle/clockwork"
)

// USACEScraper fetches reservoir documents from USACE district pages and APIs
type USACEScraper struct {
	fetch fetcher
	clock clockwork.Clock
}

// NewUSACEScraper creates a new USACE document fetcher. A nil client gets one with
// the given timeout; a nil clock uses real time.
func NewUSACEScraper(client *http.Client, timeout time.Duration, clock clockwork.Clock) *USACEScraper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &USACEScraper{
		fetch: newFetcher(client, timeout),
		clock: clock,
	}
}

// FetchReportingAPI retrieves the reservoir reporting API payload
func (s *USACEScraper) FetchReportingAPI(ctx context.Context, apiURL string) (entities.RawDocument, error) {
	log.Printf("Fetching reservoir reporting API")
	return s.document(ctx, apiURL, entities.DocumentJSON, "application/json")
}

// FetchOverview retrieves a reservoir overview web page
func (s *USACEScraper) FetchOverview(ctx context.Context, pageURL string) (entities.RawDocument, error) {
	log.Printf("Fetching reservoir overview page")
	return s.document(ctx, pageURL, entities.DocumentHTML, "text/html")
}

// FetchDailyReport finds the newest report linked from the listing page and
// retrieves it. The link is the first anchor whose text contains linkText.
func (s *USACEScraper) FetchDailyReport(ctx context.Context, listURL, linkText string) (entities.RawDocument, error) {
	log.Printf("Fetching daily report listing page")

	body, base, err := s.fetch.get(ctx, listURL, nil, "text/html")
	if err != nil {
		return entities.RawDocument{}, err
	}

	href, err := FindReportLink(body, base, linkText)
	if err != nil {
		return entities.RawDocument{}, err
	}
	log.Printf("Found daily report link: %s", href)

	kind := entities.DocumentText
	if lower := strings.ToLower(href); strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm") {
		kind = entities.DocumentHTML
	}
	return s.document(ctx, href, kind, "")
}

// FindReportLink returns the absolute URL of the first anchor whose text contains
// linkText, case-insensitively
func FindReportLink(listing []byte, base, linkText string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(listing))
	if err != nil {
		return "", fmt.Errorf("%w: failed to parse report listing: %v", ErrMalformedShape, err)
	}

	needle := strings.ToLower(strings.TrimSpace(linkText))
	var href string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		text := strings.ToLower(strings.Join(strings.Fields(a.Text()), " "))
		if needle != "" && !strings.Contains(text, needle) {
			return true
		}
		href = strings.TrimSpace(a.AttrOr("href", ""))
		return href == ""
	})
	if href == "" {
		return "", fmt.Errorf("%w: no report link matching '%s'", ErrMalformedShape, linkText)
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return href, nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("%w: invalid report link %s: %v", ErrMalformedShape, href, err)
	}
	return baseURL.ResolveReference(ref).String(), nil
}

func (s *USACEScraper) document(ctx context.Context, rawURL string, kind entities.DocumentKind, accept string) (entities.RawDocument, error) {
	body, target, err := s.fetch.get(ctx, rawURL, nil, accept)
	if err != nil {
		return entities.RawDocument{}, err
	}
	log.Printf("Received %d bytes from %s", len(body), target)

	return entities.RawDocument{
		Source:      target,
		Kind:        kind,
		Body:        body,
		RetrievedAt: s.clock.Now(),
	}, nil
}
