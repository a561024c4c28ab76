package integration

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/abelzeko/riverstats/internal/entities"
	"github.com/jonboulle/clockwork"
	"github.com/tidwall/gjson"
)

// CWMSClient reads the USACE CWMS Data API time-series catalog
type CWMSClient struct {
	fetch   fetcher
	baseURL string
	office  string
	clock   clockwork.Clock
}

// NewCWMSClient creates a catalog client for one district office
func NewCWMSClient(client *http.Client, baseURL, office string, timeout time.Duration, clock clockwork.Clock) *CWMSClient {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CWMSClient{
		fetch:   newFetcher(client, timeout),
		baseURL: strings.TrimRight(baseURL, "/"),
		office:  office,
		clock:   clock,
	}
}

// Catalog lists time-series names matching a name-like pattern such as %BROK1%
func (c *CWMSClient) Catalog(ctx context.Context, nameLike string) ([]string, error) {
	params := url.Values{
		"office":    {c.office},
		"name-like": {nameLike},
		"page-size": {"1000"},
	}
	body, target, err := c.fetch.get(ctx, c.baseURL+"/catalog/TIMESERIES", params, "application/json")
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: catalog response from %s is not JSON", ErrMalformedShape, target)
	}

	entries := gjson.GetBytes(body, "entries")
	if !entries.IsArray() {
		return nil, fmt.Errorf("%w: catalog response from %s has no entries", ErrMalformedShape, target)
	}

	var names []string
	for _, e := range entries.Array() {
		if name := e.Get("name").String(); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// Discover collects the series names of every location hint. Failing hints are
// skipped; an error is returned only when all of them fail.
func (c *CWMSClient) Discover(ctx context.Context, hints []string) ([]string, error) {
	seen := make(map[string]bool)
	var names []string
	var lastErr error
	failed := 0

	for _, hint := range hints {
		found, err := c.Catalog(ctx, "%"+hint+"%")
		if err != nil {
			log.Printf("Warning: catalog lookup for '%s' failed: %v", hint, err)
			lastErr = err
			failed++
			continue
		}
		for _, n := range found {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}

	if len(hints) > 0 && failed == len(hints) {
		return nil, lastErr
	}
	sort.Strings(names)
	log.Printf("Discovered %d time series for %v", len(names), hints)
	return names, nil
}

// FetchSeries retrieves the values of one series between begin and end
func (c *CWMSClient) FetchSeries(ctx context.Context, name string, begin, end time.Time) (entities.RawDocument, error) {
	params := url.Values{
		"office":    {c.office},
		"name":      {name},
		"begin":     {begin.UTC().Format(time.RFC3339)},
		"end":       {end.UTC().Format(time.RFC3339)},
		"page-size": {"10000"},
		"format":    {"json"},
	}
	body, target, err := c.fetch.get(ctx, c.baseURL+"/timeseries", params, "application/json")
	if err != nil {
		return entities.RawDocument{}, err
	}

	return entities.RawDocument{
		Source:      target,
		Kind:        entities.DocumentJSON,
		Body:        body,
		RetrievedAt: c.clock.Now(),
	}, nil
}

// FetchRecent retrieves the last days of a series ending now
func (c *CWMSClient) FetchRecent(ctx context.Context, name string, days int) (entities.RawDocument, error) {
	end := c.clock.Now()
	return c.FetchSeries(ctx, name, end.AddDate(0, 0, -days), end)
}

// PickBest returns the name containing every needle, preferring instantaneous
// and short-interval series. Needles match case-insensitively.
func PickBest(names []string, needles []string) (string, bool) {
	best, bestRank := "", -1
	for _, n := range names {
		s := strings.ToLower(n)
		ok := true
		for _, needle := range needles {
			if !strings.Contains(s, strings.ToLower(needle)) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}

		rank := 0
		if strings.Contains(s, ".inst") {
			rank += 3
		}
		if strings.Contains(s, ".15minute") || strings.Contains(s, ".15-min") {
			rank += 2
		}
		if strings.Contains(s, ".1hour") {
			rank++
		}

		// Ties go to the lexically greater name
		if rank > bestRank || (rank == bestRank && n > best) {
			best, bestRank = n, rank
		}
	}
	return best, bestRank >= 0
}

// ResolveSeries tries each needle set in order and returns the first match
func ResolveSeries(names []string, alternatives [][]string) (string, bool) {
	for _, needles := range alternatives {
		if name, ok := PickBest(names, needles); ok {
			return name, true
		}
	}
	return "", false
}
