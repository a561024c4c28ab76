package integration

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout is used when a client is created without one
const DefaultTimeout = 20 * time.Second

const userAgent = "RiverStats/1.0"

// maxBodySize caps upstream responses
const maxBodySize = 16 << 20

// fetcher performs GET requests with a fixed timeout
type fetcher struct {
	client *http.Client
}

func newFetcher(client *http.Client, timeout time.Duration) fetcher {
	if client == nil {
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return fetcher{client: client}
}

// get fetches rawURL with params appended and returns the body and final URL
func (f fetcher) get(ctx context.Context, rawURL string, params url.Values, accept string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, rawURL, fmt.Errorf("%w: invalid url %s: %v", ErrNetwork, rawURL, err)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	target := u.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, target, fmt.Errorf("%w: failed to build request for %s: %v", ErrNetwork, target, err)
	}
	req.Header.Set("User-Agent", userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	log.Printf("Sending HTTP request to %s", target)
	res, err := f.client.Do(req)
	if err != nil {
		log.Printf("Error fetching %s: %v", target, err)
		return nil, target, fmt.Errorf("%w: failed to fetch %s: %v", ErrNetwork, target, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		log.Printf("Received unexpected status code: %d %s", res.StatusCode, res.Status)
		return nil, target, fmt.Errorf("%w: unexpected status code from %s: %s", ErrNetwork, target, res.Status)
	}
	log.Printf("Successfully received HTTP response with status: %s", res.Status)

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		return nil, target, fmt.Errorf("%w: failed to read response from %s: %v", ErrNetwork, target, err)
	}
	return body, target, nil
}
