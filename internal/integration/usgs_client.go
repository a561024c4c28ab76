package integration

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/abelzeko/riverstats/internal/cache"
	"github.com/abelzeko/riverstats/internal/config"
	"github.com/abelzeko/riverstats/internal/entities"
	"github.com/jonboulle/clockwork"
	"github.com/tidwall/gjson"
)

const graphsKey = "graphs"

// USGSClient builds hydrograph links and reads the latest gage heights
type USGSClient struct {
	fetch    fetcher
	cfg      config.USGSConfig
	sites    []config.SiteConfig
	clock    clockwork.Clock
	graphs   *cache.TTL[string, []entities.SiteGraph]
	readings *cache.TTL[string, entities.SiteReading]
}

// NewUSGSClient creates a client for the configured sites
func NewUSGSClient(client *http.Client, cfg config.USGSConfig, sites []config.SiteConfig, timeout time.Duration, clock clockwork.Clock) *USGSClient {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.BucketSize <= 0 {
		cfg.BucketSize = 15 * time.Minute
	}
	if cfg.GraphPeriod <= 0 {
		cfg.GraphPeriod = 7
	}
	if cfg.ParameterCd == "" {
		cfg.ParameterCd = "00065"
	}
	return &USGSClient{
		fetch:    newFetcher(client, timeout),
		cfg:      cfg,
		sites:    sites,
		clock:    clock,
		graphs:   cache.NewTTL[string, []entities.SiteGraph](cfg.GraphsTTL, clock),
		readings: cache.NewTTL[string, entities.SiteReading](cfg.ReadingTTL, clock),
	}
}

// Sites returns the configured gauges
func (c *USGSClient) Sites() []config.SiteConfig {
	return c.sites
}

// SiteGraphs returns graph and page links for every site. Image URLs carry a
// cache-buster that changes once per bucket so kiosk browsers reload them.
func (c *USGSClient) SiteGraphs() []entities.SiteGraph {
	graphs, _ := c.graphs.GetOrLoad(graphsKey, func() ([]entities.SiteGraph, error) {
		log.Printf("Building graph links for %d USGS sites", len(c.sites))
		out := make([]entities.SiteGraph, 0, len(c.sites))
		for _, s := range c.sites {
			out = append(out, c.graph(s))
		}
		return out, nil
	})

	bucket := c.CacheBucket()
	busted := make([]entities.SiteGraph, len(graphs))
	for i, g := range graphs {
		g.ImageURL = WithCacheBuster(g.ImageURL, bucket)
		busted[i] = g
	}
	return busted
}

// CacheBucket is the current time divided into BucketSize slots
func (c *USGSClient) CacheBucket() int64 {
	return c.clock.Now().UnixNano() / int64(c.cfg.BucketSize)
}

// WithCacheBuster appends _cb=<bucket> to an image URL
func WithCacheBuster(imageURL string, bucket int64) string {
	sep := "?"
	if strings.Contains(imageURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_cb=%d", imageURL, sep, bucket)
}

func (c *USGSClient) graph(s config.SiteConfig) entities.SiteGraph {
	imageURL := fmt.Sprintf("%s?agency_cd=USGS&site_no=%s&period=%d&parm_cd=%s",
		c.cfg.GraphURL, url.QueryEscape(s.SiteNo), c.cfg.GraphPeriod, url.QueryEscape(c.cfg.ParameterCd))

	return entities.SiteGraph{
		SiteNo:   s.SiteNo,
		Title:    s.Title,
		ImageURL: imageURL,
		PageURL:  strings.TrimRight(c.cfg.PageURL, "/") + "/USGS-" + s.SiteNo,
	}
}

// GageHeights returns the latest gage height of every configured site.
// Sites missing from the response are absent from the map.
func (c *USGSClient) GageHeights(ctx context.Context) (map[string]entities.SiteReading, error) {
	out := make(map[string]entities.SiteReading, len(c.sites))
	var missing []string
	for _, s := range c.sites {
		if r, _, ok := c.readings.Get(s.SiteNo); ok {
			out[s.SiteNo] = r
			continue
		}
		missing = append(missing, s.SiteNo)
	}
	if len(missing) == 0 {
		log.Printf("Using cached gage heights for %d sites", len(out))
		return out, nil
	}

	params := url.Values{
		"format":      {"json"},
		"sites":       {strings.Join(missing, ",")},
		"parameterCd": {c.cfg.ParameterCd},
		"siteStatus":  {"all"},
	}
	body, target, err := c.fetch.get(ctx, c.cfg.ValuesURL, params, "application/json")
	if err != nil {
		return out, err
	}

	fresh, err := ParseGageHeights(body)
	if err != nil {
		return out, fmt.Errorf("failed to parse gage heights from %s: %w", target, err)
	}
	for site, r := range fresh {
		c.readings.Set(site, r)
		out[site] = r
	}
	log.Printf("Parsed gage heights for %d of %d sites", len(fresh), len(missing))
	return out, nil
}

// ParseGageHeights reads an instantaneous-values payload and returns the latest
// valid value per site. Values equal to the series' noDataValue, NaN and
// infinities are skipped.
func ParseGageHeights(body []byte) (map[string]entities.SiteReading, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: instantaneous values payload is not JSON", ErrMalformedShape)
	}
	series := gjson.GetBytes(body, "value.timeSeries")
	if !series.IsArray() {
		return nil, fmt.Errorf("%w: instantaneous values payload has no timeSeries", ErrMalformedShape)
	}

	out := make(map[string]entities.SiteReading)
	for _, ts := range series.Array() {
		site := ts.Get("sourceInfo.siteCode.0.value").String()
		if site == "" {
			continue
		}
		noData := ts.Get("variable.noDataValue")

		values := ts.Get("values.0.value").Array()
		for i := len(values) - 1; i >= 0; i-- {
			v, err := strconv.ParseFloat(values[i].Get("value").String(), 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || (noData.Exists() && v == noData.Float()) {
				continue
			}
			observed, _ := time.Parse(time.RFC3339, values[i].Get("dateTime").String())
			out[site] = entities.SiteReading{SiteNo: site, Value: entities.Float(v), ObservedAt: observed}
			break
		}
	}
	return out, nil
}
