package extract

import (
	"bytes"
	"errors"
	"log"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/abelzeko/riverstats/internal/entities"
)

// ErrMalformedShape means a document does not have the structure a strategy needs.
// Callers treat it like a network failure and degrade the whole source.
var ErrMalformedShape = errors.New("malformed upstream document")

// Strategy extracts one metric from one document shape
type Strategy interface {
	Name() string
	Extract(doc entities.RawDocument, spec entities.MetricSpec) entities.ExtractedReading
}

// Validator is implemented by strategies that can reject a whole document up front
type Validator interface {
	Validate(doc entities.RawDocument) error
}

// ExtractAll runs a strategy for every spec and sanitizes the results
func ExtractAll(s Strategy, doc entities.RawDocument, specs []entities.MetricSpec) []entities.ExtractedReading {
	readings := make([]entities.ExtractedReading, 0, len(specs))
	for _, spec := range specs {
		readings = append(readings, Sanitize(s.Extract(doc, spec)))
	}
	return readings
}

// HTMLScrape extracts readings from a reservoir overview web page
type HTMLScrape struct {
	text     TextExtractor
	selector string
}

// NewHTMLScrape creates an HTML strategy. When selector is set the page is narrowed
// to the first matching element before normalizing.
func NewHTMLScrape(specs []entities.MetricSpec, selector string, opts ...Option) *HTMLScrape {
	return &HTMLScrape{
		text:     NewTextExtractor(specs, opts...),
		selector: selector,
	}
}

// Name implements Strategy
func (h *HTMLScrape) Name() string {
	return "html"
}

// Extract implements Strategy
func (h *HTMLScrape) Extract(doc entities.RawDocument, spec entities.MetricSpec) entities.ExtractedReading {
	prov := entities.Provenance{Strategy: h.Name(), Source: doc.Source}
	return h.text.Extract(Normalize(h.scope(doc)), spec, prov)
}

func (h *HTMLScrape) scope(doc entities.RawDocument) string {
	if h.selector == "" {
		return doc.Text()
	}

	parsed, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		log.Printf("Warning: failed to parse HTML from %s, using whole document: %v", doc.Source, err)
		return doc.Text()
	}

	sel := parsed.Find(h.selector).First()
	if sel.Length() == 0 {
		log.Printf("Warning: selector '%s' matched nothing in %s, using whole document", h.selector, doc.Source)
		return doc.Text()
	}

	scoped, err := goquery.OuterHtml(sel)
	if err != nil {
		return doc.Text()
	}
	return scoped
}

// DailyReportText extracts readings from a plain-text daily report.
// The report is cut down to the section that starts at the reservoir's row.
type DailyReportText struct {
	text         TextExtractor
	hints        []string
	sectionLines int
}

// NewDailyReportText creates a daily report strategy. hints name the reservoir row;
// sectionLines bounds how many lines after it are searched.
func NewDailyReportText(specs []entities.MetricSpec, hints []string, sectionLines int, opts ...Option) *DailyReportText {
	if sectionLines <= 0 {
		sectionLines = 12
	}
	return &DailyReportText{
		text:         NewTextExtractor(specs, opts...),
		hints:        hints,
		sectionLines: sectionLines,
	}
}

// Name implements Strategy
func (d *DailyReportText) Name() string {
	return "daily-report"
}

// Extract implements Strategy
func (d *DailyReportText) Extract(doc entities.RawDocument, spec entities.MetricSpec) entities.ExtractedReading {
	prov := entities.Provenance{Strategy: d.Name(), Source: doc.Source}
	return d.text.Extract(Normalize(d.section(doc.Text())), spec, prov)
}

func (d *DailyReportText) section(report string) string {
	lines := strings.Split(report, "\n")
	for i, line := range lines {
		for _, hint := range d.hints {
			if _, ok := LocateLabel(line, hint); ok {
				end := i + d.sectionLines
				if end > len(lines) {
					end = len(lines)
				}
				return strings.Join(lines[i:end], "\n")
			}
		}
	}
	// No reservoir row, search the whole report
	return report
}
