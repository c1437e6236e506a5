package adapters

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ayubfarah/dealer-ops-core/internal/inventory"
)

// RegexExtractor implements inventory.Extractor with a small set of
// patterns tolerant of the HTML variance across scraped dealer sites.
// No HTML-parsing library is wired anywhere in this codebase's
// dependency stack, so link/field extraction is done with regexp
// against the raw markup rather than a DOM walk.
type RegexExtractor struct {
	vdpLinkPattern *regexp.Regexp
	vinPattern     *regexp.Regexp
	yearPattern    *regexp.Regexp
	makePattern    *regexp.Regexp
	modelPattern   *regexp.Regexp
	trimPattern    *regexp.Regexp
	pricePattern   *regexp.Regexp
	odoPattern     *regexp.Regexp
	stockPattern   *regexp.Regexp
	imagePattern   *regexp.Regexp
	carfaxPattern  *regexp.Regexp
}

func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{
		vdpLinkPattern: regexp.MustCompile(`(?i)<a[^>]+href="([^"]+/vehicle/[^"]+)"`),
		vinPattern:     regexp.MustCompile(`(?i)data-vin="([A-HJ-NPR-Z0-9]{17})"`),
		yearPattern:    regexp.MustCompile(`(?i)data-year="(\d{4})"`),
		makePattern:    regexp.MustCompile(`(?i)data-make="([^"]+)"`),
		modelPattern:   regexp.MustCompile(`(?i)data-model="([^"]+)"`),
		trimPattern:    regexp.MustCompile(`(?i)data-trim="([^"]+)"`),
		pricePattern:   regexp.MustCompile(`(?i)data-price="([0-9.]+)"`),
		odoPattern:     regexp.MustCompile(`(?i)data-odometer="(\d+)"`),
		stockPattern:   regexp.MustCompile(`(?i)data-stock="([^"]+)"`),
		imagePattern:   regexp.MustCompile(`(?i)<img[^>]+class="[^"]*vdp-photo[^"]*"[^>]+src="([^"]+)"`),
		carfaxPattern:  regexp.MustCompile(`(?i)href="([^"]*carfax[^"]*)"`),
	}
}

// ExtractVDPLinks implements inventory.Extractor.
func (e *RegexExtractor) ExtractVDPLinks(html string) ([]inventory.VDPLink, error) {
	matches := e.vdpLinkPattern.FindAllStringSubmatch(html, -1)
	links := make([]inventory.VDPLink, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		url := m[1]
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		links = append(links, inventory.VDPLink{URL: url})
	}
	return links, nil
}

// ExtractVehicle implements inventory.Extractor.
func (e *RegexExtractor) ExtractVehicle(html string) (inventory.ScrapedVehicle, error) {
	price, _ := strconv.ParseFloat(firstMatch(e.pricePattern, html), 64)
	year, _ := strconv.Atoi(firstMatch(e.yearPattern, html))
	odo, _ := strconv.Atoi(firstMatch(e.odoPattern, html))

	images := e.imagePattern.FindAllStringSubmatch(html, -1)
	imageURLs := make([]string, 0, len(images))
	for _, m := range images {
		imageURLs = append(imageURLs, m[1])
	}

	return inventory.ScrapedVehicle{
		VIN:         strings.ToUpper(firstMatch(e.vinPattern, html)),
		Year:        year,
		Make:        firstMatch(e.makePattern, html),
		Model:       firstMatch(e.modelPattern, html),
		Trim:        firstMatch(e.trimPattern, html),
		Price:       price,
		Odometer:    odo,
		StockNumber: firstMatch(e.stockPattern, html),
		Images:      imageURLs,
		CarfaxURL:   firstMatch(e.carfaxPattern, html),
	}, nil
}

func firstMatch(pattern *regexp.Regexp, html string) string {
	m := pattern.FindStringSubmatch(html)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
