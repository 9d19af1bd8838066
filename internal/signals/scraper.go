package signals

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sony/gobreaker"

	"github.com/rewired-gh/transferoracle/internal/logger"
	"github.com/rewired-gh/transferoracle/internal/models"
)

// Scraper defaults.
const (
	DefaultBaseURL   = "https://www.futbolfantasy.com/jugadores"
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// ErrNotFound is returned when the site has no page for a slug.
var ErrNotFound = errors.New("player page not found")

// hierarchyLabels maps the site's role labels onto hierarchy ranks.
var hierarchyLabels = map[string]int{
	"dios":       1,
	"clave":      2,
	"importante": 3,
	"rotacion":   4,
	"revulsivo":  5,
	"reserva":    6,
	"descarte":   7,
}

var (
	probClass  = regexp.MustCompile(`\bprob-\d+\b`)
	percentRe  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	arrowClass = regexp.MustCompile(`^arrow-(\d+)$`)
)

// BreakerSettings controls when the scraper stops calling a failing site.
type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker open.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// DefaultBreakerSettings trips after five consecutive failures for a minute.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{ConsecutiveFailures: 5, OpenTimeout: time.Minute}
}

// Scraper fetches player pages from the signal site and parses them into
// signals. It is safe for concurrent use.
type Scraper struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewScraper creates a scraper for pages under baseURL.
func NewScraper(baseURL string, timeout time.Duration, bs BreakerSettings) *Scraper {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if bs.ConsecutiveFailures == 0 {
		bs = DefaultBreakerSettings()
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "signal-scraper",
		MaxRequests: 1,
		Timeout:     bs.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bs.ConsecutiveFailures
		},
		// A missing page is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithField("breaker", name).Warnf("Circuit breaker changed from %s to %s", from, to)
		},
	})

	return &Scraper{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  DefaultUserAgent,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    cb,
	}
}

// Fetch downloads and parses the page of slug.
func (s *Scraper) Fetch(ctx context.Context, slug string) (*models.ScrapedSignal, error) {
	if slug == "" {
		return nil, errors.New("empty slug")
	}
	body, err := s.breaker.Execute(func() (interface{}, error) {
		return s.fetchPage(ctx, slug)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", slug, err)
	}

	sig, err := Parse(strings.NewReader(body.(string)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", slug, err)
	}
	return sig, nil
}

func (s *Scraper) fetchPage(ctx context.Context, slug string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+slug, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Parse extracts a signal from a player page. Values outside their valid
// range are dropped, so the result always validates. A page without any
// recognizable field yields an empty signal.
func Parse(r io.Reader) (*models.ScrapedSignal, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	return &models.ScrapedSignal{
		Hierarchy:       parseHierarchy(doc),
		PlayProbability: parseProbability(doc),
		FormArrow:       parseFormArrow(doc),
		InjuryRisk:      parseInjuryRisk(doc),
	}, nil
}

func parseHierarchy(doc *goquery.Document) *int {
	label := Slug(doc.Find(".jerarquia-value").First().Text())
	rank, ok := hierarchyLabels[label]
	if !ok {
		return nil
	}
	return &rank
}

// parseProbability returns the highest percentage shown in a prob-N badge.
func parseProbability(doc *goquery.Document) *float64 {
	var best *float64
	doc.Find("span").Each(func(_ int, sel *goquery.Selection) {
		class, _ := sel.Attr("class")
		if !probClass.MatchString(class) {
			return
		}
		m := percentRe.FindStringSubmatch(sel.Text())
		if m == nil {
			return
		}
		pct, err := strconv.ParseFloat(m[1], 64)
		if err != nil || pct > 100 {
			return
		}
		p := pct / 100
		if best == nil || p > *best {
			best = &p
		}
	})
	return best
}

// parseFormArrow returns the highest arrow-N class on the page.
func parseFormArrow(doc *goquery.Document) *int {
	var best *int
	doc.Find("[class]").Each(func(_ int, sel *goquery.Selection) {
		class, _ := sel.Attr("class")
		for _, c := range strings.Fields(class) {
			m := arrowClass.FindStringSubmatch(c)
			if m == nil {
				continue
			}
			n, err := strconv.Atoi(m[1])
			if err != nil || n < models.FormArrowMin || n > models.FormArrowMax {
				continue
			}
			if best == nil || n > *best {
				v := n
				best = &v
			}
		}
	})
	return best
}

// parseInjuryRisk tries the risk box layouts the site has used, most
// specific first.
func parseInjuryRisk(doc *goquery.Document) *models.InjuryRisk {
	for _, label := range injuryRiskCandidates(doc) {
		if risk, ok := models.ParseInjuryRisk(label); ok {
			return &risk
		}
	}
	return nil
}

func injuryRiskCandidates(doc *goquery.Document) []string {
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	add(doc.Find(".riesgo-lesion-2 .rs-cuadros-phone.mt-auto").First().Text())
	if alt, ok := doc.Find(".riesgo-lesion-2 img[alt]").First().Attr("alt"); ok {
		if words := strings.Fields(alt); len(words) > 0 {
			add(words[len(words)-1])
		}
	}
	add(doc.Find(".rs-cuadros-phone.mt-auto").First().Text())

	boxes := doc.Find(".rs-cuadros-phone")
	plain := boxes.FilterFunction(func(_ int, sel *goquery.Selection) bool {
		return sel.Find("strong").Length() == 0
	})
	add(plain.First().Text())
	add(boxes.Last().Text())
	return out
}
