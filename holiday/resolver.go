package holiday

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/warp/hours-ledger/calendar"
)

//go:embed data/*.json
var dataFS embed.FS

// bundledCountry is the country the embedded tables describe.
const bundledCountry = "KR"

const DefaultBaseURL = "https://date.nager.at/api/v3"

// Options configures a Resolver.
type Options struct {
	Country            string
	BaseURL            string
	HTTPClient         *http.Client
	SubstituteKeywords []string
	Logger             *log.Logger
}

// Resolver maps a year to its holidays, caching successful lookups.
type Resolver struct {
	country  string
	baseURL  string
	client   *http.Client
	keywords []string
	log      *log.Logger

	mu    sync.RWMutex
	cache map[int]Set
}

func NewResolver(opts Options) *Resolver {
	if opts.Country == "" {
		opts.Country = bundledCountry
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if len(opts.SubstituteKeywords) == 0 {
		opts.SubstituteKeywords = DefaultSubstituteKeywords
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Resolver{
		country:  strings.ToUpper(opts.Country),
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		client:   opts.HTTPClient,
		keywords: opts.SubstituteKeywords,
		log:      opts.Logger.WithPrefix("holiday"),
		cache:    make(map[int]Set),
	}
}

// Year returns the holidays of year. It never fails: on a lookup error the
// result is an empty Set and nothing is cached, so the next call retries.
func (r *Resolver) Year(ctx context.Context, year int) Set {
	r.mu.RLock()
	s, ok := r.cache[year]
	r.mu.RUnlock()
	if ok {
		return s
	}

	s, err := r.load(ctx, year)
	if err != nil {
		r.log.Warn("holiday lookup failed, using empty set", "year", year, "country", r.country, "err", err)
		return Set{}
	}

	r.mu.Lock()
	r.cache[year] = s
	r.mu.Unlock()
	return s
}

// Month returns the holidays of ym.
func (r *Resolver) Month(ctx context.Context, ym calendar.YearMonth) Set {
	return r.Year(ctx, ym.Year).InMonth(ym)
}

// Refresh reloads year and replaces the cached set on success.
func (r *Resolver) Refresh(ctx context.Context, year int) error {
	s, err := r.load(ctx, year)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.cache[year] = s
	r.mu.Unlock()
	return nil
}

// Bundled reports whether year is served from the embedded tables.
func (r *Resolver) Bundled(year int) bool {
	if r.country != bundledCountry {
		return false
	}
	_, err := dataFS.ReadFile(bundledFile(year))
	return err == nil
}

func (r *Resolver) load(ctx context.Context, year int) (Set, error) {
	if r.Bundled(year) {
		return r.loadBundled(year)
	}
	return r.fetch(ctx, year)
}

func (r *Resolver) loadBundled(year int) (Set, error) {
	data, err := dataFS.ReadFile(bundledFile(year))
	if err != nil {
		return nil, fmt.Errorf("read bundled holidays %d: %w", year, err)
	}
	var list []Raw
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode bundled holidays %d: %w", year, err)
	}
	return Merge(list, r.keywords), nil
}

// nagerHoliday is one element of the PublicHolidays response.
type nagerHoliday struct {
	Date      string `json:"date"`
	LocalName string `json:"localName"`
	Name      string `json:"name"`
}

func (r *Resolver) fetch(ctx context.Context, year int) (Set, error) {
	url := fmt.Sprintf("%s/PublicHolidays/%d/%s", r.baseURL, year, r.country)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch holidays: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("holiday API error: %d", resp.StatusCode)
	}

	var list []nagerHoliday
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode holidays: %w", err)
	}

	raw := make([]Raw, 0, len(list))
	for _, h := range list {
		name := h.LocalName
		if name == "" {
			name = h.Name
		}
		raw = append(raw, Raw{
			Date:       h.Date,
			Name:       name,
			Substitute: hasKeyword(h.Name, r.keywords),
		})
	}
	r.log.Debug("fetched holidays", "year", year, "country", r.country, "count", len(raw))
	return Merge(raw, r.keywords), nil
}

func bundledFile(year int) string {
	return fmt.Sprintf("data/holidays-%d.json", year)
}
