// Package marketplace queries the Rakuten Ichiba item search API by JAN
// code and reduces the raw result set to a single best observation: the
// cheapest new-condition listing, preferring listings that mention the
// barcode itself.
package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fucho777/rakuten-price-monitor/internal/apperr"
	"github.com/fucho777/rakuten-price-monitor/internal/model"
)

// DefaultBaseURL is the Ichiba item search endpoint.
const DefaultBaseURL = "https://app.rakuten.co.jp/services/api/IchibaItem/Search/20170706"

// usedKeywords mark secondhand listings; matching is case-insensitive.
var usedKeywords = []string{"中古", "used", "ユーズド", "中古品"}

// Searcher produces one observation per barcode. The pipeline depends on
// this interface so tests can inject canned observations.
type Searcher interface {
	Lookup(ctx context.Context, barcode string) (model.Observation, error)
}

// Options configures a Client.
type Options struct {
	AppID       string
	AffiliateID string
	BaseURL     string        // defaults to DefaultBaseURL
	CacheTTL    time.Duration // defaults to 1h
	CacheSize   int           // defaults to 100
	MaxAttempts int           // defaults to 3
	BaseDelay   time.Duration // defaults to 1s, doubles per attempt
}

// Client talks to the Ichiba search API with retry, backoff and a bounded
// response cache.
type Client struct {
	appID       string
	affiliateID string
	baseURL     string
	httpClient  *http.Client
	cache       *searchCache
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(time.Duration)
}

// NewClient builds a client from opts, applying defaults for zero values.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	return &Client{
		appID:       opts.AppID,
		affiliateID: opts.AffiliateID,
		baseURL:     opts.BaseURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		cache:       newSearchCache(opts.CacheTTL, opts.CacheSize),
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		sleep:       time.Sleep,
	}
}

// searchResponse is the subset of the Ichiba payload the monitor consumes.
type searchResponse struct {
	Count int `json:"count"`
	Items []struct {
		Item listing `json:"Item"`
	} `json:"Items"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type listing struct {
	ItemName        string      `json:"itemName"`
	ItemCaption     string      `json:"itemCaption"`
	ItemPrice       json.Number `json:"itemPrice"`
	Availability    int         `json:"availability"`
	ShopName        string      `json:"shopName"`
	ItemURL         string      `json:"itemUrl"`
	AffiliateURL    string      `json:"affiliateUrl"`
	MediumImageURLs []struct {
		ImageURL string `json:"imageUrl"`
	} `json:"mediumImageUrls"`
}

func (l listing) price() int {
	n, err := l.ItemPrice.Int64()
	if err != nil {
		return 0
	}
	return int(n)
}

// Lookup searches for barcode and selects the best listing. A barcode that
// fails validation or missing credentials return a Validation error; when
// the search succeeds but no valid new-condition listing exists, the
// "out of stock, no new listing" sentinel observation is returned — that is
// a business state, not an error.
func (c *Client) Lookup(ctx context.Context, barcode string) (model.Observation, error) {
	code, err := model.NormalizeBarcode(barcode)
	if err != nil {
		return model.Observation{}, err
	}
	if c.appID == "" {
		return model.Observation{}, apperr.Newf(apperr.Validation, "marketplace.Lookup", "RAKUTEN_APP_ID is not configured")
	}

	resp, err := c.search(ctx, code)
	if err != nil {
		return model.Observation{}, err
	}
	if len(resp.Items) == 0 {
		log.Info().Str("jan_code", code).Msg("search returned no items")
		return noListingObservation(code), nil
	}

	items := make([]listing, 0, len(resp.Items))
	for _, it := range resp.Items {
		items = append(items, it.Item)
	}
	best, ok := selectBest(items, code)
	if !ok {
		log.Info().Str("jan_code", code).Msg("no new-condition listing, reporting out of stock")
		return noListingObservation(code), nil
	}

	obs := model.Observation{
		Barcode:      code,
		Name:         best.ItemName,
		Price:        best.price(),
		Availability: model.OutOfStock,
		ShopName:     best.ShopName,
		ItemURL:      best.ItemURL,
		AffiliateURL: best.AffiliateURL,
		IsNewListing: true,
	}
	if best.Availability == 1 {
		obs.Availability = model.InStock
	}
	if obs.AffiliateURL == "" {
		obs.AffiliateURL = best.ItemURL
	}
	if len(best.MediumImageURLs) > 0 {
		obs.ImageURL = best.MediumImageURLs[0].ImageURL
	}

	log.Debug().
		Str("jan_code", code).
		Str("name", obs.Name).
		Int("price", obs.Price).
		Str("shop", obs.ShopName).
		Msg("selected listing")
	return obs, nil
}

// search runs the HTTP request with bounded exponential backoff, consulting
// the cache first. Only transient failures retry.
func (c *Client) search(ctx context.Context, code string) (*searchResponse, error) {
	if resp, ok := c.cache.get(code); ok {
		log.Debug().Str("jan_code", code).Msg("search cache hit")
		return resp, nil
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.doSearch(ctx, code)
		if err == nil {
			c.cache.put(code, resp)
			return resp, nil
		}
		lastErr = err
		if !apperr.IsTransient(err) || attempt == c.maxAttempts {
			break
		}
		wait := c.baseDelay << (attempt - 1)
		log.Warn().
			Str("jan_code", code).
			Int("attempt", attempt).
			Int("max", c.maxAttempts).
			Dur("wait", wait).
			Err(err).
			Msg("search failed, retrying")
		select {
		case <-ctx.Done():
			return nil, apperr.New(apperr.Transient, "marketplace.search", ctx.Err())
		default:
		}
		c.sleep(wait)
	}
	return nil, lastErr
}

func (c *Client) doSearch(ctx context.Context, code string) (*searchResponse, error) {
	params := url.Values{}
	params.Set("applicationId", c.appID)
	if c.affiliateID != "" {
		params.Set("affiliateId", c.affiliateID)
	}
	params.Set("keyword", code)
	params.Set("hits", "30")
	params.Set("sort", "+itemPrice")
	params.Set("availability", "1")
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, apperr.New(apperr.Transient, "marketplace.doSearch", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.New(apperr.Transient, "marketplace.doSearch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Newf(apperr.Transient, "marketplace.doSearch", "api returned status %d", resp.StatusCode)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperr.New(apperr.Transient, "marketplace.doSearch", err)
	}
	if result.Error != "" {
		return nil, apperr.Newf(apperr.Transient, "marketplace.doSearch", "api error %s: %s", result.Error, result.ErrorDescription)
	}
	log.Debug().Str("jan_code", code).Int("count", result.Count).Msg("search completed")
	return &result, nil
}

// selectBest applies the selection algorithm: drop used-keyword listings,
// keep strictly positive prices, prefer listings whose name or caption
// contains the barcode, then take the minimum price with first-encountered
// tie-break.
func selectBest(items []listing, code string) (listing, bool) {
	var valid []listing
	for _, it := range items {
		if it.ItemName == "" || isUsed(it.ItemName) {
			continue
		}
		if it.price() <= 0 {
			continue
		}
		valid = append(valid, it)
	}
	if len(valid) == 0 {
		return listing{}, false
	}

	lower := strings.ToLower(code)
	var preferred []listing
	for _, it := range valid {
		if strings.Contains(strings.ToLower(it.ItemName), lower) ||
			strings.Contains(strings.ToLower(it.ItemCaption), lower) {
			preferred = append(preferred, it)
		}
	}
	pool := valid
	if len(preferred) > 0 {
		pool = preferred
	}

	best := pool[0]
	for _, it := range pool[1:] {
		if it.price() < best.price() {
			best = it
		}
	}
	return best, true
}

func isUsed(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range usedKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// noListingObservation is the "out of stock, no new listing" sentinel.
func noListingObservation(code string) model.Observation {
	return model.Observation{
		Barcode:      code,
		Name:         fmt.Sprintf("%s（新品なし）", code),
		Price:        0,
		Availability: model.OutOfStock,
	}
}
