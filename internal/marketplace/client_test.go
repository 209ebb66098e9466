package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fucho777/rakuten-price-monitor/internal/apperr"
	"github.com/fucho777/rakuten-price-monitor/internal/model"
)

func mkListing(name string, price int, available int) listing {
	return listing{
		ItemName:     name,
		ItemPrice:    json.Number(fmt.Sprintf("%d", price)),
		Availability: available,
	}
}

func TestSelectBestDropsUsedListings(t *testing.T) {
	items := []listing{
		mkListing("【中古】テスト商品 4901234567894", 5000, 1),
		mkListing("テスト商品 USED品", 5500, 1),
		mkListing("テスト商品 4901234567894 新品", 9000, 1),
	}
	best, ok := selectBest(items, "4901234567894")
	require.True(t, ok)
	assert.Equal(t, 9000, best.price())
}

func TestSelectBestPrefersBarcodeMatch(t *testing.T) {
	withCode := mkListing("テスト商品 JAN:4901234567894", 9000, 1)
	cheaperNoCode := mkListing("類似商品", 4000, 1)
	best, ok := selectBest([]listing{cheaperNoCode, withCode}, "4901234567894")
	require.True(t, ok)
	assert.Equal(t, withCode.ItemName, best.ItemName, "barcode mention beats a cheaper unrelated listing")
}

func TestSelectBestMatchesBarcodeInCaption(t *testing.T) {
	inCaption := listing{
		ItemName:    "テスト商品",
		ItemCaption: "JANコード: 4901234567894",
		ItemPrice:   json.Number("8000"),
	}
	other := mkListing("別の商品", 3000, 1)
	best, ok := selectBest([]listing{other, inCaption}, "4901234567894")
	require.True(t, ok)
	assert.Equal(t, 8000, best.price())
}

func TestSelectBestTakesMinimumPrice(t *testing.T) {
	items := []listing{
		mkListing("テスト 4901234567894 A", 9000, 1),
		mkListing("テスト 4901234567894 B", 7000, 1),
		mkListing("テスト 4901234567894 C", 8000, 1),
	}
	best, ok := selectBest(items, "4901234567894")
	require.True(t, ok)
	assert.Equal(t, 7000, best.price())
}

func TestSelectBestRejectsNonPositivePrices(t *testing.T) {
	items := []listing{
		mkListing("テスト 4901234567894", 0, 1),
		{ItemName: "テスト 4901234567894", ItemPrice: json.Number("abc")},
	}
	_, ok := selectBest(items, "4901234567894")
	assert.False(t, ok)
}

func searchPayload(items ...listing) string {
	type wrapped struct {
		Item listing `json:"Item"`
	}
	var ws []wrapped
	for _, it := range items {
		ws = append(ws, wrapped{Item: it})
	}
	data, _ := json.Marshal(map[string]any{
		"count": len(ws),
		"Items": ws,
	})
	return string(data)
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c := NewClient(Options{
		AppID:     "test-app-id",
		BaseURL:   srv.URL,
		BaseDelay: time.Millisecond,
	})
	c.sleep = func(time.Duration) {}
	return c
}

func TestLookupSelectsCheapestNewListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "4901234567894", r.URL.Query().Get("keyword"))
		assert.Equal(t, "test-app-id", r.URL.Query().Get("applicationId"))
		fmt.Fprint(w, searchPayload(
			mkListing("テスト商品 4901234567894", 9000, 1),
			mkListing("【中古】テスト商品 4901234567894", 4000, 1),
		))
	}))
	defer srv.Close()

	obs, err := newTestClient(t, srv).Lookup(context.Background(), "4901234567894")
	require.NoError(t, err)
	assert.Equal(t, 9000, obs.Price)
	assert.Equal(t, model.InStock, obs.Availability)
	assert.True(t, obs.IsNewListing)
}

func TestLookupNoItemsReturnsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"count":0,"Items":[]}`)
	}))
	defer srv.Close()

	obs, err := newTestClient(t, srv).Lookup(context.Background(), "4901234567894")
	require.NoError(t, err)
	assert.Equal(t, "4901234567894（新品なし）", obs.Name)
	assert.Zero(t, obs.Price)
	assert.Equal(t, model.OutOfStock, obs.Availability)
}

func TestLookupOnlyUsedListingsReturnsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, searchPayload(mkListing("【中古品】テスト商品", 4000, 1)))
	}))
	defer srv.Close()

	obs, err := newTestClient(t, srv).Lookup(context.Background(), "4901234567894")
	require.NoError(t, err)
	assert.Equal(t, model.OutOfStock, obs.Availability)
	assert.Zero(t, obs.Price)
}

func TestLookupRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, searchPayload(mkListing("テスト商品 4901234567894", 9000, 1)))
	}))
	defer srv.Close()

	obs, err := newTestClient(t, srv).Lookup(context.Background(), "4901234567894")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 9000, obs.Price)
}

func TestLookupExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Lookup(context.Background(), "4901234567894")
	require.Error(t, err)
	assert.True(t, apperr.IsTransient(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestLookupAPIErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":"wrong_parameter","error_description":"specify valid applicationId"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Lookup(context.Background(), "4901234567894")
	require.Error(t, err)
	assert.ErrorContains(t, err, "wrong_parameter")
}

func TestLookupValidatesBarcode(t *testing.T) {
	c := NewClient(Options{AppID: "test-app-id"})
	_, err := c.Lookup(context.Background(), "12345")
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func TestLookupRequiresAppID(t *testing.T) {
	c := NewClient(Options{})
	_, err := c.Lookup(context.Background(), "4901234567894")
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func TestLookupUsesCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, searchPayload(mkListing("テスト商品 4901234567894", 9000, 1)))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	for i := 0; i < 3; i++ {
		_, err := c.Lookup(context.Background(), "4901234567894")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load(), "repeat lookups within the TTL hit the cache")
}

func TestSearchCacheExpiry(t *testing.T) {
	cache := newSearchCache(time.Hour, 10)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.put("4901234567894", &searchResponse{Count: 1})
	_, ok := cache.get("4901234567894")
	assert.True(t, ok)

	now = now.Add(time.Hour)
	_, ok = cache.get("4901234567894")
	assert.False(t, ok, "entries at or past the TTL are gone")
	assert.Zero(t, cache.len())
}

func TestSearchCacheEvictsOldest(t *testing.T) {
	cache := newSearchCache(time.Hour, 2)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.put("a", &searchResponse{})
	now = now.Add(time.Minute)
	cache.put("b", &searchResponse{})
	now = now.Add(time.Minute)
	cache.put("c", &searchResponse{})

	assert.Equal(t, 2, cache.len())
	_, ok := cache.get("a")
	assert.False(t, ok, "oldest entry evicted first")
	_, ok = cache.get("c")
	assert.True(t, ok)
}
