package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fucho777/rakuten-price-monitor/internal/dto"
	"github.com/fucho777/rakuten-price-monitor/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestAPI(t *testing.T) (*gin.Engine, *store.Catalog, *store.History) {
	t.Helper()
	dir := t.TempDir()
	catalog := store.NewCatalog(dir)
	require.NoError(t, catalog.Load())
	history := store.NewHistory(dir)
	require.NoError(t, history.Load())

	h := NewProductsHandler(catalog, history)
	r := gin.New()
	r.GET("/api/products", h.List)
	r.POST("/api/products", h.Add)
	r.GET("/api/products/:barcode", h.Get)
	r.DELETE("/api/products/:barcode", h.Unmonitor)
	r.GET("/api/products/:barcode/history", h.History)
	return r, catalog, history
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAddProduct(t *testing.T) {
	r, catalog, _ := newTestAPI(t)

	w := doRequest(r, http.MethodPost, "/api/products", `{"jan_code":"4901234567894","product_name":"テスト商品"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp dto.ProductResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "4901234567894", resp.Barcode)
	assert.Equal(t, "テスト商品", resp.Name)
	assert.True(t, resp.Monitored)

	p, ok := catalog.Get("4901234567894")
	require.True(t, ok)
	assert.True(t, p.Monitored)
}

func TestAddProductNormalizesBarcode(t *testing.T) {
	r, catalog, _ := newTestAPI(t)

	w := doRequest(r, http.MethodPost, "/api/products", `{"jan_code":"4-901234-567894"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	_, ok := catalog.Get("4901234567894")
	assert.True(t, ok)
}

func TestAddProductRejectsInvalidBarcode(t *testing.T) {
	r, _, _ := newTestAPI(t)

	for _, body := range []string{
		`{"jan_code":"12345"}`,
		`{"jan_code":"490123456789X"}`,
		`{"product_name":"コードなし"}`,
		`not json`,
	} {
		w := doRequest(r, http.MethodPost, "/api/products", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body=%s", body)
	}
}

func TestListProducts(t *testing.T) {
	r, catalog, _ := newTestAPI(t)
	catalog.Add("4901234567894", "テスト商品")
	catalog.Add("49123456", "別の商品")

	w := doRequest(r, http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.ProductListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Products, 2)
	assert.Equal(t, "4901234567894", resp.Products[0].Barcode)
}

func TestGetProduct(t *testing.T) {
	r, catalog, _ := newTestAPI(t)
	catalog.Add("4901234567894", "テスト商品")

	w := doRequest(r, http.MethodGet, "/api/products/4901234567894", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodGet, "/api/products/4999999999999", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, http.MethodGet, "/api/products/bogus", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnmonitorProduct(t *testing.T) {
	r, catalog, _ := newTestAPI(t)
	catalog.Add("4901234567894", "テスト商品")

	w := doRequest(r, http.MethodDelete, "/api/products/4901234567894", "")
	require.Equal(t, http.StatusNoContent, w.Code)

	// The row survives with monitoring off
	p, ok := catalog.Get("4901234567894")
	require.True(t, ok)
	assert.False(t, p.Monitored)

	w = doRequest(r, http.MethodDelete, "/api/products/4999999999999", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProductHistory(t *testing.T) {
	r, _, history := newTestAPI(t)
	history.Record("4901234567894", "テスト商品", 9000, time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local))

	w := doRequest(r, http.MethodGet, "/api/products/4901234567894/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"notification_count":1`)

	w = doRequest(r, http.MethodGet, "/api/products/49123456/history", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
