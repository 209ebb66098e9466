package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fucho777/rakuten-price-monitor/internal/apierror"
	"github.com/fucho777/rakuten-price-monitor/internal/dto"
	"github.com/fucho777/rakuten-price-monitor/internal/model"
	"github.com/fucho777/rakuten-price-monitor/internal/store"
)

// ProductsHandler exposes the watchlist over HTTP.
type ProductsHandler struct {
	catalog *store.Catalog
	history *store.History
}

func NewProductsHandler(catalog *store.Catalog, history *store.History) *ProductsHandler {
	return &ProductsHandler{catalog: catalog, history: history}
}

// List returns every watchlist row.
func (h *ProductsHandler) List(c *gin.Context) {
	products := h.catalog.All()
	resp := dto.ProductListResponse{Total: len(products)}
	for _, p := range products {
		resp.Products = append(resp.Products, dto.NewProductResponse(p))
	}
	c.JSON(http.StatusOK, resp)
}

// Add registers a barcode for monitoring. Re-adding an existing barcode
// re-enables monitoring instead of duplicating the row.
func (h *ProductsHandler) Add(c *gin.Context) {
	var req dto.AddProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	code, err := model.NormalizeBarcode(req.Barcode)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	p := h.catalog.Add(code, req.Name)
	if err := h.catalog.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("failed to persist catalog"))
		return
	}
	c.JSON(http.StatusCreated, dto.NewProductResponse(p))
}

// Get returns one watchlist row.
func (h *ProductsHandler) Get(c *gin.Context) {
	code, err := model.NormalizeBarcode(c.Param("barcode"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	p, ok := h.catalog.Get(code)
	if !ok {
		c.JSON(http.StatusNotFound, apierror.New("product not found"))
		return
	}
	c.JSON(http.StatusOK, dto.NewProductResponse(p))
}

// Unmonitor stops polling a barcode. The row and its state are kept.
func (h *ProductsHandler) Unmonitor(c *gin.Context) {
	code, err := model.NormalizeBarcode(c.Param("barcode"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	if !h.catalog.Unmonitor(code) {
		c.JSON(http.StatusNotFound, apierror.New("product not found"))
		return
	}
	if err := h.catalog.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("failed to persist catalog"))
		return
	}
	c.Status(http.StatusNoContent)
}

// History returns the notification history entry for a barcode.
func (h *ProductsHandler) History(c *gin.Context) {
	code, err := model.NormalizeBarcode(c.Param("barcode"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	entry, ok := h.history.Get(code)
	if !ok {
		c.JSON(http.StatusNotFound, apierror.New("no notification history for product"))
		return
	}
	c.JSON(http.StatusOK, entry)
}
