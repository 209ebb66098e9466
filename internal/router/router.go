package router

import (
	"github.com/gin-gonic/gin"

	"github.com/fucho777/rakuten-price-monitor/internal/handler"
	"github.com/fucho777/rakuten-price-monitor/internal/middleware"
	"github.com/fucho777/rakuten-price-monitor/internal/monitor"
	"github.com/fucho777/rakuten-price-monitor/internal/store"
)

// New wires the watchlist API and returns a configured Gin engine.
func New(catalog *store.Catalog, history *store.History, pipeline *monitor.Pipeline) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())

	products := handler.NewProductsHandler(catalog, history)
	run := handler.NewRunHandler(pipeline)

	r.GET("/health", handler.Health)

	api := r.Group("/api")
	{
		api.GET("/products", products.List)
		api.POST("/products", products.Add)
		api.GET("/products/:barcode", products.Get)
		api.DELETE("/products/:barcode", products.Unmonitor)
		api.GET("/products/:barcode/history", products.History)
		api.POST("/run", run.Trigger)
	}

	return r
}
