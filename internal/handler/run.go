package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/fucho777/rakuten-price-monitor/internal/apierror"
	"github.com/fucho777/rakuten-price-monitor/internal/monitor"
)

// RunHandler triggers a monitoring pass on demand.
type RunHandler struct {
	pipeline *monitor.Pipeline
}

func NewRunHandler(pipeline *monitor.Pipeline) *RunHandler {
	return &RunHandler{pipeline: pipeline}
}

// Trigger starts a pass in the background. While a pass is already running
// the request is rejected with 409 — overlapping passes over the same
// stores are unsafe. The pipeline enforces the same single-flight rule
// itself, so the pre-check here is only for a friendly status code.
func (h *RunHandler) Trigger(c *gin.Context) {
	if h.pipeline.Running() {
		c.JSON(http.StatusConflict, apierror.New("a pass is already running"))
		return
	}
	go func() {
		if _, err := h.pipeline.Run(context.Background()); err != nil && !errors.Is(err, monitor.ErrRunInProgress) {
			log.Error().Err(err).Msg("manual pass failed")
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "running"})
}

// Health reports liveness.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
