// README: HTTP handlers for scans, card status, configuration, and the failure backlog.
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"kiosk/internal/modules/scan"
	"kiosk/internal/modules/trip"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// handleScan is the UI's single entry point for tap events. The outcome is
// always 200: rejection is a display state, not a transport failure.
func (s *Server) handleScan(c *gin.Context) {
	var req scan.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Screen == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing screen"})
		return
	}
	out := s.dispatcher.Dispatch(c.Request.Context(), req)
	c.JSON(http.StatusOK, out)
}

// handleCardStatus is a read-only debug/status view; the UI has no mutation
// path here.
func (s *Server) handleCardStatus(c *gin.Context) {
	st, err := s.engine.CardStatus(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		if errors.Is(err, trip.ErrNoCard) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing card uuid"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	resp := gin.H{
		"uuid":            st.UUID,
		"balance":         st.Balance,
		"has_active_trip": st.HasActiveTrip(),
	}
	if st.HasActiveTrip() {
		resp["active_trip"] = st.ActiveTrip
	}
	c.JSON(http.StatusOK, resp)
}

// handleConfig reports the configuration view for diagnostics, including
// whether the terminal booted from the static snapshot.
func (s *Server) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"stations":        s.pricing.Stations(),
		"minimum_fare":    s.pricing.MinimumFare(),
		"fare_pairs":      s.pricing.Table().Len(),
		"started_offline": s.pricing.StartedOffline(),
	})
}

func (s *Server) handleExportFailedOps(c *gin.Context) {
	ops, err := s.sink.ExportAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(ops), "operations": ops})
}

// handleClearFailedOps wipes the backlog. Operator-invoked only, after the
// exported operations were reconciled out of band.
func (s *Server) handleClearFailedOps(c *gin.Context) {
	if err := s.sink.Clear(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.Status(http.StatusNoContent)
}
