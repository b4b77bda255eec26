// README: Terminal HTTP surface; registers routes for the kiosk UI and operator tooling.
package http

import (
	"github.com/gin-gonic/gin"

	"kiosk/internal/http/middleware"
	"kiosk/internal/modules/faillog"
	"kiosk/internal/modules/pricing"
	"kiosk/internal/modules/scan"
	"kiosk/internal/modules/trip"
)

type ServerDeps struct {
	Dispatcher *scan.Dispatcher
	Engine     *trip.Service
	Sink       *faillog.Sink
	Pricing    *pricing.Provider
	APIKey     string
}

type Server struct {
	dispatcher *scan.Dispatcher
	engine     *trip.Service
	sink       *faillog.Sink
	pricing    *pricing.Provider
	apiKey     string
}

func NewServer(deps ServerDeps) *Server {
	return &Server{
		dispatcher: deps.Dispatcher,
		engine:     deps.Engine,
		sink:       deps.Sink,
		pricing:    deps.Pricing,
		apiKey:     deps.APIKey,
	}
}

func (s *Server) Routes() *gin.Engine {
	r := gin.New()
	r.Use(middleware.Logging(), middleware.Recovery())

	r.GET("/health", s.handleHealth)

	api := r.Group("/api", middleware.APIKey(s.apiKey))
	api.POST("/scan", s.handleScan)
	api.GET("/cards/:uuid", s.handleCardStatus)
	api.GET("/config", s.handleConfig)
	api.GET("/failed-operations", s.handleExportFailedOps)
	api.DELETE("/failed-operations", s.handleClearFailedOps)

	return r
}
