// Package server exposes a journal over HTTP: report listing, record
// review, per-key series, rendered charts, and a websocket feed of live
// ingest events.
package server

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coolbeans/labtrail/pkg/chart"
	"github.com/coolbeans/labtrail/pkg/journal"
	"github.com/coolbeans/labtrail/pkg/review"
	"github.com/coolbeans/labtrail/pkg/watch"
)

// Server holds the gin engine and its dependencies.
type Server struct {
	engine  *gin.Engine
	journal *journal.Journal
	hub     *Hub
	addr    string
}

// New creates a Server over the given journal. The events channel feeds
// the websocket live feed; nil means no live feed, the rest of the API
// still works.
func New(j *journal.Journal, events <-chan watch.Event, addr string) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:  engine,
		journal: j,
		hub:     NewHub(events),
		addr:    addr,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.handleHealth)

	api := s.engine.Group("/api")
	api.GET("/reports", s.handleListReports)
	api.GET("/reports/:id", s.handleGetReport)
	api.POST("/reports/:id/patches", s.handleSavePatches)
	api.GET("/keys", s.handleKeys)
	api.GET("/series/:key", s.handleSeries)

	s.engine.GET("/chart/:key", s.handleChart)
	s.engine.GET("/ws", s.handleWebSocket)
}

// Handler exposes the routed engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start runs the event hub and the HTTP listener until the context is
// cancelled, then shuts the listener down.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Start(ctx)

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		return err
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	stats := s.journal.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"total_reports":      stats.TotalReports,
		"total_measurements": stats.TotalMeasurements,
		"flagged":            stats.FlaggedCount,
		"dropped_events":     s.hub.Dropped(),
	})
}

func (s *Server) handleListReports(c *gin.Context) {
	c.JSON(http.StatusOK, s.journal.ListReports())
}

func (s *Server) handleGetReport(c *gin.Context) {
	id := c.Param("id")
	entry := s.journal.GetReport(id)
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found: " + id})
		return
	}

	records, err := s.journal.Records(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	source, err := s.journal.SourceText(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"report":  entry,
		"records": records,
		"raw":     string(source),
	})
}

func (s *Server) handleSavePatches(c *gin.Context) {
	id := c.Param("id")
	if s.journal.GetReport(id) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found: " + id})
		return
	}

	var patches []review.Patch
	if err := c.ShouldBindJSON(&patches); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid patch list: " + err.Error()})
		return
	}

	if err := s.journal.SavePatches(id, patches); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	records, err := s.journal.Records(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"report":  s.journal.GetReport(id),
		"records": records,
	})
}

func (s *Server) handleKeys(c *gin.Context) {
	keys, err := s.journal.Keys()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, keys)
}

func (s *Server) handleSeries(c *gin.Context) {
	key := c.Param("key")
	series, err := s.journal.Series(key)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(series) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no measurements recorded for " + key})
		return
	}
	c.JSON(http.StatusOK, series)
}

func (s *Server) handleChart(c *gin.Context) {
	var buf bytes.Buffer
	if err := chart.RenderKey(&buf, s.journal, c.Param("key")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}
