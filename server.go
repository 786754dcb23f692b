package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// allowedVideoExtensions is the upload allowlist.
var allowedVideoExtensions = map[string]bool{
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
}

// Server wires the HTTP surface onto the feed registry.
type Server struct {
	cfg      *Config
	registry *Registry
	metrics  *Metrics
}

func newServer(cfg *Config, registry *Registry, metrics *Metrics) *Server {
	return &Server{cfg: cfg, registry: registry, metrics: metrics}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()
	r.Use(cors.Default())

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	r.GET("/video/:feed", s.handleVideo)
	r.POST("/upload/:feed", s.handleUpload)
	r.POST("/start/:feed", s.handleStart)
	r.POST("/stop/:feed", s.handleStop)
	r.POST("/roi/:feed", s.handleSetROI)
	r.GET("/stats/:feed", s.handleStats)
	r.GET("/alerts/:feed", s.handleAlerts)
	r.GET("/history/:feed", s.handleHistory)
	r.GET("/history", s.handleAllHistories)

	return r
}

// fail writes the uniform failure envelope.
func fail(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"success": false, "message": message})
}

// feedParam resolves the :feed path parameter against the registry.
func (s *Server) feedParam(c *gin.Context) (*Feed, bool) {
	index, err := strconv.Atoi(c.Param("feed"))
	if err != nil {
		fail(c, "invalid feed index")
		return nil, false
	}
	feed, err := s.registry.Feed(index)
	if err != nil {
		fail(c, err.Error())
		return nil, false
	}
	return feed, true
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "crowdwatch-worker",
	})
}

// handleVideo serves the continuous multipart JPEG stream for one feed.
func (s *Server) handleVideo(c *gin.Context) {
	feed, ok := s.feedParam(c)
	if !ok {
		return
	}

	c.Header("Content-Type", fmt.Sprintf("multipart/x-mixed-replace; boundary=%s", streamBoundary))
	c.Header("Cache-Control", "no-cache")

	flush := func() { c.Writer.Flush() }
	if err := s.registry.Stream(feed.index, c.Writer, flush, c.Request.Context().Done()); err != nil {
		log.Warn().Err(err).Int("feed", feed.index).Msg("Streaming ended with error")
	}
}

// handleUpload stores a video file under a unique name and records it against
// the feed. The previous upload path, if any, is replaced.
func (s *Server) handleUpload(c *gin.Context) {
	feed, ok := s.feedParam(c)
	if !ok {
		return
	}

	file, err := c.FormFile("videoFile")
	if err != nil {
		fail(c, "no file part in the request")
		return
	}
	if file.Filename == "" {
		fail(c, "no selected file")
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedVideoExtensions[ext] {
		fail(c, "file type not allowed")
		return
	}

	base := strings.TrimSuffix(filepath.Base(file.Filename), filepath.Ext(file.Filename))
	stored := fmt.Sprintf("%s_%s%s", base, uuid.New().String()[:8], ext)
	dest := filepath.Join(s.cfg.UploadDir, stored)

	if err := c.SaveUploadedFile(file, dest); err != nil {
		fail(c, fmt.Sprintf("error saving file: %v", err))
		return
	}
	feed.SetUploadPath(dest)

	payload := gin.H{
		"success":  true,
		"message":  "File uploaded successfully!",
		"filepath": dest,
	}
	if info, err := ffmpeg.Probe(dest); err != nil {
		log.Warn().Err(err).Str("path", dest).Msg("Failed to probe uploaded video")
	} else {
		payload["probe"] = json.RawMessage(info)
	}

	log.Info().Int("feed", feed.index).Str("path", dest).Msg("Video uploaded")
	c.JSON(http.StatusOK, payload)
}

type startRequest struct {
	SourceType string `json:"source_type"`
	SourcePath string `json:"source_path"`
}

func (s *Server) handleStart(c *gin.Context) {
	feed, ok := s.feedParam(c)
	if !ok {
		return
	}

	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, fmt.Sprintf("invalid request: %v", err))
		return
	}

	if err := s.registry.Start(feed.index, req.SourceType, req.SourcePath); err != nil {
		fail(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Processing started."})
}

func (s *Server) handleStop(c *gin.Context) {
	feed, ok := s.feedParam(c)
	if !ok {
		return
	}
	if err := s.registry.Stop(feed.index); err != nil {
		fail(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Processing stop signal sent."})
}

type roiRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func (s *Server) handleSetROI(c *gin.Context) {
	feed, ok := s.feedParam(c)
	if !ok {
		return
	}

	var req roiRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, fmt.Sprintf("invalid request: %v", err))
		return
	}

	roi := feed.proc.SetROI(req.X, req.Y, req.W, req.H)
	log.Info().Int("feed", feed.index).
		Int("x", roi.X).Int("y", roi.Y).Int("w", roi.W).Int("h", roi.H).
		Msg("ROI set")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "ROI set.", "roi": roi})
}

func (s *Server) handleStats(c *gin.Context) {
	feed, ok := s.feedParam(c)
	if !ok {
		return
	}

	stats := feed.proc.LatestStats()
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"alert_message": stats.Alert,
		"people_count":  stats.PeopleCount,
		"density":       stats.Density,
		"pred_density":  stats.PredictedDensity,
		"alert":         stats.Alert,
		"est_people":    stats.EstimatedPeople,
	})
}

func (s *Server) handleAlerts(c *gin.Context) {
	feed, ok := s.feedParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "alerts": feed.proc.AlertRecords()})
}

// historyEntries renders a feed's head-count buckets, tagged with the feed
// index.
func historyEntries(feed *Feed) []gin.H {
	buckets := feed.proc.HeadCounts()
	entries := make([]gin.H, 0, len(buckets))
	for _, b := range buckets {
		entries = append(entries, gin.H{
			"time":         b.Interval.Format(alertTimeLayout),
			"people_count": b.Count,
			"webcam_index": feed.index,
		})
	}
	return entries
}

func (s *Server) handleHistory(c *gin.Context) {
	feed, ok := s.feedParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "history": historyEntries(feed)})
}

func (s *Server) handleAllHistories(c *gin.Context) {
	all := make([]gin.H, 0, s.cfg.FeedCount)
	for i := 0; i < s.cfg.FeedCount; i++ {
		feed, err := s.registry.Feed(i)
		if err != nil {
			continue
		}
		all = append(all, gin.H{"feed": i, "history": historyEntries(feed)})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "all_histories": all})
}
