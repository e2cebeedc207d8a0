package newsharvest

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pevans/newsharvest/logger"
	"github.com/pevans/newsharvest/scraper"
	"golang.org/x/time/rate"
)

// maxRequestBytes caps the descriptor array a client may send.
const maxRequestBytes = 1 << 20

// BatchScraper is what the API needs from a Harvester.
type BatchScraper interface {
	ScrapeWebsites(ctx context.Context, sites []scraper.SiteDescriptor) ([]SiteResult, error)
}

// APIServer is the HTTP front end for scrape runs.
type APIServer struct {
	harvester BatchScraper
	apiKey    string
	metrics   *Metrics
	logger    logger.Logger
	limiter   *rate.Limiter
}

// NewAPIServer creates a server. An empty apiKey disables authentication.
func NewAPIServer(harvester BatchScraper, apiKey string, metrics *Metrics, log logger.Logger) *APIServer {
	if log == nil {
		log = logger.NewNop()
	}
	return &APIServer{
		harvester: harvester,
		apiKey:    apiKey,
		metrics:   metrics,
		logger:    log,
	}
}

// SetRateLimit caps scrape requests at rps per second with the given burst.
// rps <= 0 removes the limit.
func (s *APIServer) SetRateLimit(rps float64, burst int) {
	if rps <= 0 {
		s.limiter = nil
		return
	}
	s.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SetupRouter configures the Gin router with the scrape, health and metrics
// routes.
func (s *APIServer) SetupRouter() *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery(), s.requestLogger())

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found"})
	})
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, ErrorResponse{Error: "method_not_allowed"})
	})

	api := router.Group("/api/v1", s.rateLimit(), s.requireAPIKey())
	api.POST("/scrape", s.HandleScrape)

	router.GET("/healthz", s.HandleHealth)
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	return router
}

// HandleScrape handles POST /api/v1/scrape. The body is a JSON array of
// site descriptors; the reply is the array of site results.
func (s *APIServer) HandleScrape(c *gin.Context) {
	sites, err := decodeSites(http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Details: err.Error()})
		return
	}

	results, err := s.harvester.ScrapeWebsites(c.Request.Context(), sites)
	if err != nil {
		s.logger.Error("Scrape request failed", logger.Int("sites", len(sites)), logger.Err(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "scrape_failed", Details: err.Error()})
		return
	}
	if results == nil {
		results = []SiteResult{}
	}

	c.JSON(http.StatusOK, results)
}

// HandleHealth handles GET /healthz.
func (s *APIServer) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// decodeSites requires the body to be a JSON array of descriptors.
func decodeSites(body io.Reader) ([]scraper.SiteDescriptor, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil, fmt.Errorf("request body must be a JSON array of site descriptors")
	}

	var sites []scraper.SiteDescriptor
	if err := json.Unmarshal(data, &sites); err != nil {
		return nil, fmt.Errorf("invalid site descriptors: %w", err)
	}
	return sites, nil
}

// requireAPIKey checks the bearer token when a key is configured.
func (s *APIServer) requireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.apiKey == "" {
			c.Next()
			return
		}

		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.apiKey)) != 1 {
			c.Header("WWW-Authenticate", `Bearer realm="newsharvest"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "unauthorized",
				Details: "missing or invalid API key",
			})
			return
		}
		c.Next()
	}
}

// rateLimit rejects requests beyond the configured rate with 429.
func (s *APIServer) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter != nil && !s.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate_limited"})
			return
		}
		c.Next()
	}
}

// requestLogger logs one line per request.
func (s *APIServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("HTTP request",
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("duration", time.Since(start)),
		)
	}
}

// Server returns an http.Server for addr. There is no write timeout since
// a scrape run can take minutes.
func (s *APIServer) Server(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
