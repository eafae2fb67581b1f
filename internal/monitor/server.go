package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/danmuck/picoctl/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const version = "0.1.0"

// Server serves the monitor API for one picoctl run.
type Server struct {
	ID       string
	Addr     string
	Appeared time.Time

	store  *Store
	router *gin.Engine
	logger zerolog.Logger
}

// New builds the router with recovery, request logging, metrics, and CORS.
func New(id, addr string, corsOrigins []string, store *Store) *Server {
	observability.RegisterMetrics()
	logger := observability.ComponentLogger("monitor")

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	if store == nil {
		store = NewStore(0)
	}
	s := &Server{
		ID:       id,
		Addr:     addr,
		Appeared: time.Now(),
		store:    store,
		router:   r,
		logger:   logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

func (s *Server) Store() *Store {
	return s.store
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.ID,
			"version": version,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/ready", func(c *gin.Context) {
		_, _, ready := s.store.Device()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":   ready,
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.ID,
			"version": version,
		})
	})

	s.router.GET("/device", func(c *gin.Context) {
		info, port, ok := s.store.Device()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no instrument identified"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"device":  info.Device.String(),
			"version": info.Raw,
			"port":    port,
		})
	})

	s.router.GET("/bursts", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"bursts": s.store.Bursts()})
	})

	s.router.GET("/bursts/latest", func(c *gin.Context) {
		sum, ok := s.store.LatestBurst()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no burst finished yet"})
			return
		}
		c.JSON(http.StatusOK, sum)
	})

	s.router.GET("/bursts/:id", func(c *gin.Context) {
		sum, ok := s.store.Burst(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "burst not found"})
			return
		}
		c.JSON(http.StatusOK, sum)
	})

	s.router.GET("/measurements", func(c *gin.Context) {
		limit, err := queryInt(c, "limit", 100)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		curve, err := queryInt(c, "curve", -1)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"measurements": s.store.Measurements(limit, curve),
			"dropped":      s.store.Dropped(),
		})
	})
}

var errBadQuery = errors.New("query parameter must be an integer")

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", errBadQuery, key)
	}
	return v, nil
}

// Serve listens on Addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.Addr).Msg("monitor listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
