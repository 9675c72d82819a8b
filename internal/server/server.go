// Package server exposes the consumer admin HTTP surface.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"image/png"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	logs "github.com/danmuck/shmframe/internal/logging"
	"github.com/danmuck/shmframe/internal/observability"
)

const version = "0.1.0"

type Server struct {
	name     string
	addr     string
	state    *State
	router   *gin.Engine
	appeared time.Time
}

func New(name, addr string, corsOrigins []string, state *State) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(observability.ComponentLogger(name, "http")))
	r.Use(observability.RequestMetricsMiddleware(name))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		name:     name,
		addr:     addr,
		state:    state,
		router:   r,
		appeared: time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"service": s.name,
			"version": version,
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		ready := s.state.Negotiated()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"ready": ready, "service": s.name})
	})

	s.router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.state.Snapshot())
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/frame/latest", s.latestFrame)
}

// latestFrame renders one plane of the most recent frame as PNG or JPEG.
func (s *Server) latestFrame(c *gin.Context) {
	f := s.state.LatestFrame()
	if f == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no frame decoded yet"})
		return
	}
	plane, err := strconv.Atoi(c.DefaultQuery("plane", "0"))
	if err != nil || f.Plane(plane) == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  fmt.Sprintf("plane must be 0..%d", len(f.Planes)-1),
			"layout": f.Layout.String(),
		})
		return
	}
	img := f.Plane(plane).ToImage()

	var buf bytes.Buffer
	contentType := "image/png"
	switch c.DefaultQuery("format", "png") {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg", "jpg":
		contentType = "image/jpeg"
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be png or jpeg"})
		return
	}
	if err != nil {
		logs.Errf("server.latestFrame encode failed plane=%d err=%v", plane, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// Serve listens on the configured address until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logs.Infof("server.Serve listening addr=%s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
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
