// Package server exposes a running simulation over HTTP and a websocket
// frame stream. Every request is executed on the simulation goroutine
// through sim.Runner.Do.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/stride/config"
	"github.com/pthm-cable/stride/grid"
	"github.com/pthm-cable/stride/obstacle"
	"github.com/pthm-cable/stride/sim"
	"github.com/pthm-cable/stride/steering"
)

const (
	requestTimeout = 5 * time.Second
	writeTimeout   = 2 * time.Second
	streamBuffer   = 16
)

// Server serves the control API for one runner.
type Server struct {
	runner   *sim.Runner
	log      *zap.Logger
	engine   *gin.Engine
	upgrader websocket.Upgrader
}

// New builds the router. log may be nil.
func New(r *sim.Runner, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		runner: r,
		log:    log,
		engine: gin.New(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.engine.Use(gin.Recovery(), s.logRequests)

	s.engine.GET("/healthz", s.health)
	s.engine.GET("/agents", s.listAgents)
	s.engine.GET("/agents/:id", s.getAgent)
	s.engine.POST("/agents/:id/goal", s.setGoal)
	s.engine.POST("/agents/:id/target", s.setTarget)
	s.engine.GET("/grid", s.getGrid)
	s.engine.POST("/obstacles", s.placeObstacle)
	s.engine.GET("/stream", s.stream)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("server listening", zap.String("addr", addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.log.Debug("request",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("took", time.Since(start)),
	)
}

// do runs fn on the simulation goroutine with the request's deadline.
func (s *Server) do(c *gin.Context, fn func(*sim.Simulation) error) error {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()
	return s.runner.Do(ctx, fn)
}

// fail writes err with the status it maps to.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, sim.ErrUnknownAgent):
		status = http.StatusNotFound
	case errors.Is(err, grid.ErrOutOfRange),
		errors.Is(err, obstacle.ErrInvalidShape),
		errors.Is(err, steering.ErrInvalidParams):
		status = http.StatusBadRequest
	case errors.Is(err, sim.ErrStopped),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func agentID(c *gin.Context) (uint32, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid agent id"})
		return 0, false
	}
	return uint32(id), true
}

func (s *Server) health(c *gin.Context) {
	select {
	case <-s.runner.Done():
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "stopped", "tick": s.runner.Latest().Tick})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ok", "tick": s.runner.Latest().Tick})
	}
}

func (s *Server) listAgents(c *gin.Context) {
	var snap sim.Snapshot
	err := s.do(c, func(sm *sim.Simulation) error {
		snap = sm.Snapshot()
		return nil
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) getAgent(c *gin.Context) {
	id, ok := agentID(c)
	if !ok {
		return
	}
	var view sim.AgentView
	err := s.do(c, func(sm *sim.Simulation) error {
		var err error
		view, err = sm.AgentView(id)
		return err
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type goalRequest struct {
	IX *int `json:"ix" binding:"required"`
	IY *int `json:"iy" binding:"required"`
}

func (s *Server) setGoal(c *gin.Context) {
	id, ok := agentID(c)
	if !ok {
		return
	}
	var req goalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var reachable bool
	var view sim.AgentView
	err := s.do(c, func(sm *sim.Simulation) error {
		var err error
		if reachable, err = sm.SetGoal(id, *req.IX, *req.IY); err != nil {
			return err
		}
		view, err = sm.AgentView(id)
		return err
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	if !reachable {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "goal unreachable", "reachable": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reachable": true, "agent": view})
}

type targetRequest struct {
	X *float64 `json:"x" binding:"required"`
	Z *float64 `json:"z" binding:"required"`
}

func (s *Server) setTarget(c *gin.Context) {
	id, ok := agentID(c)
	if !ok {
		return
	}
	var req targetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var view sim.AgentView
	err := s.do(c, func(sm *sim.Simulation) error {
		if err := sm.SetTarget(id, r3.Vec{X: *req.X, Z: *req.Z}); err != nil {
			return err
		}
		var err error
		view, err = sm.AgentView(id)
		return err
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) getGrid(c *gin.Context) {
	var gv sim.GridView
	err := s.do(c, func(sm *sim.Simulation) error {
		gv = sm.GridView()
		return nil
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gv)
}

func (s *Server) placeObstacle(c *gin.Context) {
	var req config.ShapeConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	shape, err := sim.ShapeFromConfig(req)
	if err != nil {
		s.fail(c, err)
		return
	}

	var blocked int
	err = s.do(c, func(sm *sim.Simulation) error {
		var err error
		blocked, err = sm.PlaceObstacle(shape)
		return err
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"blocked_cells": blocked})
}

// stream upgrades to a websocket and sends one binary Frame per published
// update, starting with the latest snapshot.
func (s *Server) stream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates, cancel := s.runner.Subscribe(streamBuffer)
	defer cancel()

	// Reads only detect the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.log.Debug("stream opened", zap.String("remote", c.Request.RemoteAddr))
	if err := s.send(conn, sim.Update{Snapshot: s.runner.Latest()}); err != nil {
		return
	}
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "simulation stopped"),
					time.Now().Add(writeTimeout))
				return
			}
			if err := s.send(conn, u); err != nil {
				s.log.Debug("stream closed", zap.Error(err))
				return
			}
		case <-closed:
			return
		}
	}
}

func (s *Server) send(conn *websocket.Conn, u sim.Update) error {
	data, err := NewFrame(u).Encode()
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.BinaryMessage, data)
}
