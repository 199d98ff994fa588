package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/learnchain/txwatcher/config"
	"github.com/learnchain/txwatcher/pkg/types"
)

// WatchController is the slice of the watcher the API exposes.
type WatchController interface {
	AddPendingTx(tx types.PendingTransaction) bool
	RemovePendingTx(id string)
	CheckNow(ctx context.Context)
	Snapshot() []types.PendingTransaction
	IsChecking() bool
}

// Server exposes the watcher's operational surface: watch-set inspection,
// manual sweeps, and the removal escape hatch for transactions that will
// never confirm.
type Server struct {
	echo       *echo.Echo
	controller WatchController
	validate   *validator.Validate
	addr       string
}

type pendingResponse struct {
	IsChecking   bool                       `json:"isChecking"`
	Transactions []types.PendingTransaction `json:"transactions"`
}

func NewServer(cfg *config.ApiConfig, controller WatchController) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	server := &Server{
		echo:       e,
		controller: controller,
		validate:   validator.New(),
		addr:       cfg.Addr,
	}

	e.GET("/healthz", server.health)
	e.GET("/api/v1/pending", server.getPending)
	e.POST("/api/v1/pending", server.addPending)
	e.POST("/api/v1/pending/check", server.checkPending)
	e.DELETE("/api/v1/pending/:id", server.removePending)

	return server
}

func (s *Server) Start() error {
	log.Info().Str("Addr", s.addr).Msg("[ApiServer] [Start] listening")
	err := s.echo.Start(s.addr)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the route tree for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getPending(c echo.Context) error {
	snapshot := s.controller.Snapshot()
	if snapshot == nil {
		snapshot = []types.PendingTransaction{}
	}
	return c.JSON(http.StatusOK, pendingResponse{
		IsChecking:   s.controller.IsChecking(),
		Transactions: snapshot,
	})
}

func (s *Server) addPending(c echo.Context) error {
	var tx types.PendingTransaction
	if err := c.Bind(&tx); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.validate.Struct(&tx); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !tx.EntityType.IsValid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown entity type: "+string(tx.EntityType))
	}
	if tx.SubmittedAt.IsZero() {
		tx.SubmittedAt = time.Now().UTC()
	}
	added := s.controller.AddPendingTx(tx)
	if !added {
		return c.JSON(http.StatusOK, map[string]any{"added": false, "id": tx.ID})
	}
	return c.JSON(http.StatusCreated, map[string]any{"added": true, "id": tx.ID})
}

func (s *Server) checkPending(c echo.Context) error {
	s.controller.CheckNow(c.Request().Context())
	return c.JSON(http.StatusOK, map[string]bool{"checked": true})
}

func (s *Server) removePending(c echo.Context) error {
	s.controller.RemovePendingTx(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}
