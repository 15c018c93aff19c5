package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mohammad-safakhou/deepresearch/internal/research"
	"github.com/mohammad-safakhou/deepresearch/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Researcher runs one deep-research query end to end.
type Researcher interface {
	Run(ctx context.Context, query string) (*research.Result, error)
}

// Archive persists finished runs. *store.Store satisfies it.
type Archive interface {
	SaveRun(ctx context.Context, rec store.RunRecord) error
	GetRun(ctx context.Context, id string) (store.RunRecord, bool, error)
}

type Options struct {
	// JWTSecret enables HS256 bearer auth on /api when non-empty.
	JWTSecret []byte
	// Archive is optional; without it GET /api/research/:id always 404s.
	Archive Archive
	Logger  *zap.Logger
}

type researchRequest struct {
	Query string `json:"query"`
}

type researchResponse struct {
	ID     string `json:"id"`
	Result string `json:"result"`
}

type errorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

type handler struct {
	researcher Researcher
	archive    Archive
	logger     *zap.Logger
}

// New builds the HTTP API around a research pipeline.
func New(r Researcher, opts Options) *echo.Echo {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("server")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Info("request failed",
			zap.Int("status", code),
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.String("remote", c.RealIP()),
			zap.Error(err),
		)
		if !c.Response().Committed {
			_ = c.JSON(code, errorResponse{Error: msg})
		}
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	h := &handler{researcher: r, archive: opts.Archive, logger: logger}
	api := e.Group("/api")
	if len(opts.JWTSecret) > 0 {
		api.Use(AuthMiddleware(opts.JWTSecret))
	}
	api.POST("/research", h.research)
	api.GET("/research/:id", h.getRun)
	return e
}

func (h *handler) research(c echo.Context) error {
	var req researchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, research.ErrEmptyQuery.Error())
	}

	res, err := h.researcher.Run(c.Request().Context(), req.Query)
	if err != nil {
		if errors.Is(err, research.ErrEmptyQuery) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if stage := research.StageOf(err); stage != "" {
			h.logger.Warn("research run failed", zap.String("stage", string(stage)), zap.Error(err))
			return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error(), Stage: string(stage)})
		}
		return err
	}

	if h.archive != nil {
		// A completed report is still returned when archiving fails.
		if err := h.archive.SaveRun(c.Request().Context(), store.RecordFromResult(res)); err != nil {
			h.logger.Error("archive run", zap.String("run_id", res.RunID), zap.Error(err))
		}
	}
	return c.JSON(http.StatusOK, researchResponse{ID: res.RunID, Result: res.Report})
}

func (h *handler) getRun(c echo.Context) error {
	if h.archive == nil {
		return echo.NewHTTPError(http.StatusNotFound, "run archive is not configured")
	}
	rec, ok, err := h.archive.GetRun(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	return c.JSON(http.StatusOK, rec.Result())
}

// Serve runs e on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, e *echo.Echo, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
