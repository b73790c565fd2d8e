package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	models "TradeLens/internal/domain/models"
	"TradeLens/internal/usecase"
	xhttp "TradeLens/pkg/http"
	applogger "TradeLens/pkg/logger"
)

// Engine is the companion as seen by the HTTP surface.
type Engine interface {
	Analyze(ctx context.Context, symbol, timeframe string, force bool) (models.AnalysisResult, error)
	Context() (models.MarketContext, bool)
	Cooldown() *models.CooldownState
	Stats() models.EngineStats
}

// CandleReader serves raw candle windows.
type CandleReader interface {
	GetCandles(ctx context.Context, p usecase.GetCandlesParams) (*usecase.GetCandlesResult, error)
}

// StreamStatus reports market stream health.
type StreamStatus interface {
	IsConnected() bool
}

// CompanionHandler exposes the engine over REST for tools and debugging.
type CompanionHandler struct {
	logger   *applogger.Logger
	engine   Engine
	dispatch MessageDispatcher
	candles  CandleReader
	stream   StreamStatus
}

func NewCompanionHandler(logger *applogger.Logger, engine Engine, dispatch MessageDispatcher, candles CandleReader, stream StreamStatus) *CompanionHandler {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &CompanionHandler{logger: logger, engine: engine, dispatch: dispatch, candles: candles, stream: stream}
}

func (h *CompanionHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.POST("/message", h.Message)
	g.GET("/analysis", h.Analysis)
	g.GET("/context", h.Context)
	g.GET("/cooldown", h.Cooldown)
	g.GET("/stats", h.Stats)
	g.GET("/candles", h.Candles)
}

// Message answers one typed message. The envelope always comes back with
// 200; failures are carried in ok/error.
func (h *CompanionHandler) Message(c echo.Context) error {
	req := &models.Message{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.dispatch.Dispatch(c.Request().Context(), *req))
}

func (h *CompanionHandler) Analysis(c echo.Context) error {
	req := &models.AnalysisQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.engine.Analyze(c.Request().Context(), req.Symbol, req.Timeframe, req.Force)
	if err != nil {
		return h.fail(c, "analysis", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, res)
}

func (h *CompanionHandler) Context(c echo.Context) error {
	mc, ok := h.engine.Context()
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(usecase.ErrNoContext.Error()))
	}
	return xhttp.SuccessResponse(c, mc)
}

func (h *CompanionHandler) Cooldown(c echo.Context) error {
	st := h.engine.Cooldown()
	if st == nil {
		return xhttp.SuccessResponse(c, models.CooldownState{})
	}
	return xhttp.SuccessResponse(c, st)
}

func (h *CompanionHandler) Stats(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.engine.Stats())
}

func (h *CompanionHandler) Candles(c echo.Context) error {
	req := &models.CandlesQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.candles.GetCandles(c.Request().Context(), usecase.GetCandlesParams{
		Symbol:    req.Symbol,
		Timeframe: req.Timeframe,
		Limit:     req.Limit,
	})
	if err != nil {
		return h.fail(c, "candles", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *CompanionHandler) Health(c echo.Context) error {
	body := map[string]interface{}{"status": "ok"}
	if h.stream != nil {
		body["stream_connected"] = h.stream.IsConnected()
	}
	return c.JSON(http.StatusOK, body)
}

func (h *CompanionHandler) fail(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, usecase.ErrInvalidTimeframe):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
	case errors.Is(err, usecase.ErrNoContext):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	case errors.Is(err, usecase.ErrTierUnavailable):
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError(err.Error()).WithError(err))
	}
	h.logger.Error(op+" request failed", applogger.Error(err))
	return xhttp.AppErrorResponse(c, err)
}

// Routes registers several handlers as one.
type Routes []xhttp.Handler

func (r Routes) RegisterRoutes(e *echo.Echo) {
	for _, h := range r {
		if h != nil {
			h.RegisterRoutes(e)
		}
	}
}
