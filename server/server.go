// Package server exposes the payment gate over HTTP. It owns transport
// concerns only: routing, proof extraction and response rendering. All
// payment policy lives in the gate.
package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	paygate "github.com/vitwit/paygate"
	"github.com/vitwit/paygate/logger"
	"github.com/vitwit/paygate/types"
)

// Config carries the transport-level settings
type Config struct {
	// EnableMetrics mounts /metrics with the prometheus handler
	EnableMetrics bool

	Logger logger.Logger
}

// Server wires the gate into an echo router
type Server struct {
	gate *paygate.Gate
	echo *echo.Echo
	log  logger.Logger
}

// SuccessBody is the response for a verified purchase
type SuccessBody struct {
	Success      bool                   `json:"success"`
	Item         string                 `json:"item"`
	Charged      decimal.Decimal        `json:"charged"`
	Currency     string                 `json:"currency"`
	Verification types.VerificationInfo `json:"verification"`
	Content      string                 `json:"content"`
}

// New builds the HTTP server around a gate.
func New(gate *paygate.Gate, cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = logger.NoopLogger{}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(requestLogger(log))

	s := &Server{
		gate: gate,
		echo: e,
		log:  log,
	}

	e.GET("/buy/:item", s.handleBuy)
	e.GET("/payment-info", s.handlePaymentInfo)
	e.GET("/catalog", s.handleCatalog)
	e.GET("/health", s.handleHealth)

	if cfg.EnableMetrics {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	return s
}

// Start listens on addr until the server is shut down.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router, for tests and for mounting under an
// existing server.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleBuy(c echo.Context) error {
	itemID := c.Param("item")
	proof := s.extractProof(c)

	d := s.gate.Handle(c.Request().Context(), itemID, proof)
	if !d.Allowed() {
		return c.JSON(d.Status, d.Body)
	}

	return c.JSON(http.StatusOK, SuccessBody{
		Success:      true,
		Item:         d.Item.ID,
		Charged:      d.Item.Price,
		Currency:     d.Item.Currency,
		Verification: *d.Verification,
		Content:      d.Item.Content,
	})
}

func (s *Server) handlePaymentInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, s.gate.PaymentInfo())
}

func (s *Server) handleCatalog(c echo.Context) error {
	return c.JSON(http.StatusOK, s.gate.CatalogSummary())
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// extractProof pulls the payment proof out of the request: the advertised
// proof header first, then an Authorization "Payment" scheme, then the
// payment_proof query parameter.
func (s *Server) extractProof(c echo.Context) string {
	if proof := strings.TrimSpace(c.Request().Header.Get(s.gate.ProofHeader())); proof != "" {
		return proof
	}

	if auth := c.Request().Header.Get(echo.HeaderAuthorization); auth != "" {
		if scheme, rest, ok := strings.Cut(auth, " "); ok && strings.EqualFold(scheme, "Payment") {
			return strings.TrimSpace(rest)
		}
	}

	return strings.TrimSpace(c.QueryParam("payment_proof"))
}

func requestLogger(log logger.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request", map[string]any{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
			})
			return nil
		},
	})
}
