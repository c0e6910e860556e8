// Package http provides the HTTP server implementation for the live chat service.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/livechat/internal/auth"
	"github.com/xiaot623/livechat/internal/hub"
	"github.com/xiaot623/livechat/internal/service"
	"github.com/xiaot623/livechat/internal/transport/http/internalapi"
	v1 "github.com/xiaot623/livechat/internal/transport/http/v1"
	"github.com/xiaot623/livechat/internal/ws"
	"github.com/xiaot623/livechat/policy"
)

// NewExternalServer creates and configures the public HTTP server.
// It serves the chat API for the guest widget and admin console, and the websocket endpoint.
func NewExternalServer(svc *service.Service, wsServer *ws.Server, engine *policy.Engine, verifier *auth.Verifier) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1Handler := v1.NewHandler(svc, engine, verifier)

	// Register Routes
	v1Handler.RegisterRoutes(e)
	e.GET("/ws", wsServer.HandleWebSocket)

	return e
}

// NewInternalServer creates and configures the internal-facing HTTP server.
// This server handles notification intake from back-office services.
func NewInternalServer(svc *service.Service, h *hub.Hub) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Handlers
	internalHandler := internalapi.NewHandler(svc, h)

	// Register Routes
	internalHandler.RegisterRoutes(e)

	return e
}
