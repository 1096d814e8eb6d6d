package webserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/voxshop/merchantd/config"
	"go.uber.org/zap"
)

// WebServer owns the echo instance and the /acp API group.
type WebServer struct {
	cfg  config.WebConfig
	root *echo.Echo
	api  *echo.Group
}

type payloadValidator struct {
	validate *validator.Validate
}

func (v *payloadValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// New creates the web server with recovery, request logging and payload
// validation middleware installed.
func New(cfg config.WebConfig) *WebServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &payloadValidator{validate: validator.New()}
	e.Use(middleware.Recover())
	e.Use(requestLogger())

	return &WebServer{
		cfg:  cfg,
		root: e,
		api:  e.Group("/acp"),
	}
}

// ApiGET registers a GET handler under the API group.
func (ws *WebServer) ApiGET(path string, h echo.HandlerFunc) {
	ws.api.GET(path, h)
}

// ApiPOST registers a POST handler under the API group.
func (ws *WebServer) ApiPOST(path string, h echo.HandlerFunc) {
	ws.api.POST(path, h)
}

// ApiPUT registers a PUT handler under the API group.
func (ws *WebServer) ApiPUT(path string, h echo.HandlerFunc) {
	ws.api.PUT(path, h)
}

// ApiDELETE registers a DELETE handler under the API group.
func (ws *WebServer) ApiDELETE(path string, h echo.HandlerFunc) {
	ws.api.DELETE(path, h)
}

// Echo exposes the underlying instance (tests).
func (ws *WebServer) Echo() *echo.Echo {
	return ws.root
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (ws *WebServer) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", ws.cfg.Host, ws.cfg.Port)
	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("web server listening", zap.String("addr", addr))
		errCh <- ws.root.Start(addr)
	}()
	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return ws.root.Shutdown(shutdownCtx)
	}
}

// requestLogger logs every request through the global zap logger.
func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			zap.L().Debug("http request",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)))
			return err
		}
	}
}
