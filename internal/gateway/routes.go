package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	logs "github.com/danmuck/rndcctl/internal/logging"
	"github.com/danmuck/rndcctl/internal/observability"
	"github.com/danmuck/rndcctl/internal/rndc"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type commandRequest struct {
	Command string `json:"command" binding:"required"`
}

func (s *Service) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(s.appeared).String(),
			"component": component,
			"version":   version,
			"target":    fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.POST("/v1/commands", s.handleCommand)
}

func (s *Service) handleCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	c.Set(observability.ContextCommandKey, verb(req.Command))

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.commandTimeout())
	defer cancel()

	client, err := s.connect(ctx)
	if err != nil {
		logs.Warnf("gateway.Service.handleCommand connect err=%v", err)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	defer func() {
		if err := client.Close(); err != nil {
			logs.Debugf("gateway.Service.handleCommand close err=%v", err)
		}
	}()

	resp, err := client.Command(ctx, req.Command)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, resp)
	case errors.Is(err, rndc.ErrCommandFailed):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":    err.Error(),
			"response": resp,
		})
	case errors.Is(err, rndc.ErrEmptyCommand):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logs.Warnf("gateway.Service.handleCommand command=%q err=%v", req.Command, err)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
	}
}

func statusFor(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}
