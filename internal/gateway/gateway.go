package gateway

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/danmuck/rndcctl/internal/config"
	logs "github.com/danmuck/rndcctl/internal/logging"
	"github.com/danmuck/rndcctl/internal/observability"
	"github.com/danmuck/rndcctl/internal/rndc"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	component       = "rndc-gateway"
	version         = "0.1.0"
	shutdownTimeout = 5 * time.Second
)

// Commander runs commands on one open connection.
type Commander interface {
	Command(ctx context.Context, command string) (rndc.Response, error)
	Close() error
}

// Connector opens a fresh Commander for one request.
type Connector func(ctx context.Context) (Commander, error)

// Service owns the gin router and the rndc target it forwards to.
type Service struct {
	cfg      config.Config
	router   *gin.Engine
	connect  Connector
	appeared time.Time
}

type Option func(*Service)

func WithConnector(fn Connector) Option {
	return func(s *Service) { s.connect = fn }
}

func NewService(cfg config.Config, logger zerolog.Logger, opts ...Option) *Service {
	gin.SetMode(gin.ReleaseMode)
	s := &Service{
		cfg:      cfg,
		router:   gin.New(),
		appeared: time.Now(),
	}
	s.connect = s.dial
	for _, opt := range opts {
		opt(s)
	}

	s.router.Use(gin.Recovery())
	s.router.Use(observability.RequestLogger(logger))
	s.router.Use(observability.RequestMetricsMiddleware(component))
	if len(cfg.Gateway.CorsOrigins) > 0 {
		s.router.Use(cors.New(cors.Config{
			AllowOrigins: cfg.Gateway.CorsOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	s.registerRoutes()
	return s
}

func (s *Service) Handler() http.Handler {
	return s.router
}

func (s *Service) dial(ctx context.Context) (Commander, error) {
	client, err := rndc.Connect(ctx, s.cfg.Host, s.cfg.Port, s.cfg.Secret, s.cfg.Algorithm,
		rndc.WithSessionConfig(s.cfg.Session))
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Run listens on the configured address until SIGINT or SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", s.cfg.Gateway.ListenAddr)
	if err != nil {
		return err
	}
	logs.Warnf("gateway.Service.Run listening addr=%q target=%s:%d", ln.Addr().String(), s.cfg.Host, s.cfg.Port)
	return s.Serve(ctx, ln)
}

// Serve handles HTTP on ln and shuts down gracefully once ctx is done.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logs.Infof("gateway.Service.Serve shutting down addr=%q", ln.Addr().String())
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Service) commandTimeout() time.Duration {
	if s.cfg.Gateway.CommandTimeout > 0 {
		return s.cfg.Gateway.CommandTimeout
	}
	return config.DefaultCommandWait
}

func verb(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
