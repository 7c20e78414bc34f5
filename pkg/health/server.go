package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	logging "github.com/ipfs/go-log/v2"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

var log = logging.Logger("health")

// Server serves the health endpoints of one silo.
type Server struct {
	echo *echo.Echo
	addr string
}

// RouteRegistrar mounts extra routes next to the health routes.
type RouteRegistrar func(e *echo.Echo)

// NewServer creates a server for addr (host:port). Nothing is bound until Listen.
func NewServer(checker *Checker, addr string, extra ...RouteRegistrar) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(errorLogger(log))
	NewHandler(checker).RegisterRoutes(e)
	for _, register := range extra {
		register(e)
	}

	return &Server{echo: e, addr: addr}
}

// Listen binds the server address so a busy port fails the caller synchronously.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("binding health endpoint %s: %w", s.addr, err)
	}
	s.echo.Listener = ln
	log.Infof("health endpoint listening on %s", ln.Addr())
	return nil
}

// Addr is the bound address, nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.echo.Listener == nil {
		return nil
	}
	return s.echo.Listener.Addr()
}

// Serve blocks until Shutdown. It must be called after Listen.
func (s *Server) Serve() error {
	if s.echo.Listener == nil {
		return errors.New("health server is not listening")
	}
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health endpoint: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("Shutting down health endpoint")
	err := s.echo.Shutdown(ctx)
	if s.echo.Listener != nil {
		// not closed by Shutdown when Serve never ran
		if cerr := s.echo.Listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) && err == nil {
			err = cerr
		}
	}
	return err
}

// errorLogger logs handler errors that were not turned into HTTP errors.
func errorLogger(l logging.EventLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err != nil {
				var he *echo.HTTPError
				if !errors.As(err, &he) {
					l.Error(err)
				}
			}
			return err
		}
	}
}
