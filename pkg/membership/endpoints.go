package membership

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/storacha/silo/pkg/config/app"
)

// Listen addresses for the two endpoint modes.
const (
	AnyHostAddress      = "0.0.0.0"
	LoopbackHostAddress = "127.0.0.1"
)

// ListenFunc opens a listener, net.Listen in production.
type ListenFunc func(network, address string) (net.Listener, error)

// ConnHandler takes ownership of an accepted connection.
type ConnHandler func(conn net.Conn)

// Endpoints are the silo-to-silo and gateway listeners of a silo.
type Endpoints struct {
	silo    net.Listener
	gateway net.Listener
}

// ListenHost is the address the endpoints bind to.
func ListenHost(cfg app.EndpointsConfig) string {
	if cfg.ListenOnAnyHostAddress {
		return AnyHostAddress
	}
	return LoopbackHostAddress
}

// ListenEndpoints binds the silo and gateway ports. Nothing stays bound when
// either one fails.
func ListenEndpoints(cfg app.EndpointsConfig, listen ListenFunc) (*Endpoints, error) {
	if listen == nil {
		listen = net.Listen
	}
	host := ListenHost(cfg)

	silo, err := listen("tcp", net.JoinHostPort(host, strconv.Itoa(cfg.SiloPort)))
	if err != nil {
		return nil, fmt.Errorf("binding silo port %d: %w", cfg.SiloPort, err)
	}
	gateway, err := listen("tcp", net.JoinHostPort(host, strconv.Itoa(cfg.GatewayPort)))
	if err != nil {
		_ = silo.Close()
		return nil, fmt.Errorf("binding gateway port %d: %w", cfg.GatewayPort, err)
	}
	log.Infow("endpoints bound", "silo", silo.Addr().String(), "gateway", gateway.Addr().String())
	return &Endpoints{silo: silo, gateway: gateway}, nil
}

func (e *Endpoints) SiloAddr() net.Addr {
	return e.silo.Addr()
}

func (e *Endpoints) GatewayAddr() net.Addr {
	return e.gateway.Addr()
}

// Serve accepts on both endpoints until ctx is done or a listener fails.
func (e *Endpoints) Serve(ctx context.Context, siloHandler, gatewayHandler ConnHandler) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return accept(ctx, e.silo, siloHandler) })
	g.Go(func() error { return accept(ctx, e.gateway, gatewayHandler) })
	g.Go(func() error {
		<-ctx.Done()
		// unblocks Accept
		_ = e.Close()
		return nil
	})
	return g.Wait()
}

func accept(ctx context.Context, l net.Listener, handle ConnHandler) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accepting on %s: %w", l.Addr(), err)
		}
		go handle(conn)
	}
}

// Close releases both ports. Closing twice is harmless.
func (e *Endpoints) Close() error {
	return multierr.Combine(ignoreClosed(e.silo.Close()), ignoreClosed(e.gateway.Close()))
}

func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// RejectConn closes connections when no actor runtime is attached to the endpoint.
func RejectConn(conn net.Conn) {
	log.Debugw("closing connection, no runtime attached", "remote", conn.RemoteAddr().String())
	_ = conn.Close()
}
