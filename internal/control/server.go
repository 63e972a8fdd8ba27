package control

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/soheilhy/cmux"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// Serve runs the control surface on ln until ctx is done: gRPC and the
// HTTP status endpoints share the listener through cmux. ln is closed on
// return.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	m := cmux.New(ln)
	// grpc-go clients wait for the server's SETTINGS frame before sending
	// headers, so the matcher must write it.
	grpcL := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpL := m.Match(cmux.HTTP1Fast())

	gs := grpc.NewServer()
	s.Register(gs)
	hs := &http.Server{
		Handler:           s.NewHTTPHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gs.Serve(grpcL); err != nil && !isClosed(err) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := hs.Serve(httpL); err != nil && !errors.Is(err, http.ErrServerClosed) && !isClosed(err) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := m.Serve(); err != nil && !isClosed(err) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Debug("control server stopping")
		// Let in-flight calls (a Shutdown RPC among them) answer. Watch
		// streams never finish on their own, so give up after a moment.
		stopped := make(chan struct{})
		go func() {
			gs.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(time.Second):
			gs.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
		m.Close()
		_ = ln.Close()
		return nil
	})
	return g.Wait()
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, cmux.ErrListenerClosed) ||
		errors.Is(err, cmux.ErrServerClosed) ||
		errors.Is(err, grpc.ErrServerStopped)
}
