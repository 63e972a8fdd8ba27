// Package control implements the daemon's control surface: a gRPC service
// on the local IPC socket (toggle, reveal, rekey, status, watch, shutdown)
// and the matching client used by the CLI.
//
// The service has no generated stubs. Requests and responses are protobuf
// well-known types and the service descriptor is declared by hand in
// desc.go.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"go.klb.dev/secureclip/internal/engine"
	"go.klb.dev/secureclip/internal/events"
	"go.klb.dev/secureclip/internal/keystore"
)

// Engine is the part of *engine.Engine the service drives.
type Engine interface {
	ToggleForceDecrypt(ctx context.Context) (engine.Mode, error)
	RequestManualDecrypt(ctx context.Context) error
	RegenerateKey(ctx context.Context) error
	Status(ctx context.Context) (engine.Status, error)
}

// Service implements ControlServer.
type Service struct {
	eng      Engine
	bus      *events.Bus
	shutdown func()
	seq      atomic.Uint64
	watchers atomic.Int64
}

// New returns a Service. shutdown is called by the Shutdown RPC and may be
// nil.
func New(eng Engine, bus *events.Bus, shutdown func()) *Service {
	return &Service{eng: eng, bus: bus, shutdown: shutdown}
}

// Register installs s on gs.
func (s *Service) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

// Toggle implements ControlServer.Toggle.
func (s *Service) Toggle(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	m, err := s.eng.ToggleForceDecrypt(ctx)
	if err != nil {
		return nil, rpcError(err)
	}
	slog.Debug("control: toggled", "mode", m)
	return wrapperspb.String(m.String()), nil
}

// Reveal implements ControlServer.Reveal.
func (s *Service) Reveal(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.eng.RequestManualDecrypt(ctx); err != nil {
		return nil, rpcError(err)
	}
	return &emptypb.Empty{}, nil
}

// Rekey implements ControlServer.Rekey.
func (s *Service) Rekey(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.eng.RegenerateKey(ctx); err != nil {
		return nil, rpcError(err)
	}
	slog.Info("control: encryption key regenerated")
	return &emptypb.Empty{}, nil
}

// Status implements ControlServer.Status.
func (s *Service) Status(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, err := s.eng.Status(ctx)
	if err != nil {
		return nil, rpcError(err)
	}
	out, err := s.report(st, true).toStruct()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// report builds the status report, adding what only the service knows: the
// number of watchers and the most recent error event.
func (s *Service) report(st engine.Status, reveal bool) Report {
	r := NewReport(st, reveal)
	r.Watchers = int(s.watchers.Load())
	if ev, ok := s.bus.Last(events.KindError); ok {
		r.LastError, r.LastErrorAt = ev.Payload, ev.At
	}
	return r
}

// Shutdown implements ControlServer.Shutdown.
func (s *Service) Shutdown(_ context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if s.shutdown == nil {
		return nil, status.Error(codes.Unimplemented, "shutdown not supported")
	}
	slog.Info("control: shutdown requested")
	s.shutdown()
	return &emptypb.Empty{}, nil
}

// Watch implements ControlServer.Watch. Clipboard text is only sent when
// req is true.
func (s *Service) Watch(req *wrapperspb.BoolValue, stream grpc.ServerStream) error {
	reveal := req.GetValue()
	sub := s.bus.Subscribe(fmt.Sprintf("watch/%d", s.seq.Add(1)), 16)
	defer sub.Close()
	s.watchers.Add(1)
	defer s.watchers.Add(-1)
	slog.Info("watch started", "subscriber", sub.ID(), "reveal", reveal)
	defer slog.Info("watch ended", "subscriber", sub.ID())

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-sub.C():
			msg, err := eventToStruct(ev, reveal)
			if err != nil {
				return status.Error(codes.Internal, err.Error())
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

// rpcError maps engine and key store errors onto gRPC status codes.
func rpcError(err error) error {
	switch {
	case errors.Is(err, engine.ErrStopped):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, keystore.ErrKeyStore), errors.Is(err, keystore.ErrNotFound):
		return status.Error(codes.Internal, err.Error())
	case errors.Is(err, engine.ErrNoKeyRotator):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Unknown, err.Error())
	}
}
