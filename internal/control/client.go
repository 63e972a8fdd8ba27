package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"go.klb.dev/secureclip/internal/ipc"
)

// Client talks to a running daemon over the IPC socket.
type Client struct {
	conn *grpc.ClientConn
}

// Dial returns a Client for the daemon at socket (ipc.SocketPath() when
// empty). The connection is established lazily on the first call.
// No auth needed: the socket is local and owner-restricted by the OS.
func Dial(socket string) (*Client, error) {
	path := ipc.Resolve(socket)
	conn, err := grpc.NewClient(
		"passthrough:///secureclip",
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return ipc.Dial(path)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("control: dial %s: %w", path, err)
	}
	return &Client{conn: conn}, nil
}

// NewClient wraps an existing connection.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close closes the connection.
func (c *Client) Close() error { return c.conn.Close() }

// Toggle flips force-decrypt mode and returns the new mode name.
func (c *Client) Toggle(ctx context.Context) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(ctx, methodToggle, &emptypb.Empty{}, out); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

// Reveal asks the daemon to decrypt the current clipboard content.
func (c *Client) Reveal(ctx context.Context) error {
	return c.conn.Invoke(ctx, methodReveal, &emptypb.Empty{}, new(emptypb.Empty))
}

// Rekey asks the daemon to regenerate the encryption key.
func (c *Client) Rekey(ctx context.Context) error {
	return c.conn.Invoke(ctx, methodRekey, &emptypb.Empty{}, new(emptypb.Empty))
}

// Shutdown asks the daemon to exit.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.conn.Invoke(ctx, methodShutdown, &emptypb.Empty{}, new(emptypb.Empty))
}

// Status returns the daemon's engine status.
func (c *Client) Status(ctx context.Context) (Report, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, methodStatus, &emptypb.Empty{}, out); err != nil {
		return Report{}, err
	}
	return reportFromStruct(out)
}

var watchStreamDesc = grpc.StreamDesc{StreamName: "Watch", ServerStreams: true}

// Watch streams engine events to fn until ctx is done or the daemon goes
// away. Clipboard text is included only when reveal is set.
func (c *Client) Watch(ctx context.Context, reveal bool, fn func(Event)) error {
	stream, err := c.conn.NewStream(ctx, &watchStreamDesc, methodWatch)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(wrapperspb.Bool(reveal)); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		ev, err := eventFromStruct(msg)
		if err != nil {
			return err
		}
		fn(ev)
	}
}
