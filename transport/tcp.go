package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"goa.design/clue/log"
	"golang.org/x/sync/errgroup"

	"github.com/honganh1206/relay/client"
	"github.com/honganh1206/relay/httpmsg"
	"github.com/honganh1206/relay/rpc"
	"github.com/honganh1206/relay/server"
)

// SyncClient is the blocking TCP implementation of client.TCPClient: write
// the request, then read until the response callback settles. Out-of-order
// responses are the HTTP client's problem; this layer only moves bytes.
type SyncClient struct {
	conn net.Conn
	buf  []byte
}

// Dial connects to an address and wraps the connection.
func Dial(address string) (*SyncClient, error) {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return nil, err
	}
	return &SyncClient{conn: conn}, nil
}

// NewSyncClient wraps an existing connection.
func NewSyncClient(conn net.Conn) *SyncClient {
	return &SyncClient{conn: conn}
}

// Close closes the underlying connection.
func (c *SyncClient) Close() error {
	return c.conn.Close()
}

func (c *SyncClient) WriteRequest(data []byte) error {
	_, err := c.conn.Write(data)
	return err
}

func (c *SyncClient) readMore() error {
	chunk := make([]byte, 4096)
	n, err := c.conn.Read(chunk)
	if n > 0 {
		c.buf = append(c.buf, chunk[:n]...)
	}
	return err
}

func (c *SyncClient) GetResponse(token rpc.RequestToken, read func(data []byte, identified bool) (httpmsg.Reaction, rpc.RequestToken, int, error)) error {
	for {
		if len(c.buf) == 0 {
			if err := c.readMore(); err != nil {
				return err
			}
		}
		reaction, _, consumed, err := read(c.buf, false)
		if err != nil {
			return err
		}
		switch reaction {
		case httpmsg.OK:
			c.buf = c.buf[consumed:]
			return nil
		case httpmsg.WrongReply:
			c.buf = c.buf[consumed:]
		case httpmsg.ReadOn:
			if err := c.readMore(); err != nil {
				return err
			}
		default:
			c.conn.Close()
			return ErrClosed
		}
	}
}

// TryGetResponse drains whatever already arrived without blocking.
func (c *SyncClient) TryGetResponse(token rpc.RequestToken, read func(data []byte, identified bool) (httpmsg.Reaction, rpc.RequestToken, int, error)) (bool, error) {
	if err := c.conn.SetReadDeadline(time.Now()); err != nil {
		return false, err
	}
	err := c.readMore()
	_ = c.conn.SetReadDeadline(time.Time{})
	if err != nil {
		var netErr net.Error
		if !errors.As(err, &netErr) || !netErr.Timeout() {
			return false, err
		}
	}
	for {
		if len(c.buf) == 0 {
			return false, nil
		}
		reaction, _, consumed, err := read(c.buf, false)
		if err != nil {
			return false, err
		}
		switch reaction {
		case httpmsg.OK:
			c.buf = c.buf[consumed:]
			return true, nil
		case httpmsg.WrongReply:
			c.buf = c.buf[consumed:]
		case httpmsg.ReadOn:
			return false, nil
		default:
			c.conn.Close()
			return false, ErrClosed
		}
	}
}

var _ client.TCPClient = (*SyncClient)(nil)
var _ client.NonBlockingTCPClient = (*SyncClient)(nil)

// Serve accepts connections and drives one server session per connection,
// each on its own worker. A session is owned by its worker: parsing and
// responding for one connection never touch another. Serve returns when the
// listener fails or the context is canceled.
func Serve(ctx context.Context, listener net.Listener, srv *server.Server) error {
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		<-ctx.Done()
		listener.Close()
		return nil
	})
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				err = nil
			}
			waitErr := group.Wait()
			if err == nil {
				err = waitErr
			}
			return err
		}
		group.Go(func() error {
			serveConn(ctx, conn, srv.NewSession())
			return nil
		})
	}
}

// serveConn pumps one connection through its session until it disconnects.
func serveConn(ctx context.Context, conn net.Conn, session server.TCPResponder) {
	sessionID := uuid.NewString()
	ctx = log.With(ctx, log.KV{K: "session", V: sessionID}, log.KV{K: "remote", V: conn.RemoteAddr().String()})
	log.Debugf(ctx, "session started")
	defer conn.Close()

	var buf []byte
	chunk := make([]byte, 4096)
	for {
		n, err := conn.Read(chunk)
		if err != nil {
			if err != io.EOF && ctx.Err() == nil {
				log.Error(ctx, err, log.KV{K: "msg", V: "read failed"})
			}
			return
		}
		buf = append(buf, chunk[:n]...)
		for len(buf) > 0 {
			reaction, consumed, err := session.Respond(ctx, buf, func(response []byte) error {
				_, err := conn.Write(response)
				return err
			})
			if err != nil {
				log.Error(ctx, err, log.KV{K: "msg", V: "session failed"})
				return
			}
			if reaction == httpmsg.ReadOn {
				break
			}
			buf = buf[consumed:]
			if reaction == httpmsg.Disconnect {
				log.Debugf(ctx, "session closing")
				return
			}
		}
	}
}
