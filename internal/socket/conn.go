package socket

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/jwulff/stenod/pkg/wire"
)

// clientConn is one accepted connection: a reader goroutine decodes inbound
// NDJSON lines and forwards them to the dispatcher, while a single writer
// goroutine serializes all outbound lines (dispatcher responses and
// broadcaster events) so they are never interleaved mid-line.
type clientConn struct {
	id     string
	conn   net.Conn
	server *Server

	writeMu   sync.Mutex
	writeCh   chan []byte
	closed    bool
	closeOnce sync.Once
}

func newClientConn(id string, conn net.Conn, server *Server) *clientConn {
	return &clientConn{
		id:      id,
		conn:    conn,
		server:  server,
		writeCh: make(chan []byte, writeBufferLines),
	}
}

// Send implements [dispatch.Client] and the broadcaster's Client interface.
// It never blocks: a full write buffer or a closed connection is reported as
// an error so a slow subscriber can be dropped without stalling the sender.
// writeMu is held across the closed check and the channel send so [close]
// cannot close writeCh between the two (which would panic a concurrent
// sender).
func (c *clientConn) Send(line []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return errors.New("socket: connection closed")
	}
	select {
	case c.writeCh <- line:
		return nil
	default:
		return errors.New("socket: client send buffer full")
	}
}

// serve runs the writer goroutine and the reader loop, blocking until the
// connection is closed or ctx is cancelled.
func (c *clientConn) serve(ctx context.Context, dispatcher Dispatcher) {
	stop := context.AfterFunc(ctx, c.close)
	defer stop()

	var writerDone sync.WaitGroup
	writerDone.Add(1)
	go func() {
		defer writerDone.Done()
		c.writeLoop()
	}()

	c.readLoop(ctx, dispatcher)

	c.close()
	writerDone.Wait()
}

// writeLoop drains writeCh to the connection until it is closed.
func (c *clientConn) writeLoop() {
	for line := range c.writeCh {
		if _, err := c.conn.Write(line); err != nil {
			return
		}
	}
}

// readLoop consumes inbound NDJSON lines, decodes them, and forwards the
// result to the dispatcher. A malformed line produces a {ok:false,
// error:"bad command"} response without terminating the connection; an
// oversized line or I/O error ends the connection.
func (c *clientConn) readLoop(ctx context.Context, dispatcher Dispatcher) {
	lr := wire.NewLineReader(c.conn)
	for {
		line, err := lr.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.server.logger.Warn("client read error", "client_id", c.id, "err", err)
			}
			return
		}

		cmd, err := wire.DecodeCommand(line)
		if err != nil {
			c.replyBadCommand()
			continue
		}

		resp := dispatcher.Dispatch(ctx, c.id, c, cmd)
		encoded, err := wire.Encode(resp)
		if err != nil {
			continue
		}
		_ = c.Send(encoded)
	}
}

func (c *clientConn) replyBadCommand() {
	encoded, err := wire.Encode(wire.Response{OK: false, Error: "bad command"})
	if err != nil {
		return
	}
	_ = c.Send(encoded)
}

// close shuts down the connection and its writer exactly once.
func (c *clientConn) close() {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.closed = true
		close(c.writeCh)
		c.writeMu.Unlock()
		c.conn.Close()
	})
}
