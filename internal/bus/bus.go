// Package bus carries control-bus messages between producers and consumers
// on one host as UDP datagrams, one protocol message per datagram.
package bus

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/danmuck/shmframe/internal/auth"
	logs "github.com/danmuck/shmframe/internal/logging"
	"github.com/danmuck/shmframe/internal/protocol"
)

// MaxDatagram is the largest datagram the bus reads.
const MaxDatagram = 64 * 1024

var (
	ErrNoMessage    = errors.New("bus: no message before timeout")
	ErrMalformed    = errors.New("bus: malformed message")
	ErrUnauthorized = errors.New("bus: unauthorized message")
	ErrClosed       = errors.New("bus: closed")
)

// Options configures a listening endpoint.
type Options struct {
	// Token, when set, must match the auth block of every accepted message.
	Token     string
	Validator auth.Validator
}

func (o Options) validator() auth.Validator {
	if o.Validator != nil {
		return o.Validator
	}
	return auth.ForToken(o.Token)
}

// Conn is the receiving end of the bus. Poll is meant for a single
// goroutine.
type Conn struct {
	pc        net.PacketConn
	validator auth.Validator
	buf       []byte
	closed    atomic.Bool
}

func Listen(addr string, opts Options) (*Conn, error) {
	pc, err := net.ListenPacket("udp", strings.TrimSpace(addr))
	if err != nil {
		return nil, fmt.Errorf("bus: listen %s: %w", addr, err)
	}
	logs.Infof("bus.Listen ready addr=%s auth=%v", pc.LocalAddr(), strings.TrimSpace(opts.Token) != "" || opts.Validator != nil)
	return &Conn{
		pc:        pc,
		validator: opts.validator(),
		buf:       make([]byte, MaxDatagram),
	}, nil
}

func (c *Conn) Addr() net.Addr {
	return c.pc.LocalAddr()
}

// Poll waits up to timeout for one message. It returns ErrNoMessage when
// nothing arrived, ErrMalformed or ErrUnauthorized for a rejected datagram.
func (c *Conn) Poll(timeout time.Duration) (*protocol.Message, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if err := c.pc.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("bus: set deadline: %w", err)
	}
	n, from, err := c.pc.ReadFrom(c.buf)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, ErrNoMessage
		}
		if c.closed.Load() || errors.Is(err, net.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("bus: read: %w", err)
	}

	msg, err := protocol.Unmarshal(c.buf[:n])
	if err != nil {
		return nil, fmt.Errorf("%w from %s: %w", ErrMalformed, from, err)
	}
	var token string
	if msg.Header.Flags&protocol.FlagHasAuth != 0 {
		token = string(msg.AuthBlock)
	}
	if err := c.validator.Validate(token); err != nil {
		return nil, fmt.Errorf("%w from %s: %w", ErrUnauthorized, from, err)
	}
	return msg, nil
}

func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.pc.Close()
}

// Publisher sends messages to one bus address.
type Publisher struct {
	conn   net.Conn
	token  string
	nextID atomic.Uint64
}

func Dial(addr, token string) (*Publisher, error) {
	conn, err := net.Dial("udp", strings.TrimSpace(addr))
	if err != nil {
		return nil, fmt.Errorf("bus: dial %s: %w", addr, err)
	}
	return &Publisher{conn: conn, token: strings.TrimSpace(token)}, nil
}

// Send stamps a message id when msg has none, attaches the token and writes
// one datagram.
func (p *Publisher) Send(msg *protocol.Message) error {
	out := *msg
	if out.Header.MessageID == 0 {
		out.Header.MessageID = p.nextID.Add(1)
	}
	if p.token != "" {
		out.Header.Flags |= protocol.FlagHasAuth
		out.AuthBlock = []byte(p.token)
	}
	b, err := protocol.Marshal(&out)
	if err != nil {
		return fmt.Errorf("bus: encode: %w", err)
	}
	if len(b) > MaxDatagram {
		return fmt.Errorf("bus: message of %d bytes exceeds datagram limit", len(b))
	}
	if _, err := p.conn.Write(b); err != nil {
		return fmt.Errorf("bus: send: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.conn.Close()
}
