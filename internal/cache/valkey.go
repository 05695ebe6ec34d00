package cache

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// ValkeyConfig holds connection parameters for a Valkey/Redis-compatible
// server.
type ValkeyConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxRetries   int
	TLS          bool
}

// ValkeyProvider implements Provider over a plain RESP connection. It dials
// per operation, which keeps the provider stateless; the analysis cache is
// read rarely enough that connection pooling is not worth its complexity
// here.
type ValkeyProvider struct {
	cfg ValkeyConfig
}

// NewValkeyProvider creates a Provider and pings the target once to fail
// fast on bad credentials or connectivity.
func NewValkeyProvider(cfg ValkeyConfig) (*ValkeyProvider, error) {
	if cfg.Addr == "" {
		return nil, errors.New("valkey addr is required")
	}
	cfg.applyDefaults()

	p := &ValkeyProvider{cfg: cfg}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := p.ping(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (cfg *ValkeyConfig) applyDefaults() {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 500 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 500 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
}

// Get fetches bytes by key, returning ErrCacheMiss when the key is absent.
func (p *ValkeyProvider) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := p.roundTrip(ctx, func(c *respConn) error {
		if err := c.command("GET", key); err != nil {
			return err
		}
		rep, err := c.reply()
		if err != nil {
			return err
		}
		switch rep.kind {
		case kindNil:
			return ErrCacheMiss
		case kindBulk:
			payload = rep.data
			return nil
		default:
			return fmt.Errorf("unexpected GET reply kind %q", rep.kind)
		}
	})
	return payload, err
}

// Set stores bytes with the provided TTL. A zero TTL stores without expiry.
func (p *ValkeyProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.roundTrip(ctx, func(c *respConn) error {
		args := []string{key, string(value)}
		if ttl > 0 {
			args = append(args, "PX", strconv.FormatInt(ttl.Milliseconds(), 10))
		}
		if err := c.command("SET", args...); err != nil {
			return err
		}
		rep, err := c.reply()
		if err != nil {
			return err
		}
		if rep.kind != kindSimple || string(rep.data) != "OK" {
			return fmt.Errorf("unexpected SET reply: %s", rep.data)
		}
		return nil
	})
}

// Del removes a key.
func (p *ValkeyProvider) Del(ctx context.Context, key string) error {
	return p.roundTrip(ctx, func(c *respConn) error {
		if err := c.command("DEL", key); err != nil {
			return err
		}
		_, err := c.reply()
		return err
	})
}

// Close is a no-op for the stateless provider.
func (p *ValkeyProvider) Close() error { return nil }

func (p *ValkeyProvider) ping(ctx context.Context) error {
	return p.roundTrip(ctx, func(c *respConn) error {
		if err := c.command("PING"); err != nil {
			return err
		}
		rep, err := c.reply()
		if err != nil {
			return err
		}
		if rep.kind != kindSimple || string(rep.data) != "PONG" {
			return fmt.Errorf("unexpected PING reply: %s", rep.data)
		}
		return nil
	})
}

// roundTrip dials, authenticates and runs fn, retrying timeouts up to
// MaxRetries with a small exponential backoff.
func (p *ValkeyProvider) roundTrip(ctx context.Context, fn func(*respConn) error) error {
	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := p.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) || attempt == p.cfg.MaxRetries-1 {
			return err
		}
		time.Sleep(time.Duration(1<<attempt) * 25 * time.Millisecond)
	}
	return lastErr
}

func (p *ValkeyProvider) attempt(ctx context.Context, fn func(*respConn) error) error {
	c, err := p.dial(ctx)
	if err != nil {
		return err
	}
	defer c.conn.Close()

	if err := p.handshake(c); err != nil {
		return err
	}
	return fn(c)
}

func (p *ValkeyProvider) dial(ctx context.Context) (*respConn, error) {
	dialer := net.Dialer{Timeout: dialBudget(ctx, p.cfg.DialTimeout)}

	var (
		conn net.Conn
		err  error
	)
	if p.cfg.TLS {
		host := p.cfg.Addr
		if h, _, splitErr := net.SplitHostPort(p.cfg.Addr); splitErr == nil {
			host = h
		}
		conn, err = tls.DialWithDialer(&dialer, "tcp", p.cfg.Addr, &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: host,
		})
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", p.cfg.Addr)
	}
	if err != nil {
		return nil, err
	}

	return &respConn{
		conn:         conn,
		r:            bufio.NewReader(conn),
		w:            bufio.NewWriter(conn),
		readTimeout:  p.cfg.ReadTimeout,
		writeTimeout: p.cfg.WriteTimeout,
	}, nil
}

func (p *ValkeyProvider) handshake(c *respConn) error {
	if p.cfg.Password != "" {
		args := []string{p.cfg.Password}
		if p.cfg.Username != "" {
			args = []string{p.cfg.Username, p.cfg.Password}
		}
		if err := c.command("AUTH", args...); err != nil {
			return err
		}
		if err := c.expectOK("auth"); err != nil {
			return err
		}
	}
	if p.cfg.DB > 0 {
		if err := c.command("SELECT", strconv.Itoa(p.cfg.DB)); err != nil {
			return err
		}
		if err := c.expectOK("select"); err != nil {
			return err
		}
	}
	return nil
}

// replyKind enumerates the subset of RESP types the provider understands.
type replyKind string

const (
	kindSimple replyKind = "+"
	kindBulk   replyKind = "$"
	kindInt    replyKind = ":"
	kindNil    replyKind = "_"
)

type respReply struct {
	kind replyKind
	data []byte
}

// respConn wraps one network connection with RESP framing.
type respConn struct {
	conn         net.Conn
	r            *bufio.Reader
	w            *bufio.Writer
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (c *respConn) command(name string, args ...string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	fmt.Fprintf(c.w, "*%d\r\n", len(args)+1)
	for _, part := range append([]string{name}, args...) {
		fmt.Fprintf(c.w, "$%d\r\n%s\r\n", len(part), part)
	}
	return c.w.Flush()
}

func (c *respConn) reply() (respReply, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return respReply{}, err
	}
	prefix, err := c.r.ReadByte()
	if err != nil {
		return respReply{}, err
	}

	switch prefix {
	case '+':
		line, err := c.line()
		return respReply{kind: kindSimple, data: line}, err
	case '-':
		line, err := c.line()
		if err != nil {
			return respReply{}, err
		}
		return respReply{}, errors.New(string(line))
	case ':':
		line, err := c.line()
		return respReply{kind: kindInt, data: line}, err
	case '$':
		line, err := c.line()
		if err != nil {
			return respReply{}, err
		}
		size, err := strconv.Atoi(string(line))
		if err != nil {
			return respReply{}, err
		}
		if size < 0 {
			return respReply{kind: kindNil}, nil
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(c.r, buf); err != nil {
			return respReply{}, err
		}
		if buf[size] != '\r' || buf[size+1] != '\n' {
			return respReply{}, fmt.Errorf("invalid bulk termination")
		}
		return respReply{kind: kindBulk, data: buf[:size]}, nil
	default:
		return respReply{}, fmt.Errorf("unexpected RESP prefix %q", prefix)
	}
}

func (c *respConn) line() ([]byte, error) {
	line, err := c.r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}

func (c *respConn) expectOK(op string) error {
	rep, err := c.reply()
	if err != nil {
		return err
	}
	if rep.kind != kindSimple || !strings.EqualFold(string(rep.data), "OK") {
		return fmt.Errorf("%s failed: %s", op, rep.data)
	}
	return nil
}

func dialBudget(ctx context.Context, d time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && (d <= 0 || remaining < d) {
			return remaining
		}
	}
	if d <= 0 {
		return time.Millisecond
	}
	return d
}

func retryable(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
