// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sms

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/taibuivan/yomira-passport/internal/platform/apperr"
	"github.com/taibuivan/yomira-passport/internal/platform/pool"
)

// # Gateway Sender

// Gateway protocol timings.
const (
	gatewayDialTimeout  = 3 * time.Second
	gatewayWriteTimeout = 2 * time.Second
	gatewayReadTimeout  = 5 * time.Second
)

// gatewayConn is a single line-protocol connection to the SMS gateway.
// It satisfies [pool.Conn].
type gatewayConn struct {
	raw    net.Conn
	reader *bufio.Reader
	broken bool
}

// Valid reports whether the connection can still carry requests.
func (connection *gatewayConn) Valid() bool {
	return connection.raw != nil && !connection.broken
}

// Close tears down the underlying TCP connection.
func (connection *gatewayConn) Close() error {
	if connection.raw == nil {
		return nil
	}
	return connection.raw.Close()
}

// send writes one SEND command and waits for the gateway's reply line.
// Any transport error marks the connection broken so the pool rebuilds it.
func (connection *gatewayConn) send(mobile, code string) error {
	deadline := time.Now().Add(gatewayWriteTimeout)
	if err := connection.raw.SetWriteDeadline(deadline); err != nil {
		connection.broken = true
		return err
	}

	if _, err := fmt.Fprintf(connection.raw, "SEND %s %s\n", mobile, code); err != nil {
		connection.broken = true
		return err
	}

	if err := connection.raw.SetReadDeadline(time.Now().Add(gatewayReadTimeout)); err != nil {
		connection.broken = true
		return err
	}

	reply, err := connection.reader.ReadString('\n')
	if err != nil {
		connection.broken = true
		return err
	}

	if strings.TrimSpace(reply) != "OK" {
		return fmt.Errorf("sms: gateway rejected delivery: %q", strings.TrimSpace(reply))
	}

	return nil
}

// GatewaySender delivers codes through the SMS gateway over a bounded pool
// of persistent connections.
type GatewaySender struct {
	pool   *pool.Pool[*gatewayConn]
	logger *slog.Logger
}

/*
NewGatewaySender dials the gateway and fills the connection pool.

Parameters:
  - ctx: context.Context (bounds the initial dials)
  - addr: string (host:port of the gateway)
  - poolSize: int
  - logger: *slog.Logger

Returns:
  - *GatewaySender: Ready sender
  - error: Invalid pool size
*/
func NewGatewaySender(ctx context.Context, addr string, poolSize int, logger *slog.Logger) (*GatewaySender, error) {
	factory := func(ctx context.Context) (*gatewayConn, error) {
		dialer := net.Dialer{Timeout: gatewayDialTimeout}
		raw, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("sms: gateway dial failed: %w", err)
		}
		return &gatewayConn{raw: raw, reader: bufio.NewReader(raw)}, nil
	}

	connectionPool, err := pool.New(ctx, poolSize, factory, logger)
	if err != nil {
		return nil, err
	}

	return &GatewaySender{pool: connectionPool, logger: logger}, nil
}

/*
Send delivers a code to the mobile number through a pooled connection.

Description: Acquires a lease (blocking up to the pool's acquire bound),
performs one request/reply exchange, and releases the lease on every path.

Parameters:
  - ctx: context.Context
  - mobile: string
  - code: string

Returns:
  - error: ServiceUnavailable on pool exhaustion or gateway failure
*/
func (sender *GatewaySender) Send(ctx context.Context, mobile, code string) error {
	lease, err := sender.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Close()

	if err := lease.Conn().send(mobile, code); err != nil {
		sender.logger.Warn("sms_gateway_send_failed",
			slog.String("mobile", mobile),
			slog.Any("error", err),
		)
		return apperr.ServiceUnavailable("SMS gateway request failed").WithCause(err)
	}

	return nil
}

// Close shuts down the connection pool.
func (sender *GatewaySender) Close() {
	sender.pool.Close()
}
