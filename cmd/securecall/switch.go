// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	ossignal "os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pion/securecall/internal/relay"
	"github.com/pion/securecall/pkg/signal"
	"github.com/urfave/cli/v2"
)

var switchFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "listen",
		Usage: "signaling websocket address",
		Value: ":8080",
	},
	&cli.StringFlag{
		Name:  "relay-listen",
		Usage: "UDP address of the media relay",
		Value: ":5000",
	},
	&cli.StringFlag{
		Name:  "relay-host",
		Usage: "relay host advertised to callers",
		Value: "127.0.0.1",
	},
	&cli.StringSliceFlag{
		Name:  "number",
		Usage: "restrict the switch to these numbers, use flag multiple times",
	},
	&cli.DurationFlag{
		Name:  "keepalive",
		Usage: "keep-alive interval for live sessions, 0 disables",
	},
	&cli.StringFlag{
		Name:  "server-message",
		Usage: "refuse every call with this message",
	},
}

func runSwitch(c *cli.Context) error {
	lf, err := loggerFactory(c)
	if err != nil {
		return err
	}
	log := lf.NewLogger("securecall")

	ctx, stop := ossignal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err = newRegistry(ctx, c.String("metrics-addr"), log); err != nil {
		return err
	}

	pc, err := net.ListenPacket("udp", c.String("relay-listen"))
	if err != nil {
		return err
	}
	r, err := relay.New(pc, relay.WithLoggerFactory(lf))
	if err != nil {
		_ = pc.Close()

		return err
	}
	defer func() { _ = r.Close() }()

	_, portStr, err := net.SplitHostPort(r.Addr().String())
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return err
	}

	opts := []signal.SwitchOption{signal.WithSwitchLoggerFactory(lf)}
	if numbers := c.StringSlice("number"); len(numbers) > 0 {
		opts = append(opts, signal.WithDirectory(numbers...))
	}
	if interval := c.Duration("keepalive"); interval > 0 {
		opts = append(opts, signal.WithKeepAlive(interval))
	}
	if text := c.String("server-message"); text != "" {
		opts = append(opts, signal.WithServerMessage(text))
	}
	sw, err := signal.NewSwitch(c.String("relay-host"), port, opts...)
	if err != nil {
		return err
	}

	return serveSwitch(ctx, c.String("listen"), sw, func(addr net.Addr) {
		log.Infof("switch on ws://%s, relay on %s", addr, r.Addr())
	})
}

// serveSwitch serves sw on addr until ctx is done.
func serveSwitch(ctx context.Context, addr string, sw *signal.Switch, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	srv := &http.Server{Handler: sw, ReadHeaderTimeout: 5 * time.Second}

	errs := make(chan error, 1)
	go func() { errs <- srv.Serve(ln) }()
	ready(ln.Addr())

	select {
	case <-ctx.Done():
		_ = srv.Close()
		<-errs

		return nil
	case err = <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	}
}
