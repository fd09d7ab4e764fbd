package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"greenhouse_monitor/internal/models"
	"greenhouse_monitor/internal/realtime"

	"github.com/spf13/cobra"
)

const defaultHistoryLimit = 20

// errOutput wraps failures to deliver a reading locally; reconnecting cannot fix those.
var errOutput = errors.New("write reading")

type watchOptions struct {
	retries    int
	noFallback bool
	noCache    bool
}

func newWatchCmd(c *cli) *cobra.Command {
	var opts watchOptions
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow live readings, falling back to polling when the feed is unavailable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.watch(cmd.Context(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.retries, "retries", 3, "consecutive reconnect attempts before polling")
	cmd.Flags().BoolVar(&opts.noFallback, "no-fallback", false, "exit instead of polling when the feed fails")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "do not store received readings locally")
	return cmd
}

func (c *cli) watch(ctx context.Context, opts watchOptions) error {
	header := http.Header{}
	if token, err := c.repos.Session.Token(ctx); err == nil && token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	transport := realtime.NewStompTransport(realtime.StompOptions{
		PingInterval:      c.cfg.Realtime.PingInterval,
		ConnectTimeout:    c.cfg.Realtime.ConnectTimeout,
		ReceiptTimeout:    c.cfg.Realtime.ReceiptTimeout,
		DisconnectTimeout: c.cfg.Realtime.DisconnectTimeout,
		Header:            header,
	}, c.log.Named("stomp"))
	mgr, err := realtime.NewManager(transport, realtime.ManagerOptions{
		BaseURL:        c.cfg.API.BaseURL,
		ReconnectDelay: c.cfg.Realtime.ReconnectDelay,
		Log:            c.log.Named("realtime"),
	})
	if err != nil {
		return err
	}
	defer mgr.Disconnect(context.WithoutCancel(ctx))
	stopStateLog := c.startStateLog(ctx, mgr)
	defer stopStateLog()

	poller := realtime.NewPoller(c.api, c.cfg.Polling.Interval, c.cfg.Polling.MaxBackoff, c.log.Named("poller"))
	sink := func(m models.GreenhouseMessage) error { return c.emitMessage(ctx, m, !opts.noCache) }

	err = c.follow(ctx, mgr, poller, opts.retries, sink)
	if ctx.Err() != nil {
		return nil
	}
	if opts.noFallback || errors.Is(err, errOutput) {
		return err
	}
	c.log.Warnw("realtime_unavailable_polling", "err", err, "interval", c.cfg.Polling.Interval)
	mgr.Disconnect(ctx)

	if err := poller.Run(ctx, sink); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// follow connects and consumes the feed, reconnecting until retries consecutive
// attempts have failed. A session that delivered messages resets the count.
func (c *cli) follow(ctx context.Context, mgr *realtime.Manager, poller *realtime.Poller, retries int,
	sink func(models.GreenhouseMessage) error) error {
	err := mgr.Connect(ctx)
	for {
		if err == nil {
			err = c.consume(ctx, mgr, poller, sink)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, errOutput) {
			return err
		}
		if mgr.State().ReconnectAttempts > retries {
			return err
		}
		c.log.Infow("realtime_reconnecting", "err", err, "attempts", mgr.State().ReconnectAttempts)
		err = mgr.Reconnect(ctx)
	}
}

func (c *cli) consume(ctx context.Context, mgr *realtime.Manager, poller *realtime.Poller,
	sink func(models.GreenhouseMessage) error) error {
	stream, err := mgr.SubscribeToMessages(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()

	for msg, err := range stream.All(ctx) {
		if err != nil {
			return err
		}
		if mgr.State().ReconnectAttempts > 0 {
			mgr.ResetReconnectAttempts()
		}
		poller.MarkSeen(msg)
		if err := sink(msg); err != nil {
			return fmt.Errorf("%w: %w", errOutput, err)
		}
	}
	return realtime.ErrStreamClosed
}

// startStateLog logs connection state changes until the returned stop func is called.
func (c *cli) startStateLog(ctx context.Context, mgr *realtime.Manager) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.logConnectionStates(ctx, mgr)
	}()
	return func() {
		cancel()
		<-done
	}
}

func (c *cli) logConnectionStates(ctx context.Context, mgr *realtime.Manager) {
	states, cancel := mgr.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case st := <-states:
			c.log.Debugw("realtime_state",
				"connected", st.IsConnected,
				"messages", st.MessagesReceived,
				"attempts", st.ReconnectAttempts,
				"last_error", st.LastError)
		}
	}
}

// emitMessage prints one reading as a JSON line and optionally caches it.
func (c *cli) emitMessage(ctx context.Context, m models.GreenhouseMessage, cache bool) error {
	if cache {
		if err := c.repos.Messages.Append(ctx, m); err != nil {
			c.log.Warnw("message_cache_failed", "err", err, "greenhouse", m.GreenhouseID)
		}
	}
	return json.NewEncoder(c.out).Encode(m)
}

func newPublishCmd(c *cli) *cobra.Command {
	var topic string
	var qos int
	cmd := &cobra.Command{
		Use:   "publish PAYLOAD",
		Short: "Publish a payload to an actuator topic, e.g. greenhouse/001/sector/1",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(topic) == "" {
				return errors.New("--topic is required")
			}
			if err := c.api.PublishCustom(cmd.Context(), topic, qos, payloadArg(args[0])); err != nil {
				return fmt.Errorf("publish: %w", err)
			}
			fmt.Fprintf(c.out, "Published to %s\n", topic)
			return nil
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "destination topic")
	cmd.Flags().IntVar(&qos, "qos", 0, "quality of service, 0 to 2")
	return cmd
}

// payloadArg sends valid JSON as is and anything else as a JSON string.
func payloadArg(arg string) any {
	raw := json.RawMessage(strings.TrimSpace(arg))
	if json.Valid(raw) {
		return raw
	}
	return arg
}

func newHistoryCmd(c *cli) *cobra.Command {
	var limit int
	var cached bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent readings from the backend or the local cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var msgs []models.GreenhouseMessage
			var err error
			if cached {
				msgs, err = c.repos.Messages.Recent(ctx, limit)
			} else {
				msgs, err = c.api.RecentMessages(ctx)
				if len(msgs) > limit && limit > 0 {
					msgs = msgs[len(msgs)-limit:]
				}
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(c.out)
			for _, m := range msgs {
				if err := enc.Encode(m); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", defaultHistoryLimit, "maximum number of readings")
	cmd.Flags().BoolVar(&cached, "cached", false, "read the local cache instead of the backend")
	return cmd
}
