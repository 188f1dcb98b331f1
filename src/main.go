package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"personal/cordterm/src/client"
	"personal/cordterm/src/config"
	"personal/cordterm/src/gateway"
	"personal/cordterm/src/logging"
	"personal/cordterm/src/terminal"
)

func main() {
	envFile := flag.String("env", ".env", "env file to load before reading the environment")
	configPath := flag.String("config", os.Getenv("CORDTERM_CONFIG"), "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*envFile, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cordterm: %v\n", err)
		os.Exit(2)
	}
	logger := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("exiting", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	rest := client.NewClient(cfg.Token, client.Options{
		BaseURL:   cfg.APIURL,
		TokenType: cfg.TokenType,
		Timeout:   cfg.HTTPTimeout,
		Logger:    logger,
	})

	endpoint := cfg.GatewayURL
	if endpoint == "" {
		u, err := rest.Gateway(ctx)
		if err != nil {
			logger.Warn("gateway lookup failed, using default", "error", err)
			u = gateway.DefaultGatewayURL
		}
		endpoint = u
	}

	if cfg.ChannelID != "" {
		if ch, err := rest.Channel(ctx, cfg.ChannelID); err != nil {
			logger.Warn("could not look up channel", "channel_id", cfg.ChannelID, "error", err)
		} else {
			logger.Info("sending to channel", "channel", ch.DisplayName())
		}
	}

	conn, err := gateway.Connect(ctx, endpoint, gateway.DialOptions{
		HandshakeTimeout: cfg.HandshakeTimeout,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	sink := terminal.NewSink(os.Stdout, cfg.DisplayBuffer, logger)
	sinkDone := make(chan struct{})
	go func() {
		defer close(sinkDone)
		sink.Run()
	}()

	session := gateway.NewSession(conn, gateway.SessionConfig{
		Token:             cfg.Token,
		PresenceChannelID: cfg.ChannelID,
		InboundCapacity:   cfg.InboundCapacity,
		Identify:          gateway.IdentifyOptions{Delay: cfg.IdentifyDelay, Compress: cfg.Compress},
	}, rest, sink, logger)

	promptCtx, stopPrompt := context.WithCancel(ctx)
	defer stopPrompt()
	if cfg.ChannelID != "" {
		go func() {
			if err := terminal.NewPrompt(os.Stdin, rest, cfg.ChannelID, logger).Run(promptCtx); err != nil {
				logger.Warn("prompt stopped", "error", err)
			}
		}()
	}

	err = session.Run(ctx)
	stopPrompt()
	sink.Close()
	<-sinkDone

	if dropped := sink.Dropped(); dropped > 0 {
		logger.Warn("display dropped lines", "count", dropped)
	}

	var closed *gateway.ClosedError
	if errors.As(err, &closed) && closed.Cause == nil {
		return nil
	}
	return err
}
