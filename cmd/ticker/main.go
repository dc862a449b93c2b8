package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"token_ticker/internal/app"
	"token_ticker/internal/infra"
)

func main() {
	configPath := flag.String("config", infra.ResolveConfigPath(), "path to config.yaml")
	tokens := flag.String("tokens", "", "comma separated token IDs (saved for next start)")
	flag.Parse()

	// 1. System Bootstrapping
	ticker, err := app.Bootstrap(*configPath, *tokens, os.Stdout)
	if err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer ticker.Shutdown()

	infra.PrintBanner(os.Stdout, ticker.Config, ticker.Symbols())

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. First fetch, then poller, stream, metrics, and console
	if err := ticker.Run(ctx); err != nil {
		slog.Error("❌ Startup failed", slog.Any("error", err))
		return
	}

	// 4. Enter moves to the next token
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			idx := ticker.Next()
			slog.Info("👉 Focus", slog.String("symbol", ticker.Tokens[idx].Symbol))
		}
	}()

	slog.InfoContext(ctx, "✨ Token Ticker operational. Enter = next token, Ctrl+C = exit.")

	<-ctx.Done()
	slog.Info("👋 Shutting down gracefully...")
}
