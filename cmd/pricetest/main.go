package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"token_ticker/internal/domain"
	"token_ticker/internal/engine"
	"token_ticker/internal/infra"
	"token_ticker/internal/infra/gate"
	"token_ticker/internal/poller"
	"token_ticker/internal/render"
)

// pricetest runs one first fetch against Gate.io and prints the result table.
func main() {
	tokens := flag.String("tokens", domain.DefaultSelection, "comma separated token IDs")
	restURL := flag.String("rest", infra.DefaultConfig().API.Gate.RestURL, "Gate.io REST base URL")
	timeout := flag.Duration("timeout", 60*time.Second, "overall deadline")
	flag.Parse()

	selection := domain.ParseSelection(*tokens)
	if len(selection) == 0 {
		fmt.Fprintf(os.Stderr, "no known tokens in %q\n", *tokens)
		os.Exit(2)
	}

	fmt.Println("=== Token Ticker First Fetch ===")
	fmt.Println()

	store := engine.NewPriceStore(selection)
	feed := engine.NewFeed(store, nil)
	client := gate.NewRESTClient(gate.RESTConfig{BaseURL: *restURL})
	p := poller.New(client, feed, poller.DefaultConfig())

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	loaded := p.FirstFetch(ctx)

	for _, v := range store.Snapshot() {
		status := "✅"
		if !v.Loaded {
			status = "❌"
		}
		fmt.Printf("%s %-5s $%-14s %+7.2f%%  H %-14s L %-14s %s\n",
			status, v.Token.Symbol, render.FormatPrice(v.Quote.Price), v.Quote.ChangePct,
			render.FormatPrice(v.Quote.High24h), render.FormatPrice(v.Quote.Low24h),
			render.Sparkline(v.History))
	}

	fmt.Println()
	fmt.Printf("📊 %d/%d fetched in %s\n", loaded, len(selection), time.Since(start).Round(time.Millisecond))
	if !store.AllLoaded() {
		os.Exit(1)
	}
}
