package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"token_ticker/internal/engine"
	"token_ticker/internal/infra"
)

// Console is a text rendering of the ticker screen. It only reads the store.
type Console struct {
	feed        *engine.Feed
	lock        *UILock
	out         io.Writer
	refresh     time.Duration
	lockTimeout time.Duration
	live        func() int

	last string
}

// NewConsole creates a renderer. live reports the streaming slot (-1 for none)
// and may be nil.
func NewConsole(feed *engine.Feed, lock *UILock, out io.Writer, refresh, lockTimeout time.Duration, live func() int) *Console {
	if refresh <= 0 {
		refresh = time.Second
	}
	return &Console{
		feed:        feed,
		lock:        lock,
		out:         out,
		refresh:     refresh,
		lockTimeout: lockTimeout,
		live:        live,
	}
}

// Run redraws on every store change and on a timer until ctx is done.
func (c *Console) Run(ctx context.Context) {
	ticker := time.NewTicker(c.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.feed.Changed():
		case <-ticker.C:
		}
		c.Draw()
	}
}

// Draw renders the focused token once. It returns false when the UI lock
// could not be taken in time.
func (c *Console) Draw() bool {
	if !c.lock.Acquire(c.lockTimeout) {
		slog.Debug("Render skipped: UI lock busy")
		return false
	}
	line := c.compose()
	c.lock.Release()

	if line != c.last {
		fmt.Fprintln(c.out, line)
		c.last = line
	}
	return true
}

func (c *Console) compose() string {
	store := c.feed.Store()
	if !store.AllLoaded() {
		loaded := 0
		for i := 0; i < store.Len(); i++ {
			if store.Loaded(i) {
				loaded++
			}
		}
		return fmt.Sprintf("⏳ Loading prices %d/%d", loaded, store.Len())
	}

	focus := store.Focus()
	v, ok := store.Slot(focus)
	if !ok {
		return ""
	}

	color := infra.ColorReset
	switch v.Quote.ChangeDirection() {
	case "positive":
		color = infra.ColorGreen
	case "negative":
		color = infra.ColorRed
	}

	src := "REST"
	if c.live != nil && c.live() == focus {
		src = fmt.Sprintf("LIVE %dms", v.LatencyMs)
	}

	return fmt.Sprintf("[%d/%d] %-5s %s$%s %+.2f%%%s  H %s  L %s  %s  (%s)",
		focus+1, store.Len(), v.Token.Symbol,
		color, FormatPrice(v.Quote.Price), v.Quote.ChangePct, infra.ColorReset,
		FormatPrice(v.Quote.High24h), FormatPrice(v.Quote.Low24h),
		Sparkline(v.History), src)
}

// FormatPrice picks decimals by magnitude.
func FormatPrice(p float64) string {
	places := int32(2)
	switch {
	case p < 0.01:
		places = 6
	case p < 1:
		places = 4
	}
	return decimal.NewFromFloat(p).StringFixed(places)
}

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// Sparkline draws the chart history as block characters.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	var sb strings.Builder
	for _, v := range values {
		i := 0
		if hi > lo {
			i = int((v - lo) / (hi - lo) * float64(len(sparkLevels)-1))
		}
		sb.WriteRune(sparkLevels[i])
	}
	return sb.String()
}
