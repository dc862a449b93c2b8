package infra

import (
	"fmt"
	"io"
	"strings"
)

// ANSI Color Codes
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
)

// PrintBanner writes the startup banner with the tracked tokens.
func PrintBanner(w io.Writer, cfg *Config, symbols []string) {
	color := ColorCyan
	stream := cfg.API.Gate.WSURL
	if cfg.Notify.Redis.Addr == "" {
		color = ColorYellow
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s###########################################################%s\n", color, ColorReset)
	fmt.Fprintf(w, "%s#                                                         #%s\n", color, ColorReset)
	fmt.Fprintf(w, "%s#               📈 Token Ticker                           #%s\n", color, ColorReset)
	fmt.Fprintf(w, "%s#                                                         #%s\n", color, ColorReset)
	fmt.Fprintf(w, "%s#   TOKENS:  %-44s #%s\n", color, strings.Join(symbols, " "), ColorReset)
	fmt.Fprintf(w, "%s#   STREAM:  %-44s #%s\n", color, stream, ColorReset)
	fmt.Fprintf(w, "%s#   VERSION: %-44s #%s\n", color, cfg.App.Version, ColorReset)
	fmt.Fprintf(w, "%s#                                                         #%s\n", color, ColorReset)

	if cfg.Notify.Redis.Addr == "" {
		fmt.Fprintf(w, "%s#   ⚠️  No redis bridge: alerts go to the log only         #%s\n", ColorYellow, ColorReset)
	}

	fmt.Fprintf(w, "%s###########################################################%s\n", color, ColorReset)
	fmt.Fprintln(w)
}
