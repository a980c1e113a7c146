// Command polytokens prints the UP and DOWN token ids for Polymarket events,
// ready to paste into the [[markets]] section of config.toml.
//
// Usage:
//
//	polytokens https://polymarket.com/event/btc-updown-5m-1771442700
//	polytokens -discover bitcoin
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/alanyoungcy/polywatch/internal/domain"
	"github.com/alanyoungcy/polywatch/internal/platform/polymarket"
)

func main() {
	gammaHost := flag.String("gamma", polymarket.DefaultGammaURL, "Gamma API base URL")
	discover := flag.String("discover", "", "list active Up/Down markets under this tag instead")
	limit := flag.Int("limit", 200, "maximum markets to scan with -discover")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if *discover == "" && flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: polytokens <event-url-or-slug>... | -discover <tag>")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	gamma := polymarket.NewGammaClient(*gammaHost)

	if *discover != "" {
		pairs, err := gamma.DiscoverUpDown(ctx, *discover, *limit)
		if err != nil {
			logger.Error("discovery failed", slog.String("tag", *discover), slog.String("error", err.Error()))
			os.Exit(1)
		}
		for _, p := range pairs {
			printPair(os.Stdout, p)
		}
		return
	}

	failed := false
	for _, arg := range flag.Args() {
		p, err := gamma.Resolve(ctx, arg)
		if err != nil {
			logger.Error("resolve failed", slog.String("market", arg), slog.String("error", err.Error()))
			failed = true
			continue
		}
		printPair(os.Stdout, p)
	}
	if failed {
		os.Exit(1)
	}
}

func printPair(w io.Writer, p domain.MarketPair) {
	fmt.Fprintf(w, "# %s\n", p.Question)
	fmt.Fprintln(w, "[[markets]]")
	fmt.Fprintf(w, "label      = %q\n", p.Label)
	fmt.Fprintf(w, "up_token   = %q\n", p.Up.ID)
	fmt.Fprintf(w, "down_token = %q\n\n", p.Down.ID)
}
