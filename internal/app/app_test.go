package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/alanyoungcy/polywatch/internal/config"
	"github.com/alanyoungcy/polywatch/internal/domain"
	"github.com/alanyoungcy/polywatch/internal/notify"
	"github.com/alanyoungcy/polywatch/internal/pipeline"
)

type fakeGamma struct {
	bySlug     map[string]domain.MarketPair
	discovered []domain.MarketPair
	err        error
}

func (f *fakeGamma) Resolve(_ context.Context, identifier string) (domain.MarketPair, error) {
	if f.err != nil {
		return domain.MarketPair{}, f.err
	}
	p, ok := f.bySlug[identifier]
	if !ok {
		return domain.MarketPair{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakeGamma) DiscoverUpDown(context.Context, string, int) ([]domain.MarketPair, error) {
	return f.discovered, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolvePairs(t *testing.T) {
	resolved := domain.NewMarketPair("btc-updown-5m", "r-up", "r-down")
	resolved.Question = "Bitcoin Up or Down?"
	resolved.Slug = "btc-updown-5m"

	gamma := &fakeGamma{
		bySlug: map[string]domain.MarketPair{"btc-updown-5m": resolved},
		discovered: []domain.MarketPair{
			domain.NewMarketPair("eth", "e-up", "e-down"),
			domain.NewMarketPair("dup-tokens", "a-up", "x"),
			domain.NewMarketPair("btc", "n1", "n2"),
		},
	}
	cfg := config.Defaults()
	cfg.Markets = []config.MarketConfig{
		{Label: "btc", UpToken: "a-up", DownToken: "a-down"},
		{Label: "btc-5m", Slug: "btc-updown-5m"},
		{UpToken: "b-up", DownToken: "b-down"},
	}
	cfg.Discover.Enabled = true

	pairs, err := resolvePairs(context.Background(), &cfg, gamma, testLogger())
	if err != nil {
		t.Fatalf("resolvePairs: %v", err)
	}

	var labels []string
	for _, p := range pairs {
		labels = append(labels, p.Label)
	}
	if got := strings.Join(labels, ","); got != "btc,btc-5m,market-3,eth" {
		t.Fatalf("labels = %s", got)
	}
	if pairs[1].Question != "Bitcoin Up or Down?" || pairs[1].Up.ID != "r-up" || pairs[1].Up.Label != "btc-5m UP" {
		t.Errorf("relabelled pair = %+v", pairs[1])
	}
}

func TestResolvePairsErrors(t *testing.T) {
	cfg := config.Defaults()
	cfg.Markets = []config.MarketConfig{{Slug: "missing"}}
	_, err := resolvePairs(context.Background(), &cfg, &fakeGamma{}, testLogger())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unresolvable slug: err = %v", err)
	}

	cfg.Markets = []config.MarketConfig{
		{Label: "a", UpToken: "1", DownToken: "2"},
		{Label: "a", UpToken: "3", DownToken: "4"},
	}
	if _, err := resolvePairs(context.Background(), &cfg, &fakeGamma{}, testLogger()); err == nil {
		t.Error("duplicate label accepted")
	}

	cfg.Markets = nil
	cfg.Discover.Enabled = true
	_, err = resolvePairs(context.Background(), &cfg, &fakeGamma{}, testLogger())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("empty discovery: err = %v", err)
	}
}

func TestWireWithoutBackends(t *testing.T) {
	cfg := config.Defaults()
	cfg.Markets = []config.MarketConfig{{Label: "btc", UpToken: "up", DownToken: "down"}}

	deps, cleanup, err := Wire(context.Background(), &cfg, testLogger())
	if err != nil {
		t.Fatalf("Wire: %v", err)
	}
	defer cleanup()

	if deps.WindowStore != nil || deps.QuoteCache != nil || deps.BlobWriter != nil {
		t.Error("disabled backends were wired")
	}
	if got := deps.Watcher.InstrumentIDs(); len(got) != 2 {
		t.Errorf("instrument ids = %v", got)
	}
	if deps.Notifier.Enabled() {
		t.Error("notifier enabled without senders")
	}

	a := New(&cfg, testLogger(), &bytes.Buffer{}, false)
	sinks := a.sinks(deps)
	if len(sinks) != 1 || sinks[0].Name() != "alerts" {
		t.Errorf("sinks = %v", sinks)
	}
	h := a.handlers(deps)
	if h.Archive != nil || h.Metrics == nil || h.Health == nil {
		t.Errorf("handlers = %+v", h)
	}
}

func TestFeedDownHook(t *testing.T) {
	if hook := feedDownHook(notify.NewNotifier(nil, nil, testLogger()), testLogger()); hook != nil {
		t.Error("hook installed without senders")
	}
	var _ pipeline.Alerter = (*notify.Notifier)(nil)
}
