package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polywatch/internal/config"
	"github.com/alanyoungcy/polywatch/internal/domain"
)

// pairResolver looks up pairs by slug and by tag.
type pairResolver interface {
	Resolve(ctx context.Context, identifier string) (domain.MarketPair, error)
	DiscoverUpDown(ctx context.Context, tagSlug string, limit int) ([]domain.MarketPair, error)
}

// resolvePairs turns the configured markets into pairs, resolving slugs
// through Gamma and appending discovered markets. A configured label wins
// over the market slug. Discovered pairs whose label or tokens are already
// watched are skipped.
func resolvePairs(ctx context.Context, cfg *config.Config, gamma pairResolver, logger *slog.Logger) ([]domain.MarketPair, error) {
	var pairs []domain.MarketPair
	labels := make(map[string]bool)
	ids := make(map[string]bool)
	add := func(p domain.MarketPair) bool {
		if labels[p.Label] || ids[p.Up.ID] || ids[p.Down.ID] {
			return false
		}
		labels[p.Label] = true
		ids[p.Up.ID] = true
		ids[p.Down.ID] = true
		pairs = append(pairs, p)
		return true
	}

	for i, m := range cfg.Markets {
		var p domain.MarketPair
		if m.Resolved() {
			label := m.Label
			if label == "" {
				label = fmt.Sprintf("market-%d", i+1)
			}
			p = domain.NewMarketPair(label, m.UpToken, m.DownToken)
			p.Slug = m.Slug
		} else {
			resolved, err := gamma.Resolve(ctx, m.Slug)
			if err != nil {
				return nil, fmt.Errorf("app: resolve market %q: %w", m.Slug, err)
			}
			p = resolved
			if m.Label != "" {
				p = relabel(resolved, m.Label)
			}
			logger.InfoContext(ctx, "resolved market",
				slog.String("label", p.Label),
				slog.String("question", p.Question),
				slog.String("up", p.Up.ID),
				slog.String("down", p.Down.ID),
			)
		}
		if !add(p) {
			return nil, fmt.Errorf("app: market %q: label or token ids watched twice", p.Label)
		}
	}

	if cfg.Discover.Enabled {
		found, err := gamma.DiscoverUpDown(ctx, cfg.Discover.TagSlug, cfg.Discover.Limit)
		if err != nil {
			return nil, fmt.Errorf("app: discover markets: %w", err)
		}
		n := 0
		for _, p := range found {
			if add(p) {
				n++
			}
		}
		logger.InfoContext(ctx, "discovered markets",
			slog.String("tag", cfg.Discover.TagSlug),
			slog.Int("found", len(found)),
			slog.Int("added", n),
		)
	}

	if len(pairs) == 0 {
		return nil, fmt.Errorf("app: no markets to watch: %w", domain.ErrNotFound)
	}
	return pairs, nil
}

func relabel(p domain.MarketPair, label string) domain.MarketPair {
	out := domain.NewMarketPair(label, p.Up.ID, p.Down.ID)
	out.Question = p.Question
	out.Slug = p.Slug
	return out
}
