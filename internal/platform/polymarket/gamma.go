package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polywatch/internal/domain"
)

// DefaultGammaURL is the Gamma API root.
const DefaultGammaURL = "https://gamma-api.polymarket.com"

// ErrNoTokens is returned when a market does not expose two outcome tokens.
var ErrNoTokens = errors.New("market does not expose an UP/DOWN token pair")

// GammaClient is the REST client for the Polymarket Gamma API, used to
// resolve event slugs into the token pair the feed subscribes to.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string) *GammaClient {
	if baseURL == "" {
		baseURL = DefaultGammaURL
	}
	return &GammaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// ExtractSlug accepts an event URL such as
// https://polymarket.com/event/btc-updown-5m-1771442700 or a bare slug and
// returns the slug.
func ExtractSlug(arg string) string {
	arg = strings.TrimSpace(arg)
	if !strings.HasPrefix(arg, "http") {
		return arg
	}
	u, err := url.Parse(arg)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	return parts[len(parts)-1]
}

// GetEventBySlug fetches one event and its markets.
func (g *GammaClient) GetEventBySlug(ctx context.Context, slug string) (APIEvent, error) {
	path := "/events/slug/" + url.PathEscape(slug)

	body, err := g.doGet(ctx, path)
	if err != nil {
		return APIEvent{}, fmt.Errorf("polymarket/gamma: get event %s: %w", slug, err)
	}

	var event APIEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return APIEvent{}, fmt.Errorf("polymarket/gamma: decode event: %w", err)
	}
	return event, nil
}

// Resolve turns an event URL or slug into the pair of instruments of the
// event's first market.
func (g *GammaClient) Resolve(ctx context.Context, identifier string) (domain.MarketPair, error) {
	slug := ExtractSlug(identifier)
	if slug == "" {
		return domain.MarketPair{}, fmt.Errorf("polymarket/gamma: cannot parse slug from %q", identifier)
	}
	event, err := g.GetEventBySlug(ctx, slug)
	if err != nil {
		return domain.MarketPair{}, err
	}
	if len(event.Markets) == 0 {
		return domain.MarketPair{}, fmt.Errorf("polymarket/gamma: event %s: %w: no markets", slug, domain.ErrNotFound)
	}

	m := event.Markets[0]
	if m.Question == "" {
		m.Question = event.Title
	}
	if m.Slug == "" {
		m.Slug = slug
	}
	pair, err := PairFromMarket(m)
	if err != nil {
		return domain.MarketPair{}, fmt.Errorf("polymarket/gamma: event %s: %w", slug, err)
	}
	return pair, nil
}

// DiscoverUpDown lists active "Up or Down" markets under a tag, e.g.
// "bitcoin". Markets without a usable token pair are skipped.
func (g *GammaClient) DiscoverUpDown(ctx context.Context, tagSlug string, limit int) ([]domain.MarketPair, error) {
	if limit <= 0 {
		limit = 200
	}
	params := url.Values{}
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("limit", strconv.Itoa(limit))
	if tagSlug != "" {
		params.Set("tag_slug", tagSlug)
	}

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: list markets: %w", err)
	}
	var markets []APIMarket
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}

	var out []domain.MarketPair
	for _, m := range markets {
		if !strings.Contains(strings.ToLower(m.Question), "up or down") &&
			!strings.Contains(strings.ToLower(m.Slug), "updown") {
			continue
		}
		pair, err := PairFromMarket(m)
		if err != nil {
			continue
		}
		out = append(out, pair)
	}
	return out, nil
}

// PairFromMarket maps a market's outcome tokens to UP and DOWN. Outcome
// names "up"/"yes" map to UP and "down"/"no" to DOWN, first against
// outcomeTokenIds, then clobTokenIds. Failing that, the first two
// clobTokenIds are taken in order.
func PairFromMarket(m APIMarket) (domain.MarketPair, error) {
	var up, down string
	byOutcome := func(tokens []string) {
		if len(m.Outcomes) == 0 || len(tokens) != len(m.Outcomes) {
			return
		}
		for i, name := range m.Outcomes {
			switch strings.ToLower(strings.TrimSpace(name)) {
			case "up", "yes":
				up = tokens[i]
			case "down", "no":
				down = tokens[i]
			}
		}
	}

	byOutcome(m.OutcomeTokenIDs)
	if up == "" || down == "" {
		byOutcome(m.ClobTokenIDs)
	}
	if (up == "" || down == "") && len(m.ClobTokenIDs) >= 2 {
		if up == "" {
			up = m.ClobTokenIDs[0]
		}
		if down == "" {
			down = m.ClobTokenIDs[1]
		}
	}
	if up == "" || down == "" {
		return domain.MarketPair{}, fmt.Errorf("%w: outcomes=%v tokens=%v", ErrNoTokens, m.Outcomes, m.ClobTokenIDs)
	}

	label := m.Slug
	if label == "" {
		label = m.ID
	}
	pair := domain.NewMarketPair(label, up, down)
	pair.Question = m.Question
	pair.Slug = m.Slug
	if err := pair.Validate(); err != nil {
		return domain.MarketPair{}, fmt.Errorf("%w: %v", ErrNoTokens, err)
	}
	return pair, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doGet sends an unauthenticated GET request to the Gamma API.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}

func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
