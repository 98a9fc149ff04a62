package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"stocktimus/interfaces"
	"strconv"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	defaultAlpacaDataURL = "https://data.alpaca.markets"
	snapshotPageSize     = 1000
	maxSnapshotPages     = 20
)

// AlpacaConfig configures the Alpaca market data gateway
type AlpacaConfig struct {
	APIKey      string
	SecretKey   string
	DataURL     string
	StockFeed   string // "iex" or "sip"
	OptionsFeed string // "indicative" or "opra"
	Timeout     time.Duration
}

// AlpacaGateway serves underlying prices and option chains from Alpaca
type AlpacaGateway struct {
	apiKey      string
	secretKey   string
	baseURL     string
	stockFeed   string
	optionsFeed string
	stocks      *marketdata.Client
	client      *http.Client
	logger      *logrus.Logger
}

// NewAlpacaGateway creates a new Alpaca gateway
func NewAlpacaGateway(cfg AlpacaConfig, logger *logrus.Logger) *AlpacaGateway {
	if logger == nil {
		logger = newDefaultLogger()
	}
	if cfg.DataURL == "" {
		cfg.DataURL = defaultAlpacaDataURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	baseURL := strings.TrimRight(cfg.DataURL, "/")
	httpClient := &http.Client{Timeout: cfg.Timeout}

	return &AlpacaGateway{
		apiKey:      cfg.APIKey,
		secretKey:   cfg.SecretKey,
		baseURL:     baseURL,
		stockFeed:   cfg.StockFeed,
		optionsFeed: cfg.OptionsFeed,
		stocks: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:     cfg.APIKey,
			APISecret:  cfg.SecretKey,
			BaseURL:    baseURL,
			HTTPClient: httpClient,
		}),
		client: httpClient,
		logger: logger,
	}
}

// alpacaSnapshotsResponse represents Alpaca's option chain snapshot response
type alpacaSnapshotsResponse struct {
	Snapshots     map[string]alpacaOptionSnapshot `json:"snapshots"`
	NextPageToken *string                         `json:"next_page_token"`
}

// alpacaOptionSnapshot represents the latest data for one option contract
type alpacaOptionSnapshot struct {
	LatestQuote       *alpacaQuote  `json:"latestQuote"`
	LatestTrade       *alpacaTrade  `json:"latestTrade"`
	DailyBar          *alpacaBar    `json:"dailyBar"`
	Greeks            *alpacaGreeks `json:"greeks"`
	ImpliedVolatility *float64      `json:"impliedVolatility"`
}

type alpacaQuote struct {
	Timestamp time.Time `json:"t"`
	BidPrice  float64   `json:"bp"`
	AskPrice  float64   `json:"ap"`
	BidSize   int       `json:"bs"`
	AskSize   int       `json:"as"`
}

type alpacaTrade struct {
	Timestamp time.Time `json:"t"`
	Price     float64   `json:"p"`
	Size      int       `json:"s"`
}

type alpacaBar struct {
	Volume int64 `json:"v"`
}

type alpacaGreeks struct {
	Delta *float64 `json:"delta"`
	Gamma *float64 `json:"gamma"`
	Theta *float64 `json:"theta"`
	Vega  *float64 `json:"vega"`
	Rho   *float64 `json:"rho"`
}

// CurrentPrice returns the latest trade price of the underlying
func (g *AlpacaGateway) CurrentPrice(ctx context.Context, ticker string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	trade, err := g.stocks.GetLatestTrade(ticker, marketdata.GetLatestTradeRequest{
		Feed: marketdata.Feed(g.stockFeed),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: latest trade for %s: %v", ErrUpstreamUnavailable, ticker, err)
	}
	if trade == nil {
		return 0, nil
	}

	g.logger.WithFields(logrus.Fields{
		"ticker": ticker,
		"price":  trade.Price,
	}).Debug("Fetched underlying price")
	return trade.Price, nil
}

// FindContracts lists option contracts of the underlying matching the query,
// sorted by expiration, strike and symbol
func (g *AlpacaGateway) FindContracts(ctx context.Context, query interfaces.ContractQuery) ([]interfaces.OptionQuote, error) {
	underlying := strings.ToUpper(strings.TrimSpace(query.Ticker))
	params := g.snapshotParams(query)

	g.logger.WithFields(logrus.Fields{
		"underlying": underlying,
		"filters":    params.Encode(),
	}).Debug("Fetching option snapshots")

	var quotes []interfaces.OptionQuote
	pageToken := ""
	for page := 0; page < maxSnapshotPages; page++ {
		if pageToken != "" {
			params.Set("page_token", pageToken)
		}

		resp, err := g.fetchSnapshots(ctx, underlying, params)
		if err != nil {
			return nil, err
		}

		for symbol, snapshot := range resp.Snapshots {
			quote, err := snapshotToQuote(symbol, snapshot)
			if err != nil {
				g.logger.WithError(err).WithField("symbol", symbol).Warn("Skipping unparseable option symbol")
				continue
			}
			if !matchesQuery(quote, query) {
				continue
			}
			quotes = append(quotes, quote)
		}

		if resp.NextPageToken == nil || *resp.NextPageToken == "" {
			break
		}
		pageToken = *resp.NextPageToken
	}

	sort.Slice(quotes, func(i, j int) bool {
		a, b := quotes[i], quotes[j]
		if !a.Expiration.Equal(b.Expiration) {
			return a.Expiration.Before(b.Expiration)
		}
		if a.Strike != b.Strike {
			return a.Strike < b.Strike
		}
		return a.Symbol < b.Symbol
	})

	if query.Limit > 0 && len(quotes) > query.Limit {
		quotes = quotes[:query.Limit]
	}

	g.logger.WithFields(logrus.Fields{
		"underlying": underlying,
		"count":      len(quotes),
	}).Debug("Fetched option snapshots")
	return quotes, nil
}

func (g *AlpacaGateway) snapshotParams(query interfaces.ContractQuery) url.Values {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(snapshotPageSize))
	if query.Type != "" {
		params.Set("type", string(query.Type))
	}
	if query.StrikeFrom > 0 {
		params.Set("strike_price_gte", strconv.FormatFloat(query.StrikeFrom, 'f', -1, 64))
	}
	if query.StrikeTo > 0 {
		params.Set("strike_price_lte", strconv.FormatFloat(query.StrikeTo, 'f', -1, 64))
	}
	if !query.ExpirationFrom.IsZero() {
		params.Set("expiration_date_gte", query.ExpirationFrom.Format(dateLayout))
	}
	if !query.ExpirationTo.IsZero() {
		params.Set("expiration_date_lte", query.ExpirationTo.Format(dateLayout))
	}
	if g.optionsFeed != "" {
		params.Set("feed", g.optionsFeed)
	}
	return params
}

func (g *AlpacaGateway) fetchSnapshots(ctx context.Context, underlying string, params url.Values) (*alpacaSnapshotsResponse, error) {
	endpoint := fmt.Sprintf("%s/v1beta1/options/snapshots/%s?%s", g.baseURL, url.PathEscape(underlying), params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("APCA-API-KEY-ID", g.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", g.secretKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch snapshots: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: API error %d: %s", ErrUpstreamUnavailable, resp.StatusCode, string(body))
	}

	var snapshots alpacaSnapshotsResponse
	if err := json.NewDecoder(resp.Body).Decode(&snapshots); err != nil {
		return nil, fmt.Errorf("%w: failed to decode snapshots: %v", ErrUpstreamUnavailable, err)
	}
	return &snapshots, nil
}

func snapshotToQuote(symbol string, snapshot alpacaOptionSnapshot) (interfaces.OptionQuote, error) {
	root, expiration, optionType, strike, err := ParseOCCSymbol(symbol)
	if err != nil {
		return interfaces.OptionQuote{}, err
	}

	quote := interfaces.OptionQuote{
		Symbol:            symbol,
		Underlying:        root,
		Type:              optionType,
		Strike:            strike,
		Expiration:        expiration,
		ImpliedVolatility: snapshot.ImpliedVolatility,
	}

	if t := snapshot.LatestTrade; t != nil && t.Price > 0 {
		quote.Last = &t.Price
	}
	if q := snapshot.LatestQuote; q != nil {
		if q.BidPrice > 0 {
			quote.Bid = &q.BidPrice
		}
		if q.AskPrice > 0 {
			quote.Ask = &q.AskPrice
		}
	}
	if b := snapshot.DailyBar; b != nil {
		quote.Volume = &b.Volume
	}
	if gr := snapshot.Greeks; gr != nil {
		quote.Greeks = interfaces.Greeks{
			Delta: gr.Delta,
			Gamma: gr.Gamma,
			Theta: gr.Theta,
			Vega:  gr.Vega,
			Rho:   gr.Rho,
		}
	}
	return quote, nil
}

// matchesQuery re-applies the query bounds to a decoded contract
func matchesQuery(q interfaces.OptionQuote, query interfaces.ContractQuery) bool {
	if query.Type != "" && q.Type != query.Type {
		return false
	}
	if query.StrikeFrom > 0 && q.Strike < query.StrikeFrom {
		return false
	}
	if query.StrikeTo > 0 && q.Strike > query.StrikeTo {
		return false
	}
	if !query.ExpirationFrom.IsZero() && q.Expiration.Before(interfaces.TruncateDay(query.ExpirationFrom)) {
		return false
	}
	if !query.ExpirationTo.IsZero() && q.Expiration.After(interfaces.TruncateDay(query.ExpirationTo)) {
		return false
	}
	return true
}

// ParseOCCSymbol decodes an OCC option symbol such as "AAPL250117C00150000"
// into root, expiration, type and strike
func ParseOCCSymbol(symbol string) (string, time.Time, interfaces.OptionType, float64, error) {
	symbol = strings.TrimSpace(symbol)
	if len(symbol) < 16 {
		return "", time.Time{}, "", 0, fmt.Errorf("option symbol %q too short", symbol)
	}

	n := len(symbol)
	root := strings.TrimSpace(symbol[:n-15])
	datePart := symbol[n-15 : n-9]
	typePart := symbol[n-9 : n-8]
	strikePart := symbol[n-8:]

	expiration, err := time.Parse("060102", datePart)
	if err != nil {
		return "", time.Time{}, "", 0, fmt.Errorf("option symbol %q: bad expiration: %w", symbol, err)
	}

	optionType, err := interfaces.ParseOptionType(typePart)
	if err != nil {
		return "", time.Time{}, "", 0, fmt.Errorf("option symbol %q: %w", symbol, err)
	}

	strikeMilli, err := decimal.NewFromString(strikePart)
	if err != nil || strikeMilli.IsNegative() || !strikeMilli.IsInteger() {
		return "", time.Time{}, "", 0, fmt.Errorf("option symbol %q: bad strike", symbol)
	}

	return root, expiration, optionType, strikeMilli.Shift(-3).InexactFloat64(), nil
}
