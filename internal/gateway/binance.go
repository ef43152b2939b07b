package gateway

import (
	"context"
	stderrors "errors"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/rxtech-lab/pulse-trading/internal/config"
	"github.com/rxtech-lab/pulse-trading/internal/types"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
)

const (
	// BinanceDecimalPrecision is a default decimal precision used when
	// formatting quantities. Production systems should use symbol-specific
	// precision from Binance exchange info (LOT_SIZE, PRICE_FILTER).
	BinanceDecimalPrecision = 8
)

// Service interfaces for mocking the Binance API

// CreateOrderService interface for creating orders.
type CreateOrderService interface {
	Symbol(symbol string) CreateOrderService
	Side(side binance.SideType) CreateOrderService
	Type(orderType binance.OrderType) CreateOrderService
	Quantity(quantity string) CreateOrderService
	Price(price string) CreateOrderService
	StopPrice(price string) CreateOrderService
	TimeInForce(tif binance.TimeInForceType) CreateOrderService
	NewClientOrderID(id string) CreateOrderService
	Do(ctx context.Context) (*binance.CreateOrderResponse, error)
}

// CancelOrderService interface for canceling orders.
type CancelOrderService interface {
	Symbol(symbol string) CancelOrderService
	OrderID(orderID int64) CancelOrderService
	Do(ctx context.Context) (*binance.CancelOrderResponse, error)
}

// ListOpenOrdersService interface for listing open orders.
type ListOpenOrdersService interface {
	Do(ctx context.Context) ([]*binance.Order, error)
}

// GetAccountService interface for getting account info.
type GetAccountService interface {
	Do(ctx context.Context) (*binance.Account, error)
}

// PriceStatsService interface for fetching 24hr ticker statistics.
type PriceStatsService interface {
	Symbol(symbol string) PriceStatsService
	Do(ctx context.Context) ([]*binance.PriceChangeStats, error)
}

// BinanceClient interface abstracts the Binance client for testing.
type BinanceClient interface {
	NewCreateOrderService() CreateOrderService
	NewCancelOrderService() CancelOrderService
	NewListOpenOrdersService() ListOpenOrdersService
	NewGetAccountService() GetAccountService
	NewPriceStatsService() PriceStatsService
	SetAPIKey(key string)
}

// realBinanceClient wraps the actual binance.Client.
type realBinanceClient struct {
	client *binance.Client
}

func (r *realBinanceClient) NewCreateOrderService() CreateOrderService {
	return &realCreateOrderService{service: r.client.NewCreateOrderService()}
}

func (r *realBinanceClient) NewCancelOrderService() CancelOrderService {
	return &realCancelOrderService{service: r.client.NewCancelOrderService()}
}

func (r *realBinanceClient) NewListOpenOrdersService() ListOpenOrdersService {
	return &realListOpenOrdersService{service: r.client.NewListOpenOrdersService()}
}

func (r *realBinanceClient) NewGetAccountService() GetAccountService {
	return &realGetAccountService{service: r.client.NewGetAccountService()}
}

func (r *realBinanceClient) NewPriceStatsService() PriceStatsService {
	return &realPriceStatsService{service: r.client.NewListPriceChangeStatsService()}
}

func (r *realBinanceClient) SetAPIKey(key string) {
	r.client.APIKey = key
}

// Real service wrappers

type realCreateOrderService struct {
	service *binance.CreateOrderService
}

func (s *realCreateOrderService) Symbol(symbol string) CreateOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCreateOrderService) Side(side binance.SideType) CreateOrderService {
	s.service = s.service.Side(side)

	return s
}

func (s *realCreateOrderService) Type(orderType binance.OrderType) CreateOrderService {
	s.service = s.service.Type(orderType)

	return s
}

func (s *realCreateOrderService) Quantity(quantity string) CreateOrderService {
	s.service = s.service.Quantity(quantity)

	return s
}

func (s *realCreateOrderService) Price(price string) CreateOrderService {
	s.service = s.service.Price(price)

	return s
}

func (s *realCreateOrderService) StopPrice(price string) CreateOrderService {
	s.service = s.service.StopPrice(price)

	return s
}

func (s *realCreateOrderService) TimeInForce(tif binance.TimeInForceType) CreateOrderService {
	s.service = s.service.TimeInForce(tif)

	return s
}

func (s *realCreateOrderService) NewClientOrderID(id string) CreateOrderService {
	s.service = s.service.NewClientOrderID(id)

	return s
}

func (s *realCreateOrderService) Do(ctx context.Context) (*binance.CreateOrderResponse, error) {
	return s.service.Do(ctx)
}

type realCancelOrderService struct {
	service *binance.CancelOrderService
}

func (s *realCancelOrderService) Symbol(symbol string) CancelOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCancelOrderService) OrderID(orderID int64) CancelOrderService {
	s.service = s.service.OrderID(orderID)

	return s
}

func (s *realCancelOrderService) Do(ctx context.Context) (*binance.CancelOrderResponse, error) {
	return s.service.Do(ctx)
}

type realListOpenOrdersService struct {
	service *binance.ListOpenOrdersService
}

func (s *realListOpenOrdersService) Do(ctx context.Context) ([]*binance.Order, error) {
	return s.service.Do(ctx)
}

type realGetAccountService struct {
	service *binance.GetAccountService
}

func (s *realGetAccountService) Do(ctx context.Context) (*binance.Account, error) {
	return s.service.Do(ctx)
}

type realPriceStatsService struct {
	service *binance.ListPriceChangeStatsService
}

func (s *realPriceStatsService) Symbol(symbol string) PriceStatsService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realPriceStatsService) Do(ctx context.Context) ([]*binance.PriceChangeStats, error) {
	return s.service.Do(ctx)
}

// BinanceGateway implements Gateway on the Binance spot API. It is stateless
// apart from the client credential; all data is fetched from the API.
type BinanceGateway struct {
	client           BinanceClient
	decimalPrecision int
	tokenMu          sync.Mutex
}

var _ Gateway = (*BinanceGateway)(nil)

// NewBinanceGateway creates a Binance gateway from the gateway config
// section. With cfg.Testnet the client targets the Binance testnet;
// cfg.BaseURL takes precedence when set.
func NewBinanceGateway(cfg config.GatewayConfig) (*BinanceGateway, error) {
	if cfg.Testnet {
		binance.UseTestnet = true
	}

	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)

	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}

	//nolint:exhaustruct
	return &BinanceGateway{
		client:           &realBinanceClient{client: client},
		decimalPrecision: BinanceDecimalPrecision,
	}, nil
}

// newBinanceGatewayWithClient creates a gateway with a custom client.
// This is used for testing with mock clients.
func newBinanceGatewayWithClient(client BinanceClient) *BinanceGateway {
	//nolint:exhaustruct
	return &BinanceGateway{
		client:           client,
		decimalPrecision: BinanceDecimalPrecision,
	}
}

func init() {
	Register("binance", func(cfg config.GatewayConfig) (Gateway, error) {
		return NewBinanceGateway(cfg)
	})
}

// PlaceOrder implements Gateway.
func (b *BinanceGateway) PlaceOrder(ctx context.Context, order types.Order) (string, error) {
	if err := order.Validate(); err != nil {
		return "", err
	}

	var side binance.SideType

	switch order.Side {
	case types.SideBuy:
		side = binance.SideTypeBuy
	case types.SideSell:
		side = binance.SideTypeSell
	default:
		return "", errors.Newf(errors.ErrCodeInvalidOrder, "unsupported order side: %s", order.Side)
	}

	var orderType binance.OrderType

	switch order.Kind {
	case types.OrderKindMarket:
		orderType = binance.OrderTypeMarket
	case types.OrderKindLimit:
		orderType = binance.OrderTypeLimit
	case types.OrderKindStop:
		orderType = binance.OrderTypeStopLoss
	default:
		return "", errors.Newf(errors.ErrCodeInvalidOrder, "unsupported order kind: %s", order.Kind)
	}

	orderService := b.client.NewCreateOrderService().
		Symbol(order.Instrument).
		Side(side).
		Type(orderType).
		Quantity(strconv.FormatFloat(order.Quantity, 'f', b.decimalPrecision, 64)).
		NewClientOrderID(order.ID)

	switch order.Kind {
	case types.OrderKindLimit:
		orderService = orderService.
			Price(strconv.FormatFloat(order.LimitPrice, 'f', -1, 64)).
			TimeInForce(binance.TimeInForceTypeGTC)
	case types.OrderKindStop:
		orderService = orderService.
			StopPrice(strconv.FormatFloat(order.TriggerPrice, 'f', -1, 64))
	case types.OrderKindMarket:
	}

	response, err := orderService.Do(ctx)
	if err != nil {
		return "", mapBinanceError(err, errors.ErrCodeOrderRejected, "failed to place order on Binance")
	}

	if response.Status == binance.OrderStatusTypeRejected {
		return "", errors.Newf(errors.ErrCodeOrderRejected, "order %s rejected by venue", order.ID)
	}

	return strconv.FormatInt(response.OrderID, 10), nil
}

// CancelOrder implements Gateway. Binance requires the symbol to cancel, so
// the order is located among open orders first.
func (b *BinanceGateway) CancelOrder(ctx context.Context, venueOrderID string) error {
	binanceOrderID, err := strconv.ParseInt(venueOrderID, 10, 64)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid venue order ID format", err)
	}

	openOrders, err := b.client.NewListOpenOrdersService().Do(ctx)
	if err != nil {
		return mapBinanceError(err, errors.ErrCodeOrderFailed, "failed to list open orders on Binance")
	}

	for _, openOrder := range openOrders {
		if openOrder.OrderID != binanceOrderID {
			continue
		}

		_, err := b.client.NewCancelOrderService().
			Symbol(openOrder.Symbol).
			OrderID(binanceOrderID).
			Do(ctx)
		if err != nil {
			return mapBinanceError(err, errors.ErrCodeOrderFailed, "failed to cancel order on Binance")
		}

		return nil
	}

	return errors.Newf(errors.ErrCodeOrderFailed, "open order not found: %s", venueOrderID)
}

// GetPositions implements Gateway. Spot holdings appear as long positions
// derived from non-zero balances.
func (b *BinanceGateway) GetPositions(ctx context.Context) ([]types.VenuePosition, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, mapBinanceError(err, errors.ErrCodeOrderFailed, "failed to get account info from Binance")
	}

	positions := make([]types.VenuePosition, 0)

	for _, balance := range account.Balances {
		free, _ := strconv.ParseFloat(balance.Free, 64)
		locked, _ := strconv.ParseFloat(balance.Locked, 64)
		total := free + locked

		if total <= 0 {
			continue
		}

		positions = append(positions, types.VenuePosition{
			Instrument:   balance.Asset,
			Side:         types.PositionSideLong,
			Quantity:     total,
			AveragePrice: 0,
		})
	}

	return positions, nil
}

// GetQuotes implements Gateway using the 24hr ticker statistics endpoint,
// which carries last, OHLC, volume and top-of-book bid/ask in one response.
func (b *BinanceGateway) GetQuotes(ctx context.Context, instruments []string) (map[string]types.RawQuote, error) {
	quotes := make(map[string]types.RawQuote, len(instruments))

	for _, instrument := range instruments {
		stats, err := b.client.NewPriceStatsService().Symbol(instrument).Do(ctx)
		if err != nil {
			return nil, mapBinanceError(err, errors.ErrCodeMarketDataFetchFailed, "failed to fetch ticker stats from Binance")
		}

		for _, stat := range stats {
			if stat.Symbol != instrument {
				continue
			}

			quotes[instrument] = convertPriceStats(stat)
		}
	}

	return quotes, nil
}

// UpdateSessionToken implements Gateway. Binance authenticates each request
// with a static key, so a renewed token simply replaces the API key.
func (b *BinanceGateway) UpdateSessionToken(token string) error {
	if token == "" {
		return errors.New(errors.ErrCodeInvalidParameter, "session token must not be empty")
	}

	b.tokenMu.Lock()
	defer b.tokenMu.Unlock()

	b.client.SetAPIKey(token)

	return nil
}

// Name implements connection.Capability.
func (b *BinanceGateway) Name() string {
	return "gateway"
}

// DoConnect implements connection.Capability. The REST session has no
// handshake; an authenticated account call verifies reachability and
// credentials in one round trip.
func (b *BinanceGateway) DoConnect(ctx context.Context) error {
	if _, err := b.client.NewGetAccountService().Do(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeConnectionFailed, "failed to reach Binance API", err)
	}

	return nil
}

// DoDisconnect implements connection.Capability.
func (b *BinanceGateway) DoDisconnect(_ context.Context) error {
	return nil
}

// ProbeAlive implements connection.Capability.
func (b *BinanceGateway) ProbeAlive(ctx context.Context) error {
	if _, err := b.client.NewGetAccountService().Do(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeProbeFailed, "Binance account probe failed", err)
	}

	return nil
}

// mapBinanceError classifies SDK errors: an APIError means the venue
// answered and refused (coded per call site), anything else is transport.
func mapBinanceError(err error, refusalCode errors.ErrorCode, message string) error {
	var apiErr *common.APIError
	if stderrors.As(err, &apiErr) {
		return errors.Wrap(refusalCode, message, err)
	}

	return errors.Wrap(errors.ErrCodeConnectionFailed, message, err)
}

func convertPriceStats(stat *binance.PriceChangeStats) types.RawQuote {
	last, _ := strconv.ParseFloat(stat.LastPrice, 64)
	open, _ := strconv.ParseFloat(stat.OpenPrice, 64)
	high, _ := strconv.ParseFloat(stat.HighPrice, 64)
	low, _ := strconv.ParseFloat(stat.LowPrice, 64)
	prevClose, _ := strconv.ParseFloat(stat.PrevClosePrice, 64)
	volume, _ := strconv.ParseFloat(stat.Volume, 64)
	bid, _ := strconv.ParseFloat(stat.BidPrice, 64)
	ask, _ := strconv.ParseFloat(stat.AskPrice, 64)

	return types.RawQuote{
		Instrument: stat.Symbol,
		Last:       last,
		Volume:     volume,
		Open:       open,
		High:       high,
		Low:        low,
		Close:      prevClose,
		Bid:        bid,
		Ask:        ask,
		Timestamp:  time.Now(),
	}
}
