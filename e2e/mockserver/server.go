// Package mockserver provides a scripted spot venue for end-to-end tests.
// It speaks enough of the Binance REST and websocket protocol for the
// engine's live gateway and websocket feed to run against it unmodified:
// market orders fill instantly at the venue mark, kline streams replay a
// generated price walk, and refusals and credential rotation can be
// scripted per test.
package mockserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rxtech-lab/pulse-trading/internal/types"
	"github.com/rxtech-lab/pulse-trading/mocks"
)

// Balance is one asset's venue-side holding.
type Balance struct {
	Asset  string
	Free   float64
	Locked float64
}

// VenueOrder is the venue's record of a submitted order.
type VenueOrder struct {
	ID               int64
	ClientOrderID    string
	Symbol           string
	Side             string
	Kind             string
	Quantity         float64
	Price            float64
	Status           string
	ExecutedQuantity float64
	QuoteVolume      float64
	CreatedAt        time.Time
}

// Fill is one execution. ClientOrderID carries the engine's own order ID so
// tests can join venue fills back to engine orders.
type Fill struct {
	OrderID       int64
	ClientOrderID string
	Symbol        string
	Side          string
	Quantity      float64
	Price         float64
	Fee           float64
	Time          time.Time
}

// StreamConfig shapes the generated price walk behind the kline streams.
type StreamConfig struct {
	Symbols      []string
	InitialPrice float64
	Volatility   float64
	Trend        float64
	Seed         int64
	// Interval is the pace of websocket kline events, not the kline interval.
	Interval time.Duration
}

// ServerConfig holds the venue's initial state.
type ServerConfig struct {
	// InitialBalances maps asset to free balance.
	InitialBalances map[string]float64
	// Stream enables websocket kline streaming when set.
	Stream *StreamConfig
	// FeeFraction is the commission charged on every fill.
	FeeFraction float64
}

// MockVenueServer is an in-process spot venue. All exported methods are safe
// for concurrent use.
type MockVenueServer struct {
	mu sync.RWMutex

	httpServer *http.Server
	listener   net.Listener
	upgrader   websocket.Upgrader

	balances   map[string]*Balance
	orders     map[int64]*VenueOrder
	fills      []Fill
	orderIDSeq int64

	prices      map[string]float64
	walks       map[string][]types.RawQuote
	feeFraction float64

	// rejectReason, when set, makes every order submission fail with an
	// insufficient-balance style refusal.
	rejectReason string
	// requiredKey, when set, makes every REST call without a matching
	// X-MBX-APIKEY header fail with an invalid-key refusal.
	requiredKey string

	streamInterval time.Duration
	stopStreaming  chan struct{}
	stopOnce       sync.Once

	wsMu    sync.Mutex
	wsConns map[*websocket.Conn]bool
}

const defaultStreamInterval = 100 * time.Millisecond

// NewMockVenueServer creates a venue with the given balances and, when
// configured, a pre-generated price walk per streamed symbol.
func NewMockVenueServer(cfg ServerConfig) *MockVenueServer {
	//nolint:exhaustruct
	server := &MockVenueServer{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		balances:       make(map[string]*Balance),
		orders:         make(map[int64]*VenueOrder),
		fills:          make([]Fill, 0),
		orderIDSeq:     1000,
		prices:         make(map[string]float64),
		walks:          make(map[string][]types.RawQuote),
		feeFraction:    cfg.FeeFraction,
		streamInterval: defaultStreamInterval,
		stopStreaming:  make(chan struct{}),
		wsConns:        make(map[*websocket.Conn]bool),
	}

	for asset, amount := range cfg.InitialBalances {
		server.balances[asset] = &Balance{Asset: asset, Free: amount, Locked: 0}
	}

	if cfg.Stream != nil {
		if cfg.Stream.Interval > 0 {
			server.streamInterval = cfg.Stream.Interval
		}

		generator := mocks.NewDataGenerator(cfg.Stream.Seed)

		for _, symbol := range cfg.Stream.Symbols {
			walkConfig := mocks.DefaultConfig()
			walkConfig.Symbol = symbol
			walkConfig.Count = 5000
			walkConfig.InitialPrice = cfg.Stream.InitialPrice
			walkConfig.Volatility = cfg.Stream.Volatility
			walkConfig.Trend = cfg.Stream.Trend

			server.walks[symbol] = generator.GenerateQuotes(walkConfig, 0.001)
			server.prices[symbol] = cfg.Stream.InitialPrice
		}
	}

	return server
}

// Start listens on the given address. ":0" picks a free port.
func (s *MockVenueServer) Start(address string) error {
	if address == "" {
		address = ":0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.listener = listener

	router := mux.NewRouter()
	router.HandleFunc("/api/v3/account", s.handleAccount).Methods("GET")
	router.HandleFunc("/api/v3/order", s.handleCreateOrder).Methods("POST")
	router.HandleFunc("/api/v3/order", s.handleCancelOrder).Methods("DELETE")
	router.HandleFunc("/api/v3/openOrders", s.handleOpenOrders).Methods("GET")
	router.HandleFunc("/api/v3/ticker/24hr", s.handleTicker).Methods("GET")
	router.HandleFunc("/ws/{symbol}@kline_{interval}", s.handleKlineStream)

	s.httpServer = &http.Server{ //nolint:exhaustruct
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != http.ErrServerClosed {
			fmt.Printf("mock venue server error: %v\n", err)
		}
	}()

	return nil
}

// Stop shuts the server down. Safe to call more than once.
func (s *MockVenueServer) Stop() error {
	s.stopOnce.Do(func() {
		close(s.stopStreaming)
	})

	s.wsMu.Lock()
	for conn := range s.wsConns {
		conn.Close()
	}

	s.wsConns = make(map[*websocket.Conn]bool)
	s.wsMu.Unlock()

	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// BaseURL returns the REST base URL.
func (s *MockVenueServer) BaseURL() string {
	if s.listener == nil {
		return ""
	}

	return "http://" + s.listener.Addr().String()
}

// WebSocketURL returns the websocket base URL.
func (s *MockVenueServer) WebSocketURL() string {
	if s.listener == nil {
		return ""
	}

	return "ws://" + s.listener.Addr().String()
}

// SetPrice sets the venue mark for a symbol. Market orders fill at the mark.
func (s *MockVenueServer) SetPrice(symbol string, price float64) {
	s.mu.Lock()
	s.prices[symbol] = price
	s.mu.Unlock()
}

// Price returns the venue mark for a symbol.
func (s *MockVenueServer) Price(symbol string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.prices[symbol]
}

// Balance returns a copy of the asset's balance, or nil when unknown.
func (s *MockVenueServer) Balance(asset string) *Balance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if balance, ok := s.balances[asset]; ok {
		copied := *balance

		return &copied
	}

	return nil
}

// SetBalance sets the asset's balance.
func (s *MockVenueServer) SetBalance(asset string, free, locked float64) {
	s.mu.Lock()
	s.balances[asset] = &Balance{Asset: asset, Free: free, Locked: locked}
	s.mu.Unlock()
}

// Fills returns a copy of every execution so far.
func (s *MockVenueServer) Fills() []Fill {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fills := make([]Fill, len(s.fills))
	copy(fills, s.fills)

	return fills
}

// Order returns a copy of the order, or nil when unknown.
func (s *MockVenueServer) Order(orderID int64) *VenueOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if order, ok := s.orders[orderID]; ok {
		copied := *order

		return &copied
	}

	return nil
}

// RejectOrders makes every subsequent order submission fail with the given
// refusal message. An empty reason restores normal fills.
func (s *MockVenueServer) RejectOrders(reason string) {
	s.mu.Lock()
	s.rejectReason = reason
	s.mu.Unlock()
}

// RequireAPIKey makes every REST call demand this X-MBX-APIKEY header. An
// empty key disables the check.
func (s *MockVenueServer) RequireAPIKey(key string) {
	s.mu.Lock()
	s.requiredKey = key
	s.mu.Unlock()
}

// authorized checks the API key header against the required key, answering
// with a venue refusal when it does not match.
func (s *MockVenueServer) authorized(w http.ResponseWriter, r *http.Request) bool {
	s.mu.RLock()
	required := s.requiredKey
	s.mu.RUnlock()

	if required == "" || r.Header.Get("X-MBX-APIKEY") == required {
		return true
	}

	writeVenueError(w, http.StatusUnauthorized, -2014, "API-key format invalid.")

	return false
}

// handleAccount serves GET /api/v3/account.
func (s *MockVenueServer) handleAccount(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	balances := make([]map[string]any, 0, len(s.balances))
	for _, balance := range s.balances {
		balances = append(balances, map[string]any{
			"asset":  balance.Asset,
			"free":   strconv.FormatFloat(balance.Free, 'f', 8, 64),
			"locked": strconv.FormatFloat(balance.Locked, 'f', 8, 64),
		})
	}

	writeJSON(w, map[string]any{
		"canTrade":    true,
		"accountType": "SPOT",
		"updateTime":  time.Now().UnixMilli(),
		"balances":    balances,
	})
}

// handleCreateOrder serves POST /api/v3/order. Market orders fill at the
// current mark and move balances; limit orders rest as NEW.
func (s *MockVenueServer) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}

	params, err := requestParams(r)
	if err != nil {
		writeVenueError(w, http.StatusBadRequest, -1102, "malformed request")

		return
	}

	symbol := params.Get("symbol")
	side := params.Get("side")
	kind := params.Get("type")
	clientOrderID := params.Get("newClientOrderId")

	quantity, err := strconv.ParseFloat(params.Get("quantity"), 64)
	if err != nil || symbol == "" || side == "" || kind == "" {
		writeVenueError(w, http.StatusBadRequest, -1102, "mandatory parameter missing")

		return
	}

	var limitPrice float64
	if raw := params.Get("price"); raw != "" {
		limitPrice, _ = strconv.ParseFloat(raw, 64)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rejectReason != "" {
		writeVenueError(w, http.StatusBadRequest, -2010, s.rejectReason)

		return
	}

	mark := s.prices[symbol]
	if kind == "MARKET" && mark <= 0 {
		writeVenueError(w, http.StatusBadRequest, -1121, "invalid symbol")

		return
	}

	s.orderIDSeq++
	order := &VenueOrder{ //nolint:exhaustruct
		ID:            s.orderIDSeq,
		ClientOrderID: clientOrderID,
		Symbol:        symbol,
		Side:          side,
		Kind:          kind,
		Quantity:      quantity,
		Price:         limitPrice,
		Status:        "NEW",
		CreatedAt:     time.Now(),
	}
	s.orders[order.ID] = order

	if kind == "MARKET" {
		if err := s.settle(order, mark); err != nil {
			delete(s.orders, order.ID)
			writeVenueError(w, http.StatusBadRequest, -2010, err.Error())

			return
		}
	}

	writeJSON(w, map[string]any{
		"symbol":              order.Symbol,
		"orderId":             order.ID,
		"clientOrderId":       order.ClientOrderID,
		"transactTime":        time.Now().UnixMilli(),
		"price":               strconv.FormatFloat(order.Price, 'f', 8, 64),
		"origQty":             strconv.FormatFloat(order.Quantity, 'f', 8, 64),
		"executedQty":         strconv.FormatFloat(order.ExecutedQuantity, 'f', 8, 64),
		"cummulativeQuoteQty": strconv.FormatFloat(order.QuoteVolume, 'f', 8, 64),
		"status":              order.Status,
		"type":                order.Kind,
		"side":                order.Side,
	})
}

// settle executes a market order against the balances. Callers hold s.mu.
func (s *MockVenueServer) settle(order *VenueOrder, mark float64) error {
	base, quote := splitSymbol(order.Symbol)
	cost := mark * order.Quantity

	if order.Side == "BUY" {
		quoteBalance := s.balances[quote]
		if quoteBalance == nil || quoteBalance.Free < cost {
			return fmt.Errorf("Account has insufficient balance for requested action.")
		}

		quoteBalance.Free -= cost
		s.creditBalance(base, order.Quantity)
	} else {
		baseBalance := s.balances[base]
		if baseBalance == nil || baseBalance.Free < order.Quantity {
			return fmt.Errorf("Account has insufficient balance for requested action.")
		}

		baseBalance.Free -= order.Quantity
		s.creditBalance(quote, cost)
	}

	order.Status = "FILLED"
	order.ExecutedQuantity = order.Quantity
	order.QuoteVolume = cost

	s.fills = append(s.fills, Fill{
		OrderID:       order.ID,
		ClientOrderID: order.ClientOrderID,
		Symbol:        order.Symbol,
		Side:          order.Side,
		Quantity:      order.Quantity,
		Price:         mark,
		Fee:           cost * s.feeFraction,
		Time:          time.Now(),
	})

	return nil
}

func (s *MockVenueServer) creditBalance(asset string, amount float64) {
	balance, ok := s.balances[asset]
	if !ok {
		balance = &Balance{Asset: asset, Free: 0, Locked: 0}
		s.balances[asset] = balance
	}

	balance.Free += amount
}

// handleCancelOrder serves DELETE /api/v3/order.
func (s *MockVenueServer) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}

	params, err := requestParams(r)
	if err != nil {
		writeVenueError(w, http.StatusBadRequest, -1102, "malformed request")

		return
	}

	orderID, err := strconv.ParseInt(params.Get("orderId"), 10, 64)
	if err != nil {
		writeVenueError(w, http.StatusBadRequest, -1102, "mandatory parameter missing")

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok || order.Symbol != params.Get("symbol") {
		writeVenueError(w, http.StatusBadRequest, -2011, "Unknown order sent.")

		return
	}

	if order.Status != "NEW" {
		writeVenueError(w, http.StatusBadRequest, -2011, "Unknown order sent.")

		return
	}

	order.Status = "CANCELED"

	writeJSON(w, map[string]any{
		"symbol":        order.Symbol,
		"orderId":       order.ID,
		"clientOrderId": order.ClientOrderID,
		"status":        order.Status,
		"type":          order.Kind,
		"side":          order.Side,
	})
}

// handleOpenOrders serves GET /api/v3/openOrders.
func (s *MockVenueServer) handleOpenOrders(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	open := make([]map[string]any, 0)

	for _, order := range s.orders {
		if order.Status != "NEW" {
			continue
		}

		open = append(open, map[string]any{
			"symbol":        order.Symbol,
			"orderId":       order.ID,
			"clientOrderId": order.ClientOrderID,
			"price":         strconv.FormatFloat(order.Price, 'f', 8, 64),
			"origQty":       strconv.FormatFloat(order.Quantity, 'f', 8, 64),
			"status":        order.Status,
			"type":          order.Kind,
			"side":          order.Side,
			"time":          order.CreatedAt.UnixMilli(),
		})
	}

	writeJSON(w, open)
}

// handleTicker serves GET /api/v3/ticker/24hr. With a symbol parameter it
// returns a single object, matching the venue's behavior; the SDK wraps it
// into a list on the client side.
func (s *MockVenueServer) handleTicker(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")

	s.mu.RLock()
	defer s.mu.RUnlock()

	if symbol != "" {
		mark, ok := s.prices[symbol]
		if !ok {
			writeVenueError(w, http.StatusBadRequest, -1121, "invalid symbol")

			return
		}

		writeJSON(w, tickerStats(symbol, mark))

		return
	}

	stats := make([]map[string]any, 0, len(s.prices))
	for sym, mark := range s.prices {
		stats = append(stats, tickerStats(sym, mark))
	}

	writeJSON(w, stats)
}

func tickerStats(symbol string, mark float64) map[string]any {
	return map[string]any{
		"symbol":         symbol,
		"lastPrice":      strconv.FormatFloat(mark, 'f', 8, 64),
		"openPrice":      strconv.FormatFloat(mark*0.995, 'f', 8, 64),
		"highPrice":      strconv.FormatFloat(mark*1.005, 'f', 8, 64),
		"lowPrice":       strconv.FormatFloat(mark*0.99, 'f', 8, 64),
		"prevClosePrice": strconv.FormatFloat(mark*0.995, 'f', 8, 64),
		"bidPrice":       strconv.FormatFloat(mark*0.9995, 'f', 8, 64),
		"askPrice":       strconv.FormatFloat(mark*1.0005, 'f', 8, 64),
		"volume":         "10000.00000000",
		"closeTime":      time.Now().UnixMilli(),
	}
}

// handleKlineStream upgrades the connection and replays the symbol's price
// walk as kline events until the client or the server closes.
func (s *MockVenueServer) handleKlineStream(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbol := strings.ToUpper(vars["symbol"])
	interval := vars["interval"]

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.wsMu.Lock()
	s.wsConns[conn] = true
	s.wsMu.Unlock()

	defer func() {
		s.wsMu.Lock()
		delete(s.wsConns, conn)
		s.wsMu.Unlock()
		conn.Close()
	}()

	s.streamWalk(conn, symbol, interval)
}

func (s *MockVenueServer) streamWalk(conn *websocket.Conn, symbol, interval string) {
	s.mu.RLock()
	walk := s.walks[symbol]
	s.mu.RUnlock()

	if len(walk) == 0 {
		return
	}

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	for index := 0; ; index++ {
		select {
		case <-s.stopStreaming:
			return
		case now := <-ticker.C:
			quote := walk[index%len(walk)]

			event := map[string]any{
				"e": "kline",
				"E": now.UnixMilli(),
				"s": symbol,
				"k": map[string]any{
					"t": now.Truncate(time.Minute).UnixMilli(),
					"T": now.Truncate(time.Minute).Add(time.Minute).UnixMilli() - 1,
					"s": symbol,
					"i": interval,
					"o": strconv.FormatFloat(quote.Open, 'f', 8, 64),
					"c": strconv.FormatFloat(quote.Last, 'f', 8, 64),
					"h": strconv.FormatFloat(quote.High, 'f', 8, 64),
					"l": strconv.FormatFloat(quote.Low, 'f', 8, 64),
					"v": strconv.FormatFloat(quote.Volume, 'f', 8, 64),
					"x": (index+1)%10 == 0,
				},
			}

			if err := conn.WriteJSON(event); err != nil {
				return
			}

			s.SetPrice(symbol, quote.Last)
		}
	}
}

// requestParams merges query and body parameters. The venue client sends
// order parameters in the request body, including for DELETE, which the
// standard form parser only reads for POST-like methods.
func requestParams(r *http.Request) (url.Values, error) {
	params := url.Values{}

	for key, values := range r.URL.Query() {
		for _, value := range values {
			params.Add(key, value)
		}
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	if len(body) > 0 {
		bodyParams, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, err
		}

		for key, values := range bodyParams {
			for _, value := range values {
				params.Add(key, value)
			}
		}
	}

	return params, nil
}

// splitSymbol derives base and quote assets from a concatenated pair name.
func splitSymbol(symbol string) (string, string) {
	for _, quote := range []string{"USDT", "USDC", "BUSD", "BTC", "ETH", "BNB"} {
		if strings.HasSuffix(symbol, quote) && len(symbol) > len(quote) {
			return strings.TrimSuffix(symbol, quote), quote
		}
	}

	return symbol, "USDT"
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v) //nolint:errcheck,errchkjson
}

func writeVenueError(w http.ResponseWriter, status, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck,errchkjson
		"code": code,
		"msg":  message,
	})
}
