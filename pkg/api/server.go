package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/obdex/obdex/pkg/exchange/book"
	"github.com/obdex/obdex/pkg/exchange/engine"
	"github.com/obdex/obdex/pkg/exchange/ledger"
	"github.com/obdex/obdex/pkg/exchange/token"
	"github.com/obdex/obdex/pkg/num"
)

// TradeHistory serves persisted trades, surviving restarts. The in-memory
// trade log only covers the current process lifetime.
type TradeHistory interface {
	RecentTrades(ticker token.Ticker, limit int) ([]engine.Trade, error)
}

// Server handles the REST API and WebSocket connections.
type Server struct {
	engine  *engine.Engine
	history TradeHistory
	router  *mux.Router
	hub     *Hub
	log     *zap.SugaredLogger
	httpSrv *http.Server
}

// NewServer creates a new API server. history may be nil, in which case the
// trades endpoint serves from the in-memory log only.
func NewServer(eng *engine.Engine, history TradeHistory, log *zap.SugaredLogger) *Server {
	s := &Server{
		engine:  eng,
		history: history,
		router:  mux.NewRouter(),
		hub:     NewHub(log),
		log:     log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Token endpoints
	api.HandleFunc("/tokens", s.handleGetTokens).Methods("GET")
	api.HandleFunc("/tokens/{ticker}", s.handleGetToken).Methods("GET")
	api.HandleFunc("/quote", s.handleGetQuote).Methods("GET")

	// Admin endpoints
	api.HandleFunc("/admin/tokens", s.handleAddToken).Methods("POST")
	api.HandleFunc("/admin/tokens/enable", s.handleEnableToken).Methods("POST")
	api.HandleFunc("/admin/tokens/disable", s.handleDisableToken).Methods("POST")
	api.HandleFunc("/admin/quote", s.handleSetQuote).Methods("POST")

	// Funding endpoints
	api.HandleFunc("/deposits", s.handleDeposit).Methods("POST")
	api.HandleFunc("/withdrawals", s.handleWithdraw).Methods("POST")
	api.HandleFunc("/balances/{address}/{ticker}", s.handleGetBalance).Methods("GET")

	// Market endpoints
	api.HandleFunc("/markets/{ticker}/orderbook", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/markets/{ticker}/trades", s.handleGetTrades).Methods("GET")

	// Order endpoints
	api.HandleFunc("/orders", s.handlePlaceOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Operational endpoints
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

// Start runs the WebSocket hub, the trade broadcaster and the HTTP server.
// Blocks until the server stops.
func (s *Server) Start(addr string, allowedOrigins []string) error {
	go s.hub.Run()
	go s.broadcastTrades()

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	s.httpSrv = &http.Server{Addr: addr, Handler: c.Handler(s.router)}
	s.log.Infow("api server starting", "addr", addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the hub and the trade broadcaster, then the HTTP server,
// waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// broadcastTrades fans executed trades out to WebSocket subscribers and
// pushes a fresh book snapshot for the traded ticker. Runs until the hub
// closes.
func (s *Server) broadcastTrades() {
	trades, cancel := s.engine.Trades().Subscribe(256)
	defer cancel()

	for {
		select {
		case <-s.hub.quit:
			return
		case t, ok := <-trades:
			if !ok {
				return
			}
			s.hub.BroadcastToChannel("trades:"+t.Ticker.String(), TradeUpdate{
				Type:  "trade",
				Trade: tradeInfo(t),
			})
			if snap, err := s.bookSnapshot(t.Ticker); err == nil {
				s.hub.BroadcastToChannel("orderbook:"+t.Ticker.String(), BookUpdate{
					Type: "orderbook",
					Book: snap,
				})
			}
		}
	}
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetTokens(w http.ResponseWriter, r *http.Request) {
	tokens := s.engine.Tokens()
	response := make([]TokenInfo, len(tokens))
	for i, t := range tokens {
		response[i] = tokenInfo(t)
	}
	respondJSON(w, response)
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	ticker, ok := parseTicker(w, mux.Vars(r)["ticker"])
	if !ok {
		return
	}
	for _, t := range s.engine.Tokens() {
		if t.Ticker == ticker {
			respondJSON(w, tokenInfo(t))
			return
		}
	}
	respondError(w, http.StatusNotFound, "ticker does not exist", "")
}

func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := s.engine.QuoteTicker()
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]string{"quote": quote.String()})
}

func (s *Server) handleAddToken(w http.ResponseWriter, r *http.Request) {
	var req AddTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	caller, ok := parseAddress(w, req.Caller)
	if !ok {
		return
	}
	asset, ok := parseAddress(w, req.AssetAddress)
	if !ok {
		return
	}
	ticker, ok := parseTicker(w, req.Ticker)
	if !ok {
		return
	}
	if err := s.engine.AddToken(caller, ticker, asset); err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleEnableToken(w http.ResponseWriter, r *http.Request) {
	s.handleTokenAdmin(w, r, s.engine.EnableTokenTrading)
}

func (s *Server) handleDisableToken(w http.ResponseWriter, r *http.Request) {
	s.handleTokenAdmin(w, r, s.engine.DisableTokenTrading)
}

func (s *Server) handleSetQuote(w http.ResponseWriter, r *http.Request) {
	s.handleTokenAdmin(w, r, s.engine.SetQuoteTicker)
}

func (s *Server) handleTokenAdmin(w http.ResponseWriter, r *http.Request, op func(common.Address, token.Ticker) error) {
	var req TokenAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	caller, ok := parseAddress(w, req.Caller)
	if !ok {
		return
	}
	ticker, ok := parseTicker(w, req.Ticker)
	if !ok {
		return
	}
	if err := op(caller, ticker); err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.handleFunding(w, r, s.engine.Deposit)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleFunding(w, r, s.engine.Withdraw)
}

func (s *Server) handleFunding(w http.ResponseWriter, r *http.Request, op func(common.Address, token.Ticker, *num.Uint) error) {
	var req FundingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	addr, ok := parseAddress(w, req.Address)
	if !ok {
		return
	}
	ticker, ok := parseTicker(w, req.Ticker)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}
	if err := op(addr, ticker, amount); err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	addr, ok := parseAddress(w, vars["address"])
	if !ok {
		return
	}
	ticker, ok := parseTicker(w, vars["ticker"])
	if !ok {
		return
	}
	bal, err := s.engine.Balance(addr, ticker)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, BalanceInfo{
		Address: addr.Hex(),
		Ticker:  ticker.String(),
		Free:    bal.Free.String(),
		Locked:  bal.Locked.String(),
	})
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	ticker, ok := parseTicker(w, mux.Vars(r)["ticker"])
	if !ok {
		return
	}
	snap, err := s.bookSnapshot(ticker)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, snap)
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	ticker, ok := parseTicker(w, mux.Vars(r)["ticker"])
	if !ok {
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", "")
			return
		}
		limit = n
	}

	var trades []engine.Trade
	if s.history != nil {
		var err error
		trades, err = s.history.RecentTrades(ticker, limit)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to load trades", err.Error())
			return
		}
	} else {
		for _, t := range s.engine.Trades().Recent(limit) {
			if t.Ticker == ticker {
				trades = append(trades, t)
			}
		}
	}

	response := make([]TradeInfo, len(trades))
	for i, t := range trades {
		response[i] = tradeInfo(t)
	}
	respondJSON(w, response)
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	addr, ok := parseAddress(w, req.Address)
	if !ok {
		return
	}
	ticker, ok := parseTicker(w, req.Ticker)
	if !ok {
		return
	}
	side, ok := parseSide(w, req.Side)
	if !ok {
		return
	}
	kind, ok := parseKind(w, req.Kind)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}
	price := num.UintZero()
	if kind == book.Limit {
		price, ok = parseAmount(w, req.Price)
		if !ok {
			return
		}
	}

	order, trades, err := s.engine.PlaceOrder(addr, engine.OrderSpec{
		Ticker: ticker,
		Side:   side,
		Kind:   kind,
		Amount: amount,
		Price:  price,
	})
	if err != nil {
		s.respondEngineError(w, err)
		return
	}

	response := PlaceOrderResponse{Trades: make([]TradeInfo, len(trades))}
	for i, t := range trades {
		response.Trades[i] = tradeInfo(t)
	}
	if order != nil {
		info := orderInfo(order)
		response.Order = &info
	}
	respondJSON(w, response)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	addr, ok := parseAddress(w, req.Address)
	if !ok {
		return
	}
	ticker, ok := parseTicker(w, req.Ticker)
	if !ok {
		return
	}
	side, ok := parseSide(w, req.Side)
	if !ok {
		return
	}
	if err := s.engine.CancelOrder(addr, ticker, req.OrderID, side); err != nil {
		s.respondEngineError(w, err)
		return
	}
	if snap, err := s.bookSnapshot(ticker); err == nil {
		s.hub.BroadcastToChannel("orderbook:"+ticker.String(), BookUpdate{
			Type: "orderbook",
			Book: snap,
		})
	}
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helper Functions
// ==============================

func (s *Server) bookSnapshot(ticker token.Ticker) (BookSnapshot, error) {
	buys, err := s.engine.Orders(ticker, book.Buy)
	if err != nil {
		return BookSnapshot{}, err
	}
	sells, err := s.engine.Orders(ticker, book.Sell)
	if err != nil {
		return BookSnapshot{}, err
	}
	snap := BookSnapshot{
		Ticker:    ticker.String(),
		Buys:      make([]OrderInfo, len(buys)),
		Sells:     make([]OrderInfo, len(sells)),
		Timestamp: s.engine.Now().UnixMilli(),
	}
	for i, o := range buys {
		snap.Buys[i] = orderInfo(o)
	}
	for i, o := range sells {
		snap.Sells[i] = orderInfo(o)
	}
	return snap, nil
}

func tokenInfo(t token.Token) TokenInfo {
	return TokenInfo{
		Ticker:       t.Ticker.String(),
		AssetAddress: t.AssetAddress.Hex(),
		Tradable:     t.Tradable,
	}
}

func orderInfo(o *book.Order) OrderInfo {
	fills := make([]string, len(o.Fills))
	for i, f := range o.Fills {
		fills[i] = f.String()
	}
	return OrderInfo{
		ID:        o.ID,
		Owner:     o.Owner.Hex(),
		Ticker:    o.Ticker.String(),
		Side:      o.Side.String(),
		Kind:      o.Kind.String(),
		Amount:    o.Amount.String(),
		Price:     o.Price.String(),
		Filled:    o.Filled().String(),
		Remaining: o.Remaining().String(),
		Fills:     fills,
		CreatedAt: o.CreatedAt,
	}
}

func tradeInfo(t engine.Trade) TradeInfo {
	return TradeInfo{
		ID:           t.ID,
		Ticker:       t.Ticker.String(),
		MakerOrderID: t.MakerOrderID,
		TakerOrderID: t.TakerOrderID,
		MakerOwner:   t.MakerOwner.Hex(),
		TakerOwner:   t.TakerOwner.Hex(),
		TakerSide:    t.TakerSide.String(),
		TakerKind:    t.TakerKind.String(),
		Quantity:     t.Quantity.String(),
		Price:        t.Price.String(),
		Timestamp:    t.Timestamp,
	}
}

func parseAddress(w http.ResponseWriter, s string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		respondError(w, http.StatusBadRequest, "invalid address", s)
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

func parseTicker(w http.ResponseWriter, s string) (token.Ticker, bool) {
	ticker, err := token.TickerFromString(s)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid ticker", err.Error())
		return token.Ticker{}, false
	}
	return ticker, true
}

func parseAmount(w http.ResponseWriter, s string) (*num.Uint, bool) {
	amount, err := num.UintFromString(s)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount", s)
		return nil, false
	}
	return amount, true
}

func parseSide(w http.ResponseWriter, s string) (book.Side, bool) {
	switch s {
	case "buy":
		return book.Buy, true
	case "sell":
		return book.Sell, true
	default:
		respondError(w, http.StatusBadRequest, "invalid side", s)
		return 0, false
	}
}

func parseKind(w http.ResponseWriter, s string) (book.Kind, bool) {
	switch s {
	case "market":
		return book.Market, true
	case "limit":
		return book.Limit, true
	default:
		respondError(w, http.StatusBadRequest, "invalid kind", s)
		return 0, false
	}
}

// respondEngineError maps engine sentinel errors onto HTTP status codes.
func (s *Server) respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrUnauthorized):
		respondError(w, http.StatusForbidden, err.Error(), "")
	case errors.Is(err, token.ErrTickerNotFound),
		errors.Is(err, engine.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, token.ErrTickerExists),
		errors.Is(err, token.ErrTokenEnabled),
		errors.Is(err, token.ErrTokenDisabled),
		errors.Is(err, token.ErrQuoteTicker),
		errors.Is(err, token.ErrQuoteTickerDefined):
		respondError(w, http.StatusConflict, err.Error(), "")
	case errors.Is(err, token.ErrQuoteTickerUndefined),
		errors.Is(err, engine.ErrLowTokenBalance),
		errors.Is(err, engine.ErrLowQuoteBalance),
		errors.Is(err, engine.ErrEmptyOrderBook),
		errors.Is(err, engine.ErrInvalidOrder),
		errors.Is(err, ledger.ErrLowBalance),
		errors.Is(err, ledger.ErrInvalidAmount):
		respondError(w, http.StatusBadRequest, err.Error(), "")
	default:
		s.log.Errorw("internal error", "err", err)
		respondError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
