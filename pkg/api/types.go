package api

// Request and response types for the REST endpoints and WebSocket messages.

// ==============================
// REST Response Types
// ==============================

// TokenInfo represents a listed token.
type TokenInfo struct {
	Ticker       string `json:"ticker"`
	AssetAddress string `json:"assetAddress"`
	Tradable     bool   `json:"tradable"`
}

// BalanceInfo represents one (participant, ticker) balance.
type BalanceInfo struct {
	Address string `json:"address"`
	Ticker  string `json:"ticker"`
	Free    string `json:"free"`
	Locked  string `json:"locked"`
}

// OrderInfo represents an order on the book.
type OrderInfo struct {
	ID        uint64   `json:"id"`
	Owner     string   `json:"owner"`
	Ticker    string   `json:"ticker"`
	Side      string   `json:"side"`
	Kind      string   `json:"kind"`
	Amount    string   `json:"amount"`
	Price     string   `json:"price"`
	Filled    string   `json:"filled"`
	Remaining string   `json:"remaining"`
	Fills     []string `json:"fills"`
	CreatedAt int64    `json:"createdAt"` // Unix milliseconds
}

// BookSnapshot represents both sides of one ticker's order book.
// Buys are sorted best (highest) price first, sells lowest first.
type BookSnapshot struct {
	Ticker    string      `json:"ticker"`
	Buys      []OrderInfo `json:"buys"`
	Sells     []OrderInfo `json:"sells"`
	Timestamp int64       `json:"timestamp"`
}

// TradeInfo represents an executed trade.
type TradeInfo struct {
	ID           uint64 `json:"id"`
	Ticker       string `json:"ticker"`
	MakerOrderID uint64 `json:"makerOrderId"`
	TakerOrderID uint64 `json:"takerOrderId"`
	MakerOwner   string `json:"makerOwner"`
	TakerOwner   string `json:"takerOwner"`
	TakerSide    string `json:"takerSide"`
	TakerKind    string `json:"takerKind"`
	Quantity     string `json:"quantity"`
	Price        string `json:"price"`
	Timestamp    int64  `json:"timestamp"`
}

// PlaceOrderResponse is returned from order submission: the resting order
// (absent when the order filled or was a market order) plus executed trades.
type PlaceOrderResponse struct {
	Order  *OrderInfo  `json:"order,omitempty"`
	Trades []TradeInfo `json:"trades"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==============================
// REST Request Types
// ==============================

// AddTokenRequest is the payload for POST /api/v1/admin/tokens.
type AddTokenRequest struct {
	Caller       string `json:"caller"`
	Ticker       string `json:"ticker"`
	AssetAddress string `json:"assetAddress"`
}

// TokenAdminRequest is the payload for the enable/disable/quote admin endpoints.
type TokenAdminRequest struct {
	Caller string `json:"caller"`
	Ticker string `json:"ticker"`
}

// FundingRequest is the payload for deposits and withdrawals.
type FundingRequest struct {
	Address string `json:"address"`
	Ticker  string `json:"ticker"`
	Amount  string `json:"amount"`
}

// PlaceOrderRequest is the payload for POST /api/v1/orders.
type PlaceOrderRequest struct {
	Address string `json:"address"`
	Ticker  string `json:"ticker"`
	Side    string `json:"side"` // "buy" or "sell"
	Kind    string `json:"kind"` // "market" or "limit"
	Amount  string `json:"amount"`
	Price   string `json:"price,omitempty"`
}

// CancelOrderRequest is the payload for POST /api/v1/orders/cancel.
type CancelOrderRequest struct {
	Address string `json:"address"`
	Ticker  string `json:"ticker"`
	OrderID uint64 `json:"orderId"`
	Side    string `json:"side"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by a client to manage channel subscriptions,
// e.g. ["trades:ZRX", "orderbook:ZRX"].
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// TradeUpdate is broadcast on the "trades:{ticker}" channel.
type TradeUpdate struct {
	Type  string    `json:"type"` // "trade"
	Trade TradeInfo `json:"trade"`
}

// BookUpdate is broadcast on the "orderbook:{ticker}" channel after every
// trade or cancellation.
type BookUpdate struct {
	Type string       `json:"type"` // "orderbook"
	Book BookSnapshot `json:"book"`
}
