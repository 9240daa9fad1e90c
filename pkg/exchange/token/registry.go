// Package token tracks the assets known to the exchange: which tickers exist,
// whether each is currently tradable, and which single ticker is the quote
// asset every pair settles in.
package token

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrTickerExists         = errors.New("ticker exists")
	ErrTickerNotFound       = errors.New("ticker does not exist")
	ErrTokenDisabled        = errors.New("token disabled")
	ErrTokenEnabled         = errors.New("token enabled")
	ErrQuoteTicker          = errors.New("quote ticker")
	ErrQuoteTickerDefined   = errors.New("quote ticker defined")
	ErrQuoteTickerUndefined = errors.New("quote ticker undefined")
)

// Token is a registered asset. AssetAddress is the handle of the external
// token contract the transfer gateway talks to; the registry itself never
// dereferences it.
type Token struct {
	Ticker       Ticker         `json:"ticker"`
	AssetAddress common.Address `json:"assetAddress"`
	Tradable     bool           `json:"tradable"`
}

// Registry is the set of known tokens plus the quote-ticker designation.
// Tokens are added once and never removed; only the tradable flag toggles.
type Registry struct {
	mu         sync.RWMutex
	tokens     map[Ticker]*Token
	tickerList []Ticker // insertion order, for stable listing
	quote      Ticker
	quoteSet   bool
}

func NewRegistry() *Registry {
	return &Registry{
		tokens: make(map[Ticker]*Token),
	}
}

// Add registers a new tradable token.
func (r *Registry) Add(ticker Ticker, assetAddress common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tokens[ticker]; exists {
		return ErrTickerExists
	}
	r.tokens[ticker] = &Token{
		Ticker:       ticker,
		AssetAddress: assetAddress,
		Tradable:     true,
	}
	r.tickerList = append(r.tickerList, ticker)
	return nil
}

// Disable halts trading for a ticker. The quote ticker can never be disabled.
func (r *Registry) Disable(ticker Ticker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tok, exists := r.tokens[ticker]
	if !exists {
		return ErrTickerNotFound
	}
	if r.quoteSet && r.quote == ticker {
		return ErrQuoteTicker
	}
	if !tok.Tradable {
		return ErrTokenDisabled
	}
	tok.Tradable = false
	return nil
}

// Enable resumes trading for a ticker.
func (r *Registry) Enable(ticker Ticker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tok, exists := r.tokens[ticker]
	if !exists {
		return ErrTickerNotFound
	}
	if tok.Tradable {
		return ErrTokenEnabled
	}
	tok.Tradable = true
	return nil
}

// SetQuote designates the settlement asset. One-shot: once set it is
// immutable for the lifetime of the registry.
func (r *Registry) SetQuote(ticker Ticker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.quoteSet {
		return ErrQuoteTickerDefined
	}
	if _, exists := r.tokens[ticker]; !exists {
		return ErrTickerNotFound
	}
	r.quote = ticker
	r.quoteSet = true
	return nil
}

// Quote returns the quote ticker, or ErrQuoteTickerUndefined if none is set.
func (r *Registry) Quote() (Ticker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.quoteSet {
		return Ticker{}, ErrQuoteTickerUndefined
	}
	return r.quote, nil
}

func (r *Registry) Exists(ticker Ticker) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tokens[ticker]
	return ok
}

func (r *Registry) IsTradable(ticker Ticker) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tok, ok := r.tokens[ticker]
	return ok && tok.Tradable
}

// Tokens returns all registered tokens in insertion order.
func (r *Registry) Tokens() []Token {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Token, 0, len(r.tickerList))
	for _, tk := range r.tickerList {
		out = append(out, *r.tokens[tk])
	}
	return out
}

// Tickers returns the ticker list in insertion order.
func (r *Registry) Tickers() []Ticker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Ticker, len(r.tickerList))
	copy(out, r.tickerList)
	return out
}
