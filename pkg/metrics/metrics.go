// Package metrics exposes the engine's prometheus instrumentation. All
// collectors are registered on the default registry and served by the API's
// /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "obdex",
		Name:      "orders_total",
		Help:      "Orders accepted by the matching engine.",
	}, []string{"ticker", "side", "kind"})

	tradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "obdex",
		Name:      "trades_total",
		Help:      "Fills produced by the matching engine.",
	}, []string{"ticker"})

	cancelsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "obdex",
		Name:      "cancels_total",
		Help:      "Orders cancelled by their owner.",
	}, []string{"ticker"})

	depositsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "obdex",
		Name:      "deposits_total",
		Help:      "Successful deposits.",
	}, []string{"ticker"})

	withdrawalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "obdex",
		Name:      "withdrawals_total",
		Help:      "Successful withdrawals.",
	}, []string{"ticker"})
)

func OrderInc(ticker, side, kind string) {
	ordersTotal.WithLabelValues(ticker, side, kind).Inc()
}

func TradeInc(ticker string) {
	tradesTotal.WithLabelValues(ticker).Inc()
}

func CancelInc(ticker string) {
	cancelsTotal.WithLabelValues(ticker).Inc()
}

func DepositInc(ticker string) {
	depositsTotal.WithLabelValues(ticker).Inc()
}

func WithdrawalInc(ticker string) {
	withdrawalsTotal.WithLabelValues(ticker).Inc()
}
