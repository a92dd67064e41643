// Package metrics exposes the engine's Prometheus instrumentation: book
// depth, match throughput, and claim volume, scraped over a dedicated
// HTTP endpoint separate from the trading TCP port.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry bundles every metric fenrir-lob reports.
type Registry struct {
	OrdersSubmitted  *prometheus.CounterVec
	MatchesExecuted  prometheus.Counter
	MatchedQuantity  prometheus.Counter
	OrdersCanceled   prometheus.Counter
	CoinsClaimed     prometheus.Counter
	ItemsClaimed     prometheus.Counter
	TooManyOrdersHit prometheus.Counter
	BookDepth        *prometheus.GaugeVec
}

// NewRegistry constructs every metric and registers it with Prometheus's
// default registerer, the one promhttp.Handler serves.
func NewRegistry() *Registry {
	reg := &Registry{
		OrdersSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fenrir",
			Name:      "orders_submitted_total",
			Help:      "Limit orders submitted, partitioned by side.",
		}, []string{"side"}),
		MatchesExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "fenrir",
			Name:      "matches_executed_total",
			Help:      "Individual resting-order fills produced by matching.",
		}),
		MatchedQuantity: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "fenrir",
			Name:      "matched_quantity_total",
			Help:      "Total quantity crossed by matching.",
		}),
		OrdersCanceled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "fenrir",
			Name:      "orders_canceled_total",
			Help:      "Resting orders canceled.",
		}),
		CoinsClaimed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "fenrir",
			Name:      "coins_claimed_total",
			Help:      "Net coin amount paid out via claim_coins.",
		}),
		ItemsClaimed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "fenrir",
			Name:      "items_claimed_total",
			Help:      "Item quantity paid out via claim_items.",
		}),
		TooManyOrdersHit: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "fenrir",
			Name:      "too_many_orders_hit_total",
			Help:      "Batches aborted for exceeding the per-call match cap.",
		}),
		BookDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fenrir",
			Name:      "book_depth",
			Help:      "Resting order count at the best price, partitioned by item and side.",
		}, []string{"item_id", "side"}),
	}
	return reg
}

// Serve starts the /metrics HTTP endpoint and blocks until ctx is canceled.
func Serve(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	log.Info().Int("port", port).Msg("metrics server running")
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
