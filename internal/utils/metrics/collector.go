// internal/utils/metrics/collector.go
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
)

const namespace = "launchpad"

// Collector переводит события движка в метрики Prometheus. Каждый
// коллектор владеет своим реестром, поэтому экземпляров может быть много
type Collector struct {
	registry *prometheus.Registry

	calls        *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	launches     *prometheus.CounterVec
	lifecycle    *prometheus.CounterVec
	trades       *prometheus.CounterVec
	volume       *prometheus.CounterVec
	liquidity    *prometheus.GaugeVec

	mu     sync.Mutex
	assets map[string]int64 // баланс актива пары по токену
}

// NewCollector создает коллектор и регистрирует метрики
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		assets:   make(map[string]int64),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Engine calls by operation and outcome",
		}, []string{"op", "status"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Engine call duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"op"}),
		launches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "launches_total",
			Help:      "Launches created, by kind",
		}, []string{"kind"}),
		lifecycle: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_events_total",
			Help:      "Launch lifecycle transitions",
		}, []string{"event"}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Curve trades by side",
		}, []string{"side"}),
		volume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_volume_total",
			Help:      "Asset moved through curve pairs, in base units",
		}, []string{"side"}),
		liquidity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pair_asset_balance",
			Help:      "Asset held by a token's curve pair",
		}, []string{"token"}),
	}
	c.registry.MustRegister(c.calls, c.callDuration, c.launches, c.lifecycle, c.trades, c.volume, c.liquidity)
	return c
}

// Registry возвращает реестр для экспорта
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Attach подписывает коллектор на все события шины
func (c *Collector) Attach(bus *events.Bus) *events.Subscription {
	return bus.Subscribe(c)
}

// ObserveCall записывает исход и длительность вызова движка
func (c *Collector) ObserveCall(op string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = string(ledger.KindOf(err))
	}
	c.calls.WithLabelValues(op, status).Inc()
	c.callDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// Handle implements events.Handler.
func (c *Collector) Handle(_ context.Context, ev events.Event) error {
	switch e := ev.(type) {
	case *events.TokenLaunchedEvent:
		c.launches.WithLabelValues("simple").Inc()
	case *events.LaunchReservedEvent:
		c.launches.WithLabelValues("two_phase").Inc()
		c.lifecycle.WithLabelValues("reserved").Inc()
	case *events.LaunchExecutedEvent:
		c.lifecycle.WithLabelValues("executed").Inc()
	case *events.LaunchCancelledEvent:
		c.lifecycle.WithLabelValues("cancelled").Inc()
	case *events.TokenGraduatedEvent:
		c.lifecycle.WithLabelValues("graduated").Inc()
		c.setAssets(e.Token.String(), 0)
	case *events.LiquiditySeededEvent:
		c.addAssets(e.Token.String(), int64(e.AssetAmount))
	case *events.TradeExecutedEvent:
		if e.IsBuy() {
			c.trades.WithLabelValues("buy").Inc()
			c.volume.WithLabelValues("buy").Add(float64(e.AssetIn))
			c.addAssets(e.Token.String(), int64(e.AssetIn))
		} else {
			c.trades.WithLabelValues("sell").Inc()
			c.volume.WithLabelValues("sell").Add(float64(e.AssetOut))
			c.addAssets(e.Token.String(), -int64(e.AssetOut))
		}
	}
	return nil
}

func (c *Collector) addAssets(token string, delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assets[token] += delta
	c.liquidity.WithLabelValues(token).Set(float64(c.assets[token]))
}

func (c *Collector) setAssets(token string, v int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assets[token] = v
	c.liquidity.WithLabelValues(token).Set(float64(v))
}

// WriteFile пишет текущие значения в текстовом формате Prometheus
func (c *Collector) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

// Reset сбрасывает все метрики (полезно для тестирования)
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assets = make(map[string]int64)
	c.calls.Reset()
	c.callDuration.Reset()
	c.launches.Reset()
	c.lifecycle.Reset()
	c.trades.Reset()
	c.volume.Reset()
	c.liquidity.Reset()
}
