package grpc

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	blocks      *prometheus.CounterVec
	txVerified  *prometheus.CounterVec
	blocksMined prometheus.Counter
	tipHeight   prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "rpc_requests_total",
			Help:      "RPC requests by method and status code.",
		}, []string{"method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ledger",
			Name:      "rpc_duration_seconds",
			Help:      "RPC handling time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "blocks_submitted_total",
			Help:      "Submitted blocks by outcome.",
		}, []string{"result"}),
		txVerified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "tx_verified_total",
			Help:      "Transaction verifications by outcome.",
		}, []string{"result"}),
		blocksMined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "blocks_mined_total",
			Help:      "Blocks mined by this node.",
		}),
		tipHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ledger",
			Name:      "tip_height",
			Help:      "Block number of the best header.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration, m.blocks, m.txVerified, m.blocksMined, m.tipHeight)
	}
	return m
}

func result(ok bool) string {
	if ok {
		return "accepted"
	}
	return "rejected"
}

// UnaryInterceptor records request counts and latency and logs failures.
func (m *Metrics) UnaryInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		method := info.FullMethod[strings.LastIndex(info.FullMethod, "/")+1:]
		start := time.Now()
		resp, err := handler(ctx, req)
		elapsed := time.Since(start)

		code := status.Code(err)
		m.requests.WithLabelValues(method, code.String()).Inc()
		m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
		if err != nil {
			log.Debug("rpc failed", zap.String("method", method), zap.Stringer("code", code), zap.Error(err))
		}
		return resp, err
	}
}
