package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carts_created_total",
		Help: "Total number of carts created",
	})

	CartsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carts_expired_total",
		Help: "Total number of carts expired by the sweeper",
	})

	CartNearExpiryNotificationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_near_expiry_notifications_total",
		Help: "Total number of near-expiry notifications emitted",
	})

	CartItemRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_item_rejections_total",
		Help: "Total number of rejected cart item operations",
	}, []string{"reason"})

	CheckoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_total",
		Help: "Total number of checkout attempts by outcome",
	}, []string{"outcome"})

	PaymentAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_attempts_total",
		Help: "Total number of payment legs by kind",
	}, []string{"kind"})

	PaymentDeclinedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_declined_total",
		Help: "Total number of declined payment legs",
	})

	StockConsumeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stock_consume_latency_seconds",
		Help:    "Latency of FIFO stock consumption transactions",
		Buckets: prometheus.DefBuckets,
	})

	StockConsumeFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_consume_failed_total",
		Help: "Total number of failed stock consumptions",
	}, []string{"reason"})

	StockEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_entries_total",
		Help: "Total number of inventory lot entries by source",
	}, []string{"source"})

	ExchangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exchanges_total",
		Help: "Total number of exchange operations by stage",
	}, []string{"stage"})

	BooksDeactivatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "books_deactivated_total",
		Help: "Total number of books auto-deactivated for staleness",
	})

	GatewayLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_gateway_latency_seconds",
		Help:    "Latency of payment gateway calls",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
