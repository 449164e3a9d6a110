// Package metrics instruments proof compositions.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/KILTprotocol/dip-sdk/shared"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

var (
	compositionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dip_compositions_total",
		Help: "Total number of proof compositions",
	}, []string{"topology", "status"})

	legDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dip_leg_duration_seconds",
		Help:    "Duration of proof composition legs",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"leg", "status"})

	legFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dip_leg_failures_total",
		Help: "Total number of failed legs by cause",
	}, []string{"leg", "reason"})
)

// RecordComposition counts a finished composition.
func RecordComposition(topology string, err error) {
	compositionsTotal.WithLabelValues(topology, status(err)).Inc()
}

// ObserveLeg records the duration of a leg started at start and, if it
// failed, the cause.
func ObserveLeg(leg string, start time.Time, err error) {
	legDuration.WithLabelValues(leg, status(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		legFailuresTotal.WithLabelValues(leg, Reason(err)).Inc()
	}
}

// Reason classifies err into a low cardinality label.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, shared.ErrAnchorNotProvable):
		return "anchor_not_provable"
	case errors.Is(err, shared.ErrCommitmentNotFound):
		return "commitment_not_found"
	case errors.Is(err, shared.ErrDisclosure):
		return "disclosure"
	case errors.Is(err, shared.ErrSigningFailure):
		return "signing"
	case errors.Is(err, shared.ErrConsumerStateRead):
		return "consumer_state_read"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "other"
}

func status(err error) string {
	if err != nil {
		return StatusFailed
	}
	return StatusOK
}
