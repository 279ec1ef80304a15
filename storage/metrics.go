package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	assetsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portfolio_assets_accepted_total",
		Help: "Uploaded images written to the storage root.",
	})

	assetsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_assets_rejected_total",
		Help: "Uploads refused, by reason.",
	}, []string{"reason"})

	assetBytesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portfolio_asset_bytes_written_total",
		Help: "Bytes written for accepted uploads.",
	})

	assetContentMismatch = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portfolio_assets_content_mismatch_total",
		Help: "Accepted uploads whose sniffed content type differs from the declared one.",
	})

	assetRemovals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_asset_removals_total",
		Help: "Asset removal attempts, by outcome.",
	}, []string{"outcome"})
)
