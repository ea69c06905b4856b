package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess      = "success"
	outcomeRejected     = "rejected"
	outcomeBlobError    = "blob_error"
	outcomeCatalogError = "catalog_error"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "file_uploads_total",
		Help: "Number of upload attempts by outcome.",
	}, []string{"outcome"})

	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "file_upload_bytes_total",
		Help: "Bytes written to the blob store by successful uploads.",
	})

	sweptBlobsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "file_swept_blobs_total",
		Help: "Orphaned blobs deleted by the sweeper.",
	})
)
