package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CallbackOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edudocs",
		Name:      "auth_callback_total",
		Help:      "Auth callback completions by outcome.",
	}, []string{"outcome"})

	GateRedirects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edudocs",
		Name:      "gate_redirects_total",
		Help:      "Requests bounced by the role gate, by required role.",
	}, []string{"role"})

	UploadFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edudocs",
		Name:      "upload_files_total",
		Help:      "Uploaded files by result.",
	}, []string{"status"})

	CompensatingDeletes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edudocs",
		Name:      "upload_compensating_deletes_total",
		Help:      "Storage deletes issued after a failed document insert.",
	}, []string{"result"})
)
