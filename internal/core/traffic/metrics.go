package traffic

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	directionDownload = "download"
	directionUpload   = "upload"
)

// Metrics exposes the monitor's view of throughput. A nil *Metrics records
// nothing.
type Metrics struct {
	downloadKbps prometheus.Gauge
	uploadKbps   prometheus.Gauge
	samples      prometheus.Counter
	readErrors   prometheus.Counter
	resets       *prometheus.CounterVec
	clamped      *prometheus.CounterVec
	running      prometheus.Gauge
}

func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		downloadKbps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "download_kbps",
			Help:      "Download throughput over the last sampling interval, in kbps",
		}),
		uploadKbps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upload_kbps",
			Help:      "Upload throughput over the last sampling interval, in kbps",
		}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Number of samples taken, baselines included",
		}),
		readErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "counter_read_errors_total",
			Help:      "Number of ticks where the interface counters could not be read",
		}),
		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "counter_resets_total",
			Help:      "Number of intervals where a cumulative counter went backwards",
		}, []string{"direction"}),
		clamped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clamped_total",
			Help:      "Number of rates cut down to the configured maximum",
		}, []string{"direction"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monitor_running",
			Help:      "1 while the sampling loop is active",
		}),
	}

	err := errors.Join(
		reg.Register(m.downloadKbps),
		reg.Register(m.uploadKbps),
		reg.Register(m.samples),
		reg.Register(m.readErrors),
		reg.Register(m.resets),
		reg.Register(m.clamped),
		reg.Register(m.running),
	)
	return m, err
}

func (m *Metrics) observe(s sampleStats) {
	if m == nil {
		return
	}

	m.samples.Inc()
	m.downloadKbps.Set(float64(s.sample.DownloadKbps))
	m.uploadKbps.Set(float64(s.sample.UploadKbps))

	if s.readErr {
		m.readErrors.Inc()
	}
	if s.downloadReset {
		m.resets.WithLabelValues(directionDownload).Inc()
	}
	if s.uploadReset {
		m.resets.WithLabelValues(directionUpload).Inc()
	}
	if s.downloadClamped {
		m.clamped.WithLabelValues(directionDownload).Inc()
	}
	if s.uploadClamped {
		m.clamped.WithLabelValues(directionUpload).Inc()
	}
}

func (m *Metrics) setRunning(running bool) {
	if m == nil {
		return
	}

	if running {
		m.running.Set(1)
	} else {
		m.running.Set(0)
	}
}
