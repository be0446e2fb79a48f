package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/oddin-space/simcore/internal/wire"
)

// Collector is simcore's single Prometheus registration point: every
// package that needs to record a metric is handed a narrow interface
// (simstate.Recorder, transport.Recorder, natsrelay.Recorder) that
// Collector satisfies.
type Collector struct {
	connectionsTotal           prometheus.Counter
	connectionsActive          prometheus.Gauge
	connectionDuration         prometheus.Histogram
	connectionsAdmissionReject prometheus.Counter
	connectionsClosed          prometheus.Counter

	requestsTotal  *prometheus.CounterVec
	requestsFailed *prometheus.CounterVec

	stateElementsActive    prometheus.Gauge
	stateObjectsActive     prometheus.Gauge
	stateSignalsFiredTotal prometheus.Counter

	conduitCacheHits   prometheus.Counter
	conduitCacheMisses prometheus.Counter

	notifQueueDepth prometheus.Gauge

	goroutinesCount prometheus.Gauge
	memoryUsage     prometheus.Gauge
	cpuUsage        prometheus.Gauge

	natsConnectionStatus prometheus.Gauge
	natsReconnects       prometheus.Counter
	natsMessages         prometheus.Counter
	natsErrors           prometheus.Counter

	startTime time.Time
	mu        sync.RWMutex
	connCount int64

	tracker *ConnectionTracker
}

func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		tracker:   NewConnectionTracker(),

		connectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "connections_total",
			Help: "Total number of connection handshakes attempted",
		}),
		connectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "connections_active",
			Help: "Number of currently active connections",
		}),
		connectionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "connection_duration_seconds",
			Help:    "Duration of connections from admission to close",
			Buckets: prometheus.DefBuckets,
		}),
		connectionsAdmissionReject: promauto.NewCounter(prometheus.CounterOpts{
			Name: "connections_admission_rejected_total",
			Help: "Total number of connections rejected because the server was at capacity",
		}),
		connectionsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "connections_closed_total",
			Help: "Total number of connections closed",
		}),

		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "requests_dispatched_total",
			Help: "Total number of requests dispatched, by verb",
		}, []string{"verb"}),
		requestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "requests_failed_total",
			Help: "Total number of requests that failed, by verb and error kind",
		}, []string{"verb", "kind"}),

		stateElementsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "state_elements_active",
			Help: "Number of registered objects (one count per object)",
		}),
		stateObjectsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "state_objects_active",
			Help: "Number of live objects registered in simstate",
		}),
		stateSignalsFiredTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "state_signals_fired_total",
			Help: "Total number of signal firings across all entities",
		}),

		conduitCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "conduit_cache_hits_total",
			Help: "Total number of CachingConduit reads served from cache",
		}),
		conduitCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "conduit_cache_misses_total",
			Help: "Total number of CachingConduit reads that recomputed from source",
		}),

		notifQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "notifqueue_depth",
			Help: "Current depth of the shared NotifQueue's active buffer",
		}),

		goroutinesCount: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "runtime_goroutines_count",
			Help: "Number of goroutines",
		}),
		memoryUsage: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "runtime_memory_usage_bytes",
			Help: "Memory usage in bytes",
		}),
		cpuUsage: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "runtime_cpu_usage_percent",
			Help: "CPU usage percentage",
		}),

		natsConnectionStatus: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "nats_relay_connection_status",
			Help: "NATS relay connection status (1=connected, 0=disconnected)",
		}),
		natsReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nats_relay_reconnects_total",
			Help: "Total number of NATS relay reconnections",
		}),
		natsMessages: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nats_relay_messages_total",
			Help: "Total number of events mirrored to NATS",
		}),
		natsErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nats_relay_errors_total",
			Help: "Total number of NATS relay errors",
		}),
	}
}

// --- simstate.Recorder ---

func (c *Collector) ObjectAdded() {
	c.stateObjectsActive.Inc()
	c.stateElementsActive.Inc()
}

func (c *Collector) ObjectRemoved() {
	c.stateObjectsActive.Dec()
	c.stateElementsActive.Dec()
}

func (c *Collector) RequestDispatched(verb wire.Verb) {
	c.requestsTotal.WithLabelValues(verb.String()).Inc()
}

func (c *Collector) RequestFailed(verb wire.Verb, kind wire.ErrorKind) {
	c.requestsFailed.WithLabelValues(verb.String(), kind.String()).Inc()
}

// --- transport.Recorder ---

func (c *Collector) ConnectionAdmitted() {
	c.connectionsTotal.Inc()
	c.connectionsActive.Inc()
	c.mu.Lock()
	c.connCount++
	c.mu.Unlock()
}

func (c *Collector) ConnectionRejected() {
	c.connectionsAdmissionReject.Inc()
}

func (c *Collector) ConnectionClosed() {
	c.connectionsClosed.Inc()
	c.connectionsActive.Dec()
	c.mu.Lock()
	c.connCount--
	c.mu.Unlock()
}

func (c *Collector) ConnectionTracked(name, remoteAddr string) {
	c.tracker.AddConnection(name, remoteAddr)
}

func (c *Collector) ConnectionUntracked(name string) {
	c.tracker.RemoveConnection(name)
}

func (c *Collector) ConnectionRequest(name string) {
	c.tracker.RecordRequest(name)
}

func (c *Collector) ConnectionEvent(name string) {
	c.tracker.RecordEvent(name)
}

// ConnectionStats returns the debug snapshot ConnectionTracker keeps, for
// an admin endpoint to expose alongside the Prometheus /metrics page.
func (c *Collector) ConnectionStats() map[string]interface{} {
	return c.tracker.GetConnectionStats()
}

// --- natsrelay.Recorder ---

func (c *Collector) NATSConnected(connected bool) {
	if connected {
		c.natsConnectionStatus.Set(1)
	} else {
		c.natsConnectionStatus.Set(0)
	}
}

func (c *Collector) NATSReconnect()        { c.natsReconnects.Inc() }
func (c *Collector) NATSMessagePublished() { c.natsMessages.Inc() }
func (c *Collector) NATSError()            { c.natsErrors.Inc() }

// --- conduit instrumentation: CacheHit/CacheMiss satisfy
// conduit.CacheRecorder and SignalFired completes worldfixture.Recorder,
// so callers record through those narrow interfaces ---

func (c *Collector) CacheHit()    { c.conduitCacheHits.Inc() }
func (c *Collector) CacheMiss()   { c.conduitCacheMisses.Inc() }
func (c *Collector) SignalFired() { c.stateSignalsFiredTotal.Inc() }

// NotifQueueDepthGauge hands the notifqueue package its depth gauge at
// construction time, keeping notifyqueue ignorant of this package.
func (c *Collector) NotifQueueDepthGauge() prometheus.Gauge { return c.notifQueueDepth }

// --- system metrics, fed by SystemCollector (gopsutil) ---

func (c *Collector) UpdateGoroutinesCount(n int)    { c.goroutinesCount.Set(float64(n)) }
func (c *Collector) UpdateMemoryUsage(bytes uint64) { c.memoryUsage.Set(float64(bytes)) }
func (c *Collector) UpdateCPUUsage(percent float64) { c.cpuUsage.Set(percent) }

func (c *Collector) ActiveConnections() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connCount
}

func (c *Collector) Uptime() time.Duration { return time.Since(c.startTime) }
