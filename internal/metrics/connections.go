package metrics

import (
	"sync"
	"time"
)

// ConnectionInfo is the per-connection debug record the tracker keeps,
// keyed by the uuid name transport.Collection hands out. Counts are in
// this server's own units (wire events delivered, requests routed), not
// raw socket bytes, which the session backends never report upward.
type ConnectionInfo struct {
	Name          string
	RemoteAddr    string
	ConnectedAt   time.Time
	LastTrafficAt time.Time
	EventsSent    uint64
	RequestsSeen  uint64
}

// ConnectionTracker keeps detailed per-connection records beyond the
// plain active/rejected counters Collector exposes, for the admin
// endpoint to dump who is connected, how chatty they are, and how long
// they have been idle.
type ConnectionTracker struct {
	mu    sync.RWMutex
	conns map[string]*ConnectionInfo
	total uint64
	peak  int
}

func NewConnectionTracker() *ConnectionTracker {
	return &ConnectionTracker{conns: make(map[string]*ConnectionInfo)}
}

func (ct *ConnectionTracker) AddConnection(name, remoteAddr string) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	now := time.Now()
	ct.conns[name] = &ConnectionInfo{
		Name:        name,
		RemoteAddr:  remoteAddr,
		ConnectedAt: now,
	}
	ct.total++
	if n := len(ct.conns); n > ct.peak {
		ct.peak = n
	}
}

func (ct *ConnectionTracker) RemoveConnection(name string) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	delete(ct.conns, name)
}

// RecordEvent counts one outbound wire event delivered to name.
// Unknown names are ignored: an event can race a teardown.
func (ct *ConnectionTracker) RecordEvent(name string) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	if c, ok := ct.conns[name]; ok {
		c.EventsSent++
		c.LastTrafficAt = time.Now()
	}
}

// RecordRequest counts one inbound request routed for name.
func (ct *ConnectionTracker) RecordRequest(name string) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	if c, ok := ct.conns[name]; ok {
		c.RequestsSeen++
		c.LastTrafficAt = time.Now()
	}
}

func (ct *ConnectionTracker) GetActiveCount() int {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.conns)
}

// GetConnectionStats builds the admin-endpoint snapshot: aggregate
// totals plus one detail entry per live connection.
func (ct *ConnectionTracker) GetConnectionStats() map[string]interface{} {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	var eventsTotal, requestsTotal uint64
	var totalDuration time.Duration

	now := time.Now()
	details := make([]map[string]interface{}, 0, len(ct.conns))
	for _, c := range ct.conns {
		eventsTotal += c.EventsSent
		requestsTotal += c.RequestsSeen
		totalDuration += now.Sub(c.ConnectedAt)

		idleSince := c.LastTrafficAt
		if idleSince.IsZero() {
			idleSince = c.ConnectedAt
		}
		details = append(details, map[string]interface{}{
			"name":         c.Name,
			"remote_addr":  c.RemoteAddr,
			"duration_sec": now.Sub(c.ConnectedAt).Seconds(),
			"events_sent":  c.EventsSent,
			"requests":     c.RequestsSeen,
			"idle_sec":     now.Sub(idleSince).Seconds(),
		})
	}

	active := len(ct.conns)
	var avgDuration time.Duration
	if active > 0 {
		avgDuration = totalDuration / time.Duration(active)
	}

	return map[string]interface{}{
		"active":           active,
		"total":            ct.total,
		"peak":             ct.peak,
		"events_total":     eventsTotal,
		"requests_total":   requestsTotal,
		"avg_duration_sec": avgDuration.Seconds(),
		"connections":      details,
	}
}

// GetSummary is the cheap header-only version of GetConnectionStats.
func (ct *ConnectionTracker) GetSummary() map[string]interface{} {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return map[string]interface{}{
		"active": len(ct.conns),
		"total":  ct.total,
		"peak":   ct.peak,
	}
}
