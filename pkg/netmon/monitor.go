package netmon

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/venuekit/usher/pkg/log"
	"github.com/venuekit/usher/pkg/metrics"
	"github.com/venuekit/usher/pkg/types"
)

// Latency thresholds for quality and slow-status classification.
const (
	thresholdExcellent = 100 * time.Millisecond
	thresholdGood      = 300 * time.Millisecond
	thresholdFair      = time.Second

	// slowThreshold marks the connection SLOW rather than ONLINE.
	slowThreshold = time.Second
)

// State is the monitor's current view of connectivity.
type State struct {
	Status    types.NetworkStatus
	Quality   types.NetworkQuality
	Latency   time.Duration
	CheckedAt time.Time
}

// Listener receives the new state on every status transition.
type Listener func(State)

// Config contains monitor timing configuration
type Config struct {
	// Interval is the time between liveness probes
	Interval time.Duration

	// RetryInterval is the time between retry-queue drain ticks
	RetryInterval time.Duration

	// ProbeTimeout bounds a single probe
	ProbeTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Interval:      types.DefaultMonitorInterval,
		RetryInterval: types.DefaultRetryInterval,
		ProbeTimeout:  types.DefaultProbeTimeout,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = d.RetryInterval
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = d.ProbeTimeout
	}
	return c
}

// Monitor owns the process-wide network state. It is the single writer; all
// other components read through Status/IsOnline or subscribe for transitions.
type Monitor struct {
	prober Prober
	cfg    Config
	logger zerolog.Logger

	mu        sync.RWMutex
	state     State
	listeners map[int]Listener
	drainFns  map[int]func()
	nextID    int
	running   bool
	stopCh    chan struct{}
	hintCh    chan struct{}
	wg        sync.WaitGroup
}

// NewMonitor creates a monitor over the given prober
func NewMonitor(prober Prober, cfg Config) *Monitor {
	return &Monitor{
		prober: prober,
		cfg:    cfg.withDefaults(),
		logger: log.WithComponent("netmon"),
		state: State{
			Status:  types.NetworkUnknown,
			Quality: types.QualityUnknown,
		},
		listeners: make(map[int]Listener),
		drainFns:  make(map[int]func()),
		hintCh:    make(chan struct{}, 1),
	}
}

// Start begins the probe loop and the retry-drain ticker. Calling Start while
// already running is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run()
	m.logger.Info().
		Dur("interval", m.cfg.Interval).
		Dur("retry_interval", m.cfg.RetryInterval).
		Msg("network monitor started")
}

// Stop cancels both timers and resets the state to unknown. Idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()

	m.mu.Lock()
	m.state = State{Status: types.NetworkUnknown, Quality: types.QualityUnknown}
	m.mu.Unlock()
	m.logger.Info().Msg("network monitor stopped")
}

func (m *Monitor) run() {
	defer m.wg.Done()

	probeTicker := time.NewTicker(m.cfg.Interval)
	defer probeTicker.Stop()
	drainTicker := time.NewTicker(m.cfg.RetryInterval)
	defer drainTicker.Stop()

	// Probe immediately so the state leaves UNKNOWN without waiting a full interval
	m.ProbeNow(context.Background())

	for {
		select {
		case <-probeTicker.C:
			m.ProbeNow(context.Background())
		case <-m.hintCh:
			// Platform connectivity hints are not ground truth; the probe
			// result they trigger is.
			m.ProbeNow(context.Background())
		case <-drainTicker.C:
			m.fireDrains()
		case <-m.stopCh:
			return
		}
	}
}

// ProbeNow performs one probe and updates the state. It is used by the loop
// and exported for one-shot callers that need a fresh reading.
func (m *Monitor) ProbeNow(ctx context.Context) State {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()

	elapsed, err := m.prober.Probe(ctx)
	next := classify(elapsed, err)
	if err != nil {
		metrics.ProbesTotal.WithLabelValues("failure").Inc()
		m.logger.Debug().Err(err).Msg("liveness probe failed")
	} else {
		metrics.ProbesTotal.WithLabelValues("success").Inc()
		metrics.ProbeDuration.Observe(elapsed.Seconds())
	}

	m.setState(next)
	return next
}

// Hint signals a platform connectivity change (online/offline event) and
// triggers an immediate re-probe. Non-blocking; coalesces repeated hints.
func (m *Monitor) Hint() {
	select {
	case m.hintCh <- struct{}{}:
	default:
	}
}

// Status returns the current state.
func (m *Monitor) Status() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsOnline reports whether the network is usable (online or slow).
func (m *Monitor) IsOnline() bool {
	s := m.Status().Status
	return s == types.NetworkOnline || s == types.NetworkSlow
}

// IsSlow reports whether the connection is degraded.
func (m *Monitor) IsSlow() bool {
	return m.Status().Status == types.NetworkSlow
}

// Subscribe registers a listener invoked on every status transition (not on
// every probe). The returned unsubscribe is safe to call multiple times.
func (m *Monitor) Subscribe(fn Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// OnDrain registers a callback fired on every retry tick and immediately when
// the network transitions out of OFFLINE. The retry paths register here.
func (m *Monitor) OnDrain(fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.drainFns[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.drainFns, id)
	}
}

func (m *Monitor) setState(next State) {
	m.mu.Lock()
	prev := m.state
	m.state = next
	var notify []Listener
	transitioned := prev.Status != next.Status
	if transitioned {
		for _, fn := range m.listeners {
			notify = append(notify, fn)
		}
	}
	m.mu.Unlock()

	if next.Status == types.NetworkOnline || next.Status == types.NetworkSlow {
		metrics.NetworkOnline.Set(1)
	} else {
		metrics.NetworkOnline.Set(0)
	}

	if !transitioned {
		return
	}

	metrics.NetworkTransitionsTotal.WithLabelValues(string(next.Status)).Inc()
	m.logger.Info().
		Str("from", string(prev.Status)).
		Str("to", string(next.Status)).
		Str("quality", string(next.Quality)).
		Dur("latency", next.Latency).
		Msg("network status changed")

	for _, fn := range notify {
		fn(next)
	}

	// Reconnect: do not wait for the next scheduled drain
	if prev.Status == types.NetworkOffline {
		m.fireDrains()
	}
}

func (m *Monitor) fireDrains() {
	m.mu.RLock()
	fns := make([]func(), 0, len(m.drainFns))
	for _, fn := range m.drainFns {
		fns = append(fns, fn)
	}
	m.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

// classify derives status and quality from one probe result. Quality is
// unknown whenever the status is offline or unknown.
func classify(latency time.Duration, err error) State {
	now := time.Now()
	if err != nil {
		return State{
			Status:    types.NetworkOffline,
			Quality:   types.QualityUnknown,
			CheckedAt: now,
		}
	}

	status := types.NetworkOnline
	if latency > slowThreshold {
		status = types.NetworkSlow
	}

	var quality types.NetworkQuality
	switch {
	case latency < thresholdExcellent:
		quality = types.QualityExcellent
	case latency < thresholdGood:
		quality = types.QualityGood
	case latency < thresholdFair:
		quality = types.QualityFair
	default:
		quality = types.QualityPoor
	}

	return State{
		Status:    status,
		Quality:   quality,
		Latency:   latency,
		CheckedAt: now,
	}
}
