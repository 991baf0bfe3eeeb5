// Package connectivity reports whether the backend is reachable and notifies
// subscribers on online/offline transitions. The sync engine gates drain
// passes on it and re-arms when connectivity returns.
package connectivity

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Oracle answers "are we online right now" and delivers edge-triggered
// transition events. Unsubscribe via the returned function.
type Oracle interface {
	Online(ctx context.Context) bool
	OnChange(fn func(online bool)) (unsubscribe func())
}

// Probe checks reachability once. It should be cheap; it runs on every poll
// tick and on every Online call.
type Probe func(ctx context.Context) bool

// TCPProbe dials addr with the given timeout. The usual probe target is the
// backend API host.
func TCPProbe(addr string, timeout time.Duration) Probe {
	return func(ctx context.Context) bool {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}
}

// Monitor polls a Probe and notifies listeners when the observed state flips.
// A new listener is told the current state immediately so subscribers never
// have to wait for the first transition.
type Monitor struct {
	probe    Probe
	interval time.Duration
	log      zerolog.Logger

	mu        sync.Mutex
	online    bool
	known     bool
	listeners map[int]func(bool)
	nextID    int
	stop      chan struct{}
	stopOnce  sync.Once
}

func NewMonitor(probe Probe, interval time.Duration, log zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Monitor{
		probe:     probe,
		interval:  interval,
		log:       log,
		listeners: make(map[int]func(bool)),
		stop:      make(chan struct{}),
	}
}

// Start launches the poll loop. Call Stop to end it.
func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.observe(context.Background())

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.observe(context.Background())
		}
	}
}

func (m *Monitor) observe(ctx context.Context) {
	online := m.probe(ctx)

	m.mu.Lock()
	changed := !m.known || m.online != online
	m.online = online
	m.known = true
	var fns []func(bool)
	if changed {
		for _, fn := range m.listeners {
			fns = append(fns, fn)
		}
	}
	m.mu.Unlock()

	if changed {
		m.log.Info().Bool("online", online).Msg("connectivity changed")
		for _, fn := range fns {
			fn(online)
		}
	}
}

// Online probes directly rather than trusting the last poll, so callers get a
// current answer before committing to a drain pass.
func (m *Monitor) Online(ctx context.Context) bool {
	online := m.probe(ctx)

	m.mu.Lock()
	m.online = online
	m.known = true
	m.mu.Unlock()

	return online
}

func (m *Monitor) OnChange(fn func(online bool)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	known, online := m.known, m.online
	m.mu.Unlock()

	if known {
		fn(online)
	}

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Manual is an Oracle driven by SetOnline. Used by tests and by deployments
// that force online/offline mode explicitly.
type Manual struct {
	mu        sync.Mutex
	online    bool
	listeners map[int]func(bool)
	nextID    int
}

func NewManual(online bool) *Manual {
	return &Manual{online: online, listeners: make(map[int]func(bool))}
}

func (m *Manual) Online(context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *Manual) SetOnline(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	var fns []func(bool)
	if changed {
		for _, fn := range m.listeners {
			fns = append(fns, fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
}

func (m *Manual) OnChange(fn func(online bool)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	online := m.online
	m.mu.Unlock()

	fn(online)

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}
