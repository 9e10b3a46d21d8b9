// Package sizing implements VRAM monitoring and session-start window
// sizing (spec §4.1, §4.5). The GPU-probe fallback is grounded in
// intelligencedev-manifold's hostinfo package (populateMemoryInfo using
// gopsutil's mem.VirtualMemory), generalized: a real GPU prober is
// pluggable, and when none is configured (or it errors) the monitor
// degrades to host-memory headroom tagged VRAMSourceUnknown so callers
// never mistake it for real GPU telemetry. Periodic polling uses
// robfig/cron the way teradata-labs/loom's pkg/scheduler wires
// cron.New()/AddFunc for recurring background work.
package sizing

import (
	"context"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/ctxengine/ctxengine/pkg/events"
	"github.com/ctxengine/ctxengine/pkg/logger"
	"github.com/ctxengine/ctxengine/pkg/model"
)

// Prober reads a point-in-time VRAM reading from a real GPU backend.
// The engine ships no concrete implementation (no GPU telemetry library
// appears anywhere in the reference pack); HostMemoryProber below is the
// supplied fallback, and a real Prober can be wired in by an embedder.
type Prober interface {
	Probe(ctx context.Context) (model.VRAMReading, error)
}

// HostMemoryProber reports host RAM headroom as a degraded stand-in for
// VRAM, always tagging its readings VRAMSourceUnknown.
type HostMemoryProber struct{}

// Probe implements Prober.
func (HostMemoryProber) Probe(ctx context.Context) (model.VRAMReading, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return model.VRAMReading{}, err
	}
	return model.VRAMReading{
		TotalBytes: vm.Total,
		UsedBytes:  vm.Used,
		FreeBytes:  vm.Available,
		Source:     model.VRAMSourceUnknown,
		SampledAt:  time.Now(),
	}, nil
}

// Thresholds for LowMemory/CriticalMemory events, as fractions of free
// VRAM (spec §4.5 default 20%/10%).
const (
	DefaultLowFreeRatio      = 0.20
	DefaultCriticalFreeRatio = 0.10
)

// Monitor polls a Prober on a cron schedule and publishes LowMemory /
// CriticalMemory events when free ratio crosses the configured
// thresholds. It keeps the latest reading available synchronously via
// Latest for session-start sizing.
type Monitor struct {
	prober           Prober
	bus              *events.Bus
	lowFreeRatio     float64
	criticalFreeRatio float64

	mu      sync.RWMutex
	latest  model.VRAMReading
	cron    *cronlib.Cron
	sessionID string
}

// NewMonitor builds a Monitor. lowFreeRatio/criticalFreeRatio of zero
// fall back to the package defaults.
func NewMonitor(prober Prober, bus *events.Bus, lowFreeRatio, criticalFreeRatio float64) *Monitor {
	if lowFreeRatio <= 0 {
		lowFreeRatio = DefaultLowFreeRatio
	}
	if criticalFreeRatio <= 0 {
		criticalFreeRatio = DefaultCriticalFreeRatio
	}
	return &Monitor{
		prober:            prober,
		bus:               bus,
		lowFreeRatio:      lowFreeRatio,
		criticalFreeRatio: criticalFreeRatio,
	}
}

// ProbeNow takes an immediate reading, updates Latest, and publishes
// threshold-crossing events. Used both at session start and by the
// periodic poll.
func (m *Monitor) ProbeNow(ctx context.Context, sessionID string) (model.VRAMReading, error) {
	reading, err := m.prober.Probe(ctx)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("sizing: VRAM probe failed, reporting unknown")
		reading = model.VRAMReading{Source: model.VRAMSourceUnknown, SampledAt: time.Now()}
	}

	m.mu.Lock()
	m.latest = reading
	m.sessionID = sessionID
	m.mu.Unlock()

	if m.bus != nil {
		ratio := reading.FreeRatio()
		switch {
		case reading.Source != model.VRAMSourceUnknown && ratio <= m.criticalFreeRatio:
			m.bus.Publish(events.Event{Kind: events.KindCriticalMemory, SessionID: sessionID, At: time.Now(),
				Payload: events.LowMemoryPayload{Reading: reading}})
		case reading.Source != model.VRAMSourceUnknown && ratio <= m.lowFreeRatio:
			m.bus.Publish(events.Event{Kind: events.KindLowMemory, SessionID: sessionID, At: time.Now(),
				Payload: events.LowMemoryPayload{Reading: reading}})
		}
	}

	return reading, nil
}

// Latest returns the most recent reading taken, or the zero value if
// none has been taken yet.
func (m *Monitor) Latest() model.VRAMReading {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// StartPolling begins a recurring probe on the given cron schedule. The
// parser is seconds-enabled, so schedule takes six fields (e.g.
// "*/30 * * * * *" for every 30s); a standard 5-field expression is
// rejected.
func (m *Monitor) StartPolling(ctx context.Context, schedule string, sessionID string) error {
	m.cron = cronlib.New(cronlib.WithSeconds())
	_, err := m.cron.AddFunc(schedule, func() {
		if _, err := m.ProbeNow(ctx, sessionID); err != nil {
			logger.G(ctx).WithError(err).Warn("sizing: periodic VRAM probe failed")
		}
	})
	if err != nil {
		return err
	}
	m.cron.Start()
	return nil
}

// StopPolling halts the periodic probe, waiting for any in-flight run to finish.
func (m *Monitor) StopPolling() {
	if m.cron != nil {
		stopCtx := m.cron.Stop()
		<-stopCtx.Done()
	}
}
