// Package poller runs feature loops: a goroutine pinned to its own OS thread,
// attached to the session, that reads a set of probes on every tick.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mabhi256/jinterop/internal/host"
	"github.com/mabhi256/jinterop/internal/interop"
)

// shutdown stops every running loop at its next tick.
var shutdown atomic.Bool

// Shutdown asks all pollers in the process to stop.
func Shutdown() {
	shutdown.Store(true)
}

func ShuttingDown() bool {
	return shutdown.Load()
}

// Probe reads one value on the poller's thread.
type Probe struct {
	Name string
	Read func() (host.Value, error)
}

// FieldProbe reads f on every tick. instance is nil for static fields and
// must be a global reference otherwise.
func FieldProbe(name string, f *interop.Field, instance *interop.Ref) Probe {
	return Probe{
		Name: name,
		Read: func() (host.Value, error) { return f.Load(instance) },
	}
}

// MethodProbe calls a no-argument method on every tick.
func MethodProbe(name string, m *interop.Method, instance *interop.Ref) Probe {
	return Probe{
		Name: name,
		Read: func() (host.Value, error) { return m.Invoke(instance) },
	}
}

// Snapshot is the result of one round.
type Snapshot struct {
	Timestamp time.Time
	Round     int
	Values    map[string]host.Value
	// Errors holds the probes that failed this round.
	Errors map[string]error
}

type Poller struct {
	session  *interop.Session
	probes   []Probe
	interval time.Duration
	log      *slog.Logger

	mu       sync.RWMutex
	snapshot *Snapshot

	running  atomic.Bool
	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
	updates  chan Snapshot
}

func New(s *interop.Session, interval time.Duration, probes ...Probe) *Poller {
	return &Poller{
		session:  s,
		probes:   probes,
		interval: interval,
		log:      s.Logger(),
		snapshot: &Snapshot{Timestamp: time.Now()},
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
		updates:  make(chan Snapshot, 1),
	}
}

// Start launches the loop and returns once its thread is attached.
func (p *Poller) Start(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return errors.New("poller already running")
	}
	if p.interval <= 0 {
		p.running.Store(false)
		return fmt.Errorf("poll interval must be positive, got %s", p.interval)
	}

	attached := make(chan error, 1)
	go p.loop(ctx, attached)
	if err := <-attached; err != nil {
		p.running.Store(false)
		return fmt.Errorf("attach poller thread: %w", err)
	}
	return nil
}

// Stop ends the loop and waits for its thread to detach.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	if p.running.Load() {
		<-p.done
	}
}

// Done is closed when the loop has exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Updates delivers snapshots as they are taken. A slow reader only sees the
// latest one.
func (p *Poller) Updates() <-chan Snapshot {
	return p.updates
}

// Snapshot returns a copy of the latest round.
func (p *Poller) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	cp := *p.snapshot
	cp.Values = maps.Clone(p.snapshot.Values)
	cp.Errors = maps.Clone(p.snapshot.Errors)
	return cp
}

func (p *Poller) loop(ctx context.Context, attached chan<- error) {
	defer close(p.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := p.session.AttachThread(true); err != nil {
		attached <- err
		return
	}
	attached <- nil
	defer func() {
		if err := p.session.DetachThread(); err != nil {
			p.log.Warn("detach poller thread", "err", err)
		}
		p.running.Store(false)
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for round := 1; ; round++ {
		select {
		case <-p.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if ShuttingDown() {
			p.log.Debug("poller stopping on shutdown", "rounds", round-1)
			return
		}
		p.collect(round)
	}
}

func (p *Poller) collect(round int) {
	snap := &Snapshot{
		Timestamp: time.Now(),
		Round:     round,
		Values:    make(map[string]host.Value, len(p.probes)),
	}
	for _, probe := range p.probes {
		v, err := probe.Read()
		if err != nil {
			if snap.Errors == nil {
				snap.Errors = make(map[string]error)
			}
			snap.Errors[probe.Name] = err
			p.log.Debug("probe failed", "probe", probe.Name, "err", err)
			continue
		}
		snap.Values[probe.Name] = v
	}

	p.mu.Lock()
	p.snapshot = snap
	p.mu.Unlock()

	select {
	case <-p.updates:
	default:
	}
	select {
	case p.updates <- *snap:
	default:
	}
}
