// Package liveness implements the Liveness Monitor (spec §4.7): it ingests
// client-reported RTC stats per Peer, derives per-Track flow state and a
// smoothed connection quality score, and schedules ICE restarts on
// persistent connection failure. Ticking is grounded in the same
// worker-pool ticker idiom the Room Orchestrator uses for its mailbox
// loop — one goroutine (or pool slot) per Monitor, woken on a fixed
// interval, never holding its lock across a Sink call.
package liveness

import (
	"context"
	"sync"
	"time"

	"github.com/pitabwire/frame/workerpool"

	"github.com/medea-project/medea/internal/id"
	"github.com/medea-project/medea/internal/session"
)

// FlowState is the per-Track liveness classification (spec §4.7).
type FlowState string

const (
	Flowing FlowState = "Flowing"
	Stopped FlowState = "Stopped"
)

// Quality is the four-level connection quality score (spec §4.7).
type Quality int

const (
	Poor   Quality = 1
	Low    Quality = 2
	Medium Quality = 3
	High   Quality = 4
)

// Config bundles the Liveness Monitor's timing knobs. The quality
// thresholds are not specified by §4.7 beyond the four named levels; the
// values here are this implementation's sliding-window estimator,
// recorded as an Open Question decision in DESIGN.md.
type Config struct {
	MaxLag           time.Duration
	InitTimeout      time.Duration
	IceFailThreshold time.Duration
	WindowSize       int
	TickInterval     time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxLag == 0 {
		c.MaxLag = 5 * time.Second
	}
	if c.InitTimeout == 0 {
		c.InitTimeout = 10 * time.Second
	}
	if c.IceFailThreshold == 0 {
		c.IceFailThreshold = 8 * time.Second
	}
	if c.WindowSize == 0 {
		c.WindowSize = 5
	}
	if c.TickInterval == 0 {
		c.TickInterval = time.Second
	}
	return c
}

// Sink receives the Monitor's derived events. The Room Orchestrator
// implements it: quality changes become ConnectionQualityUpdated wire
// Events, ICE-restart requests become a negotiation.EvIceRestart
// transition, and flow changes only update the Track's enabled_general
// flag. No wire event and no on_start/on_stop endpoint callback is sent
// for a flow change.
type Sink interface {
	OnTrackFlowChanged(ctx context.Context, peer id.PeerId, track id.TrackId, state FlowState)
	OnQualityChanged(ctx context.Context, peer id.PeerId, score Quality)
	OnIceRestartNeeded(ctx context.Context, peer id.PeerId)
}

type trackState struct {
	flow       FlowState
	lastGrowth time.Time
}

type peerState struct {
	createdAt     time.Time
	badSince      time.Time
	restartSent   bool
	tracks        map[id.TrackId]*trackState
	lossSamples   []float64
	jitterSamples []float64
	lastScore     Quality
}

// Monitor tracks liveness for every registered Peer. Safe for concurrent
// use: Observe/RegisterPeer/RemovePeer may be called from the Room
// actor's mailbox while tick runs on its own ticker goroutine.
type Monitor struct {
	mu     sync.Mutex
	peers  map[id.PeerId]*peerState
	cfg    Config
	sink   Sink
	pool   workerpool.WorkerPool
	cancel context.CancelFunc
}

// NewMonitor builds a Monitor that reports to sink on the interval and
// thresholds in cfg (zero fields take their documented default).
func NewMonitor(sink Sink, pool workerpool.WorkerPool, cfg Config) *Monitor {
	return &Monitor{
		peers: make(map[id.PeerId]*peerState),
		cfg:   cfg.withDefaults(),
		sink:  sink,
		pool:  pool,
	}
}

// Start begins the periodic tick loop: a ticker goroutine submitted to the
// worker pool, falling back to a bare goroutine when no pool is configured.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	fn := func() {
		ticker := time.NewTicker(m.cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				m.tick(ctx, now)
			}
		}
	}
	if m.pool != nil {
		if err := m.pool.Submit(ctx, fn); err != nil {
			go fn()
		}
	} else {
		go fn()
	}
}

// Stop cancels the tick loop.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

// RegisterPeer begins tracking a newly created Peer's receive tracks,
// starting each Flowing as of now (spec §4.7 "Startup grace").
func (m *Monitor) RegisterPeer(peerID id.PeerId, recvTracks []id.TrackId, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ps := &peerState{createdAt: now, tracks: make(map[id.TrackId]*trackState, len(recvTracks)), lastScore: High}
	for _, tid := range recvTracks {
		ps.tracks[tid] = &trackState{flow: Flowing, lastGrowth: now}
	}
	m.peers[peerID] = ps
}

// RemovePeer stops tracking peerID, e.g. when its Peer closes.
func (m *Monitor) RemovePeer(peerID id.PeerId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.peers, peerID)
}

// TrackRegistered adds one more receive track to an already-registered
// Peer, e.g. when a later apply_spec adds a new subscription.
func (m *Monitor) TrackRegistered(peerID id.PeerId, trackID id.TrackId, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ps, ok := m.peers[peerID]
	if !ok {
		return
	}
	ps.tracks[trackID] = &trackState{flow: Flowing, lastGrowth: now}
}

// Observe ingests one AddPeerConnectionMetrics command: updates per-track
// byte growth, the ICE-failure clock, and the quality sliding window, and
// notifies sink of whatever changed. now is supplied by the caller (the
// Room Orchestrator, driven by real wall-clock time at the wire edge) so
// this stays a pure-ish, testable function.
func (m *Monitor) Observe(ctx context.Context, peerID id.PeerId, metrics session.PeerConnectionMetrics, now time.Time) {
	var flowChanges []id.TrackId
	var qualityChanged bool
	var newScore Quality

	m.mu.Lock()
	ps, ok := m.peers[peerID]
	if !ok {
		m.mu.Unlock()
		return
	}

	if metrics.PeerConnectionState == "Failed" || metrics.PeerConnectionState == "Disconnected" {
		if ps.badSince.IsZero() {
			ps.badSince = now
		}
	} else {
		ps.badSince = time.Time{}
		ps.restartSent = false
	}

	var lossSum, jitterSum float64
	for _, d := range metrics.Stats {
		ts, tracked := ps.tracks[d.TrackId]
		if !tracked {
			ts = &trackState{flow: Flowing, lastGrowth: now}
			ps.tracks[d.TrackId] = ts
		}
		if d.BytesDelta > 0 {
			ts.lastGrowth = now
			if ts.flow == Stopped {
				ts.flow = Flowing
				flowChanges = append(flowChanges, d.TrackId)
			}
		}
		lossSum += float64(d.PacketsLost)
		jitterSum += d.JitterMillis
	}
	if len(metrics.Stats) > 0 {
		ps.lossSamples = pushWindow(ps.lossSamples, lossSum/float64(len(metrics.Stats)), m.cfg.WindowSize)
		ps.jitterSamples = pushWindow(ps.jitterSamples, jitterSum/float64(len(metrics.Stats)), m.cfg.WindowSize)
		score := scoreFrom(mean(ps.lossSamples), mean(ps.jitterSamples))
		if score != ps.lastScore {
			ps.lastScore = score
			qualityChanged = true
			newScore = score
		}
	}
	m.mu.Unlock()

	for _, tid := range flowChanges {
		m.sink.OnTrackFlowChanged(ctx, peerID, tid, Flowing)
	}
	if qualityChanged {
		m.sink.OnQualityChanged(ctx, peerID, newScore)
	}
}

// tick scans every registered Peer for Stopped tracks past max_lag and
// for ICE failures that have persisted beyond ice_fail_threshold.
func (m *Monitor) tick(ctx context.Context, now time.Time) {
	type stoppedEvt struct {
		peer  id.PeerId
		track id.TrackId
	}
	var stopped []stoppedEvt
	var restarts []id.PeerId

	m.mu.Lock()
	for pid, ps := range m.peers {
		if now.Sub(ps.createdAt) < m.cfg.InitTimeout {
			continue
		}
		for tid, ts := range ps.tracks {
			if ts.flow == Flowing && now.Sub(ts.lastGrowth) > m.cfg.MaxLag {
				ts.flow = Stopped
				stopped = append(stopped, stoppedEvt{pid, tid})
			}
		}
		if !ps.badSince.IsZero() && !ps.restartSent && now.Sub(ps.badSince) > m.cfg.IceFailThreshold {
			ps.restartSent = true
			restarts = append(restarts, pid)
		}
	}
	m.mu.Unlock()

	for _, s := range stopped {
		m.sink.OnTrackFlowChanged(ctx, s.peer, s.track, Stopped)
	}
	for _, pid := range restarts {
		m.sink.OnIceRestartNeeded(ctx, pid)
	}
}

func pushWindow(w []float64, v float64, size int) []float64 {
	w = append(w, v)
	if len(w) > size {
		w = w[len(w)-size:]
	}
	return w
}

func mean(w []float64) float64 {
	if len(w) == 0 {
		return 0
	}
	var sum float64
	for _, v := range w {
		sum += v
	}
	return sum / float64(len(w))
}

// scoreFrom derives a Quality level from mean packet loss (count/sample)
// and mean jitter (ms) over the sliding window.
func scoreFrom(avgLoss, avgJitter float64) Quality {
	switch {
	case avgLoss == 0 && avgJitter < 30:
		return High
	case avgLoss <= 2 && avgJitter < 60:
		return Medium
	case avgLoss <= 8 && avgJitter < 120:
		return Low
	default:
		return Poor
	}
}
