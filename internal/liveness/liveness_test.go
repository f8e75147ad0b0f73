package liveness

import (
	"context"
	"testing"
	"time"

	"github.com/medea-project/medea/internal/id"
	"github.com/medea-project/medea/internal/session"
)

type recordingSink struct {
	flow     []FlowState
	quality  []Quality
	restarts int
}

func (s *recordingSink) OnTrackFlowChanged(_ context.Context, _ id.PeerId, _ id.TrackId, state FlowState) {
	s.flow = append(s.flow, state)
}
func (s *recordingSink) OnQualityChanged(_ context.Context, _ id.PeerId, score Quality) {
	s.quality = append(s.quality, score)
}
func (s *recordingSink) OnIceRestartNeeded(_ context.Context, _ id.PeerId) {
	s.restarts++
}

func testConfig() Config {
	return Config{
		MaxLag:           2 * time.Second,
		InitTimeout:      1 * time.Second,
		IceFailThreshold: 3 * time.Second,
		WindowSize:       3,
		TickInterval:     time.Second,
	}
}

func TestTickMarksStoppedTrackPastMaxLag(t *testing.T) {
	sink := &recordingSink{}
	m := NewMonitor(sink, nil, testConfig())
	t0 := time.Unix(0, 0)
	m.RegisterPeer(1, []id.TrackId{10}, t0)

	m.tick(context.Background(), t0.Add(500*time.Millisecond))
	if len(sink.flow) != 0 {
		t.Fatalf("expected no flow change before init_timeout elapses, got %+v", sink.flow)
	}

	m.tick(context.Background(), t0.Add(4*time.Second))
	if len(sink.flow) != 1 || sink.flow[0] != Stopped {
		t.Fatalf("expected one Stopped event, got %+v", sink.flow)
	}
}

func TestObserveResumesFlowingAfterGrowth(t *testing.T) {
	sink := &recordingSink{}
	m := NewMonitor(sink, nil, testConfig())
	t0 := time.Unix(0, 0)
	m.RegisterPeer(1, []id.TrackId{10}, t0)
	m.tick(context.Background(), t0.Add(4*time.Second))
	if sink.flow[len(sink.flow)-1] != Stopped {
		t.Fatalf("expected track to be Stopped first, got %+v", sink.flow)
	}

	m.Observe(context.Background(), 1, session.PeerConnectionMetrics{
		PeerConnectionState: "Connected",
		Stats:               []session.TrackStatsDelta{{TrackId: 10, BytesDelta: 1500}},
	}, t0.Add(5*time.Second))

	if sink.flow[len(sink.flow)-1] != Flowing {
		t.Fatalf("expected track to resume Flowing, got %+v", sink.flow)
	}
}

func TestObserveDegradesQualityOnLossAndJitter(t *testing.T) {
	sink := &recordingSink{}
	m := NewMonitor(sink, nil, testConfig())
	t0 := time.Unix(0, 0)
	m.RegisterPeer(1, []id.TrackId{10}, t0)

	for i := 0; i < 3; i++ {
		m.Observe(context.Background(), 1, session.PeerConnectionMetrics{
			PeerConnectionState: "Connected",
			Stats:               []session.TrackStatsDelta{{TrackId: 10, BytesDelta: 1000, PacketsLost: 20, JitterMillis: 150}},
		}, t0.Add(time.Duration(i)*time.Second))
	}

	if len(sink.quality) == 0 || sink.quality[len(sink.quality)-1] != Poor {
		t.Fatalf("expected quality to degrade to Poor under sustained loss/jitter, got %+v", sink.quality)
	}
}

func TestTickTriggersIceRestartOncePastThreshold(t *testing.T) {
	sink := &recordingSink{}
	m := NewMonitor(sink, nil, testConfig())
	t0 := time.Unix(0, 0)
	m.RegisterPeer(1, []id.TrackId{10}, t0)

	m.Observe(context.Background(), 1, session.PeerConnectionMetrics{PeerConnectionState: "Failed"}, t0.Add(100*time.Millisecond))

	m.tick(context.Background(), t0.Add(1*time.Second))
	if sink.restarts != 0 {
		t.Fatalf("expected no restart before ice_fail_threshold, got %d", sink.restarts)
	}

	m.tick(context.Background(), t0.Add(4*time.Second))
	if sink.restarts != 1 {
		t.Fatalf("expected exactly one restart, got %d", sink.restarts)
	}

	m.tick(context.Background(), t0.Add(10*time.Second))
	if sink.restarts != 1 {
		t.Fatalf("expected restart not to repeat while still failed, got %d", sink.restarts)
	}
}
