package capture

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Akshita3104/SentinelAi-sub000/internal/config"
	"github.com/Akshita3104/SentinelAi-sub000/internal/core/model"
	"github.com/Akshita3104/SentinelAi-sub000/internal/fabric"
	"github.com/Akshita3104/SentinelAi-sub000/internal/flow"
	"github.com/Akshita3104/SentinelAi-sub000/internal/metrics"
)

// State of the capture supervisor.
type State string

const (
	StateIdle     State = "IDLE"
	StateStarting State = "STARTING"
	StateRunning  State = "RUNNING"
	StateStopping State = "STOPPING"
	StateError    State = "ERROR"
)

const stopGrace = 3 * time.Second

// stderr lines matching any of these mark a capture failure worth surfacing.
var errorKeywords = []string{
	"permission denied",
	"you don't have permission",
	"no such device",
	"no interfaces",
	"couldn't run",
	"capture session could not be initiated",
	"promiscuous mode",
}

// PacketCountPayload is published on every window append.
type PacketCountPayload struct {
	Count int `json:"count"`
}

// TrafficSummary is published alongside every flowReady tick.
type TrafficSummary struct {
	PacketCount      int                    `json:"packet_count"`
	ByteCount        int                    `json:"byte_count"`
	PacketsPerSecond float64                `json:"pps"`
	BytesPerSecond   float64                `json:"bps"`
	Protocols        map[model.Protocol]int `json:"protocols"`
}

// CaptureErrorPayload is published when the capture subsystem fails.
type CaptureErrorPayload struct {
	Message string `json:"message"`
}

// Status is the supervisor's answer to a status query.
type Status struct {
	Running          bool                `json:"running"`
	State            State               `json:"state"`
	Target           string              `json:"target,omitempty"`
	Interface        string              `json:"interface,omitempty"`
	PacketCount      int64               `json:"packet_count"`
	WindowSize       int                 `json:"window_size"`
	DurationSeconds  float64             `json:"duration_s"`
	PacketsPerSecond float64             `json:"pps"`
	RecentSample     *model.PacketRecord `json:"recent_sample,omitempty"`
}

// Supervisor manages the capture source for one (target, interface) pair: it
// drains the source into the flow window, publishes live counters and flow
// snapshots, and absorbs all child failures into its state machine. It never
// restarts a crashed source; ERROR holds until Stop is called.
type Supervisor struct {
	cfg config.CaptureConfig
	fab *fabric.Fabric
	log *logrus.Entry

	mu          sync.Mutex
	state       State
	target      string
	iface       string
	source      Source
	cancel      context.CancelFunc
	done        chan struct{}
	window      *Window
	startedAt   time.Time
	packetCount int64
	lastRecord  *model.PacketRecord
}

// NewSupervisor creates an idle supervisor.
func NewSupervisor(cfg config.CaptureConfig, fab *fabric.Fabric, logger *logrus.Entry) *Supervisor {
	s := &Supervisor{
		cfg:    cfg,
		fab:    fab,
		log:    logger,
		state:  StateIdle,
		window: NewWindow(cfg.Window(), cfg.WindowMaxPackets),
	}
	fab.SetRunningProbe(s.Running)
	return s
}

// Start spawns the external capture process for the given target and
// interface. It is idempotent for identical parameters and rejects a second
// capture with different ones.
func (s *Supervisor) Start(target, iface string) error {
	return s.StartSource(target, iface, NewProcessSource(s.cfg.Binary, target, iface))
}

// StartSource runs a capture session from an arbitrary source (the external
// process in production, a pcap replay or a stub in development and tests).
func (s *Supervisor) StartSource(target, iface string, src Source) error {
	s.mu.Lock()
	switch s.state {
	case StateStarting, StateRunning:
		if s.target == target && s.iface == iface {
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()
		return fmt.Errorf("%w: capturing %s on %s", model.ErrCaptureBusy, s.target, s.iface)
	case StateStopping:
		s.mu.Unlock()
		return fmt.Errorf("%w: previous capture still stopping", model.ErrCaptureBusy)
	case StateError:
		s.mu.Unlock()
		return fmt.Errorf("%w: capture is in error state, stop it first", model.ErrCaptureBusy)
	}

	s.state = StateStarting
	s.target = target
	s.iface = iface
	s.window = NewWindow(s.cfg.Window(), s.cfg.WindowMaxPackets)
	s.packetCount = 0
	s.lastRecord = nil
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	if err := src.Open(ctx); err != nil {
		cancel()
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
		s.log.WithError(err).WithFields(logrus.Fields{"target": target, "interface": iface}).
			Error("capture start failed")
		return err
	}

	done := make(chan struct{})
	s.mu.Lock()
	if s.state != StateStarting {
		// Stop() arrived while Open was in flight and already reported the
		// capture as stopped; honor it instead of promoting to RUNNING.
		s.state = StateIdle
		s.mu.Unlock()
		cancel()
		src.Shutdown(stopGrace)
		s.log.WithFields(logrus.Fields{"target": target, "interface": iface}).
			Info("capture start aborted by stop")
		return nil
	}
	s.state = StateRunning
	s.source = src
	s.cancel = cancel
	s.done = done
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"target": target, "interface": iface}).Info("capture started")

	go s.runSession(ctx, src, target, done)
	return nil
}

// runSession owns the source for its lifetime: the drain loop, the periodic
// flow publication and the exit transition.
func (s *Supervisor) runSession(ctx context.Context, src Source, target string, done chan struct{}) {
	defer close(done)

	pubCtx, pubCancel := context.WithCancel(ctx)
	defer pubCancel()
	pubDone := make(chan struct{})
	go func() {
		defer close(pubDone)
		s.runFlowPublisher(pubCtx, target)
	}()

	err := src.Run(ctx, s.handleRecord, s.handleStderrLine)
	pubCancel()
	<-pubDone

	s.mu.Lock()
	if s.state == StateStopping || ctx.Err() != nil {
		s.mu.Unlock()
		return // Stop() finishes the transition
	}
	s.state = StateError
	s.mu.Unlock()

	msg := "capture process exited unexpectedly"
	if err != nil {
		msg = err.Error()
	}
	s.log.WithField("target", target).Error(msg)
	s.fab.Publish(fabric.TopicCaptureError, CaptureErrorPayload{Message: msg})
}

// runFlowPublisher asks the aggregator for a fresh feature snapshot on every
// tick and publishes it together with a windowed traffic summary.
func (s *Supervisor) runFlowPublisher(ctx context.Context, target string) {
	ticker := time.NewTicker(s.cfg.FlowPublishInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			snapshot := s.window.Snapshot()
			fv := flow.BuildFeatureVector(snapshot, target)
			s.fab.Publish(fabric.TopicFlowReady, fv)
			s.fab.Publish(fabric.TopicTrafficData, summarize(snapshot, fv))
		case <-ctx.Done():
			return
		}
	}
}

func summarize(snapshot []model.PacketRecord, fv model.FeatureVector) TrafficSummary {
	protocols := make(map[model.Protocol]int)
	for _, rec := range snapshot {
		protocols[rec.Protocol]++
	}
	return TrafficSummary{
		PacketCount:      fv.TotalPackets,
		ByteCount:        fv.TotalBytes,
		PacketsPerSecond: fv.PacketsPerSecond,
		BytesPerSecond:   fv.BytesPerSecond,
		Protocols:        protocols,
	}
}

func (s *Supervisor) handleRecord(rec model.PacketRecord) {
	s.window.Append(rec)
	size := s.window.Size()
	metrics.WindowSize.Set(float64(size))

	s.mu.Lock()
	s.packetCount++
	s.lastRecord = &rec
	s.mu.Unlock()

	s.fab.Publish(fabric.TopicPacketCount, PacketCountPayload{Count: size})
}

func (s *Supervisor) handleStderrLine(line string) {
	lower := strings.ToLower(line)
	for _, kw := range errorKeywords {
		if strings.Contains(lower, kw) {
			s.log.WithField("stderr", line).Error("capture process error")
			s.fab.Publish(fabric.TopicCaptureError, CaptureErrorPayload{Message: line})
			return
		}
	}
	s.log.WithField("stderr", line).Debug("capture process output")
}

// Stop terminates the capture gracefully, force-killing after the grace
// period. Stopping an idle supervisor is a no-op; Stop also clears the ERROR
// state.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	switch s.state {
	case StateIdle:
		s.mu.Unlock()
		return nil
	case StateError:
		s.state = StateIdle
		s.source = nil
		s.mu.Unlock()
		return nil
	case StateStarting:
		// No session exists yet. Mark the start aborted; the in-flight
		// StartSource observes the transition after Open returns and tears
		// the source down itself.
		s.state = StateStopping
		s.mu.Unlock()
		s.log.Info("capture stop requested during start")
		return nil
	}
	s.state = StateStopping
	src := s.source
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if src != nil {
		src.Shutdown(stopGrace)
	}
	if done != nil {
		<-done
	}

	s.mu.Lock()
	s.state = StateIdle
	s.source = nil
	s.mu.Unlock()

	s.log.Info("capture stopped")
	return nil
}

// Running reports whether a capture session is active.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateRunning
}

// CurrentState returns the lifecycle state.
func (s *Supervisor) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status snapshots the supervisor for a status query.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running:     s.state == StateRunning,
		State:       s.state,
		PacketCount: s.packetCount,
		WindowSize:  s.window.Size(),
	}
	if s.state == StateRunning {
		st.Target = s.target
		st.Interface = s.iface
		st.DurationSeconds = time.Since(s.startedAt).Seconds()
		if st.DurationSeconds > 0 {
			st.PacketsPerSecond = float64(s.packetCount) / st.DurationSeconds
		}
		st.RecentSample = s.lastRecord
	}
	return st
}

// CurrentFeatures builds a feature vector over the live window for the given
// target. The second return is false when no capture is running.
func (s *Supervisor) CurrentFeatures(target string) (model.FeatureVector, bool) {
	s.mu.Lock()
	running := s.state == StateRunning
	window := s.window
	s.mu.Unlock()

	if !running {
		return model.FeatureVector{}, false
	}
	return flow.BuildFeatureVector(window.Snapshot(), target), true
}
