package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Akshita3104/SentinelAi-sub000/internal/core/model"
	"github.com/Akshita3104/SentinelAi-sub000/internal/detect"
	"github.com/Akshita3104/SentinelAi-sub000/internal/fabric"
)

type recordingNotifier struct {
	mu       sync.Mutex
	subjects []string
	bodies   []string
}

func (r *recordingNotifier) Send(subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects = append(r.subjects, subject)
	r.bodies = append(r.bodies, body)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subjects)
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func ddosVerdict() model.Verdict {
	return model.Verdict{
		Prediction:        model.PredictionDDoS,
		Confidence:        0.95,
		ThreatLevel:       model.ThreatHigh,
		ConfidenceFactors: []string{"Suspicious IP reputation (score 80)"},
		Mitigation:        model.Mitigation{Action: model.ActionIsolate, Priority: model.ThreatHigh},
		Timestamp:         "2026-08-26T10:00:00Z",
	}
}

func TestWatchVerdictsAlertsOnDDoS(t *testing.T) {
	fab := fabric.New(16, testLogger().WithField("t", t.Name()))
	defer fab.Close()

	rec := &recordingNotifier{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go WatchVerdicts(ctx, fab, rec, testLogger())

	assert.Eventually(t, func() bool { return fab.Connections() == 1 }, time.Second, 5*time.Millisecond)

	fab.Publish(fabric.TopicDetectionResult, detect.ResultPayload{IP: "203.0.113.9", Verdict: ddosVerdict()})

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Contains(t, rec.subjects[0], "203.0.113.9")
	assert.Contains(t, rec.bodies[0], "ISOLATE")
}

func TestWatchVerdictsIgnoresBenignResults(t *testing.T) {
	fab := fabric.New(16, testLogger().WithField("t", t.Name()))
	defer fab.Close()

	rec := &recordingNotifier{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go WatchVerdicts(ctx, fab, rec, testLogger())

	assert.Eventually(t, func() bool { return fab.Connections() == 1 }, time.Second, 5*time.Millisecond)

	benign := ddosVerdict()
	benign.Prediction = model.PredictionNormal
	fab.Publish(fabric.TopicDetectionResult, detect.ResultPayload{IP: "203.0.113.9", Verdict: benign})
	suspect := ddosVerdict()
	suspect.Prediction = model.PredictionSuspicious
	fab.Publish(fabric.TopicDetectionResult, detect.ResultPayload{IP: "203.0.113.9", Verdict: suspect})

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, rec.count())
}

func TestFormatAlert(t *testing.T) {
	body := formatAlert(detect.ResultPayload{IP: "203.0.113.9", Verdict: ddosVerdict()})

	assert.Contains(t, body, "203.0.113.9")
	assert.Contains(t, body, "0.95")
	assert.Contains(t, body, "Suspicious IP reputation (score 80)")
	assert.Contains(t, body, "2026-08-26T10:00:00Z")
}
