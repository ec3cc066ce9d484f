package detect

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Akshita3104/SentinelAi-sub000/internal/core/model"
	"github.com/Akshita3104/SentinelAi-sub000/internal/fabric"
	"github.com/Akshita3104/SentinelAi-sub000/internal/metrics"
	"github.com/Akshita3104/SentinelAi-sub000/internal/ml"
)

// Fusion policy constants.
const (
	mlWeight          = 0.7
	reputationWeight  = 0.3
	threatInfluence   = 0.8
	cleanInfluence    = 0.2
	ddosThreshold     = 0.6
	suspectThreshold  = 0.3
	agreementBump     = 0.15
	escalationBump    = 0.10
	confidenceCeiling = 0.95

	// fallback grader rules
	fallbackMaxCutoff  = 1000.0
	fallbackMeanCutoff = 500.0

	totalDeadlineSlack = 100 * time.Millisecond
)

// ReputationSource answers reputation lookups; the TTL cache satisfies it.
type ReputationSource interface {
	Lookup(ctx context.Context, ip string) model.ReputationOutcome
}

// FeatureSource provides the live window's feature vector for a target;
// the capture supervisor satisfies it.
type FeatureSource interface {
	CurrentFeatures(target string) (model.FeatureVector, bool)
}

// LogPayload is published on the detectionLog topic.
type LogPayload struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// ResultPayload is published on the detectionResult topic.
type ResultPayload struct {
	IP      string        `json:"ip"`
	Verdict model.Verdict `json:"verdict"`
}

// Orchestrator performs the bounded-latency fan-out to the two graders and
// fuses their judgments into one verdict. Neither grader failing is fatal:
// a missing ML response selects the rule-based fallback, and a missing
// reputation score degrades to ML-only fusion.
type Orchestrator struct {
	ml         ml.Classifier
	reputation ReputationSource
	features   FeatureSource
	fab        *fabric.Fabric
	log        *logrus.Entry

	abuseThreshold int
	mlDeadline     time.Duration
	repDeadline    time.Duration
}

// NewOrchestrator wires the graders. features may be nil when no capture
// pipeline exists (the verdict then derives features from the request).
func NewOrchestrator(classifier ml.Classifier, reputation ReputationSource, features FeatureSource,
	fab *fabric.Fabric, abuseThreshold int, mlDeadline, repDeadline time.Duration, logger *logrus.Entry) *Orchestrator {
	return &Orchestrator{
		ml:             classifier,
		reputation:     reputation,
		features:       features,
		fab:            fab,
		log:            logger,
		abuseThreshold: abuseThreshold,
		mlDeadline:     mlDeadline,
		repDeadline:    repDeadline,
	}
}

// Detect runs both graders in parallel under the total deadline and
// synthesizes the fused verdict. It never returns an error for grader
// failures; those are folded into the fusion policy.
func (o *Orchestrator) Detect(ctx context.Context, req model.DetectionRequest) model.Verdict {
	if req.NetworkSlice == "" {
		req.NetworkSlice = model.SliceEMBB
	}

	o.fab.Publish(fabric.TopicDetectionLog, LogPayload{
		Level:   "info",
		Message: fmt.Sprintf("analyzing traffic from %s", req.IPAddress),
	})

	total := o.mlDeadline
	if o.repDeadline > total {
		total = o.repDeadline
	}
	ctx, cancel := context.WithTimeout(ctx, total+totalDeadlineSlack)
	defer cancel()

	mlCh := make(chan *model.MLResponse, 1)
	repCh := make(chan model.ReputationOutcome, 1)

	go func() {
		resp, err := o.ml.Classify(ctx, req)
		if err != nil {
			metrics.GraderFailures.WithLabelValues("ml").Inc()
			o.log.WithError(err).WithField("ip", req.IPAddress).Warn("ML grader unavailable")
			mlCh <- nil
			return
		}
		mlCh <- resp
	}()
	go func() {
		repCh <- o.reputation.Lookup(ctx, req.IPAddress)
	}()

	mlResp := <-mlCh
	repOut := <-repCh

	verdict := o.fuse(req, mlResp, repOut)
	verdict.NetworkSlice = req.NetworkSlice
	verdict.Timestamp = time.Now().UTC().Format(time.RFC3339)
	verdict.Features = o.featuresFor(req)

	metrics.Detections.WithLabelValues(string(verdict.Prediction)).Inc()
	o.fab.Publish(fabric.TopicDetectionResult, ResultPayload{IP: req.IPAddress, Verdict: verdict})
	o.fab.Publish(fabric.TopicDetectionLog, LogPayload{
		Level: "success",
		Message: fmt.Sprintf("detection complete for %s: %s (%d%%)",
			req.IPAddress, verdict.Prediction, int(verdict.Confidence*100)),
	})

	return verdict
}

// fuse applies the weighting and escalation policy over the two grader
// results.
func (o *Orchestrator) fuse(req model.DetectionRequest, mlResp *model.MLResponse, rep model.ReputationOutcome) model.Verdict {
	repScore := 0
	ipThreat := false
	var factors []string

	if rep.Available {
		repScore = rep.Score
		ipThreat = rep.Score > o.abuseThreshold
		if ipThreat {
			factors = append(factors, fmt.Sprintf("Suspicious IP reputation (score %d)", rep.Score))
		}
	} else {
		factors = append(factors, "reputation unavailable")
	}

	if mlResp == nil {
		return o.fallback(req, repScore, ipThreat, factors)
	}

	mlProb := 0.0
	switch mlResp.Prediction {
	case model.PredictionDDoS:
		mlProb = 1.0
	case model.PredictionSuspicious:
		mlProb = 0.5
	}
	mlConf := *mlResp.Confidence

	ipInfluence := cleanInfluence
	if ipThreat {
		ipInfluence = threatInfluence
	}
	combined := mlWeight*mlProb*mlConf + reputationWeight*ipInfluence

	prediction := mlResp.Prediction
	threat := mlResp.ThreatLevel
	confidence := mlConf

	switch {
	case mlProb > 0 && ipThreat:
		threat = model.ThreatHigh
		confidence = math.Min(confidenceCeiling, confidence+agreementBump)
		if prediction == model.PredictionNormal {
			prediction = model.PredictionSuspicious
		}
	case combined > ddosThreshold:
		prediction = model.PredictionDDoS
		threat = model.ThreatHigh
		confidence = math.Min(confidenceCeiling, confidence+escalationBump)
	case combined > suspectThreshold && prediction == model.PredictionNormal:
		prediction = model.PredictionSuspicious
		threat = model.ThreatMedium
	}

	return model.Verdict{
		Prediction:        prediction,
		Confidence:        clamp(confidence, 0, confidenceCeiling),
		ThreatLevel:       threat,
		DDoSIndicators:    mlResp.DDoSIndicators,
		ConfidenceFactors: append(append([]string{}, mlResp.ConfidenceFactors...), factors...),
		EnsembleScore:     clamp(combined, 0, 1),
		ReputationScore:   repScore,
		Mitigation:        mitigationFor(prediction, mlResp.SliceRec),
		SelectedModel:     model.ModelDualAnalysis,
	}
}

// fallback is the deterministic rule-based grader used when the ML grader is
// unreachable.
func (o *Orchestrator) fallback(req model.DetectionRequest, repScore int, ipThreat bool, factors []string) model.Verdict {
	maxV, meanV := 0.0, 0.0
	for _, v := range req.Traffic {
		if v > maxV {
			maxV = v
		}
		meanV += v
	}
	if len(req.Traffic) > 0 {
		meanV /= float64(len(req.Traffic))
	}

	indicators := 0
	if maxV > fallbackMaxCutoff {
		indicators++
		factors = append(factors, fmt.Sprintf("Traffic peak %.0f exceeds threshold", maxV))
	}
	if meanV > fallbackMeanCutoff {
		indicators++
		factors = append(factors, fmt.Sprintf("Traffic mean %.0f exceeds threshold", meanV))
	}
	if ipThreat {
		indicators++
	}

	prediction := model.PredictionNormal
	threat := model.ThreatLow
	if indicators > 0 {
		prediction = model.PredictionDDoS
		threat = model.ThreatMedium
	}

	prob := 0.0
	if prediction == model.PredictionDDoS {
		prob = 1.0
	}
	ipInfluence := cleanInfluence
	if ipThreat {
		ipInfluence = threatInfluence
	}
	combined := mlWeight*prob*0.5 + reputationWeight*ipInfluence

	return model.Verdict{
		Prediction:        prediction,
		Confidence:        0.5,
		ThreatLevel:       threat,
		DDoSIndicators:    indicators,
		ConfidenceFactors: factors,
		EnsembleScore:     clamp(combined, 0, 1),
		ReputationScore:   repScore,
		Mitigation:        mitigationFor(prediction, nil),
		SelectedModel:     model.ModelSystemFallback,
	}
}

// mitigationFor maps the final prediction to the recommended action.
func mitigationFor(prediction model.Prediction, sliceRec *model.SliceRecommendation) model.Mitigation {
	switch prediction {
	case model.PredictionDDoS:
		return model.Mitigation{Action: model.ActionIsolate, Priority: model.ThreatHigh}
	case model.PredictionSuspicious:
		action := model.ActionMonitor
		if sliceRec != nil && sliceRec.Action == "Rate-limit" {
			action = model.ActionRateLimit
		}
		return model.Mitigation{Action: action, Priority: model.ThreatMedium}
	default:
		return model.Mitigation{Action: model.ActionNormal, Priority: model.ThreatLow}
	}
}

// featuresFor attaches the live window's feature vector when a capture is
// running, otherwise a vector derived from the submitted traffic sequence.
func (o *Orchestrator) featuresFor(req model.DetectionRequest) *model.FeatureVector {
	if o.features != nil {
		if fv, ok := o.features.CurrentFeatures(req.IPAddress); ok {
			return &fv
		}
	}
	fv := vectorFromTraffic(req)
	return &fv
}

// vectorFromTraffic synthesizes features from the request alone, treating
// each traffic element as a per-second packet count.
func vectorFromTraffic(req model.DetectionRequest) model.FeatureVector {
	duration := float64(len(req.Traffic))
	if duration < 1 {
		duration = 1
	}
	total := 0.0
	for _, v := range req.Traffic {
		total += v
	}

	fv := model.FeatureVector{
		Duration:         duration,
		TotalPackets:     int(math.Round(total)),
		PacketsPerSecond: total / duration,
		TargetIP:         req.IPAddress,
		Flows:            []model.FlowSummary{},
	}
	if req.PacketData != nil {
		if req.PacketData.PacketRate > 0 {
			fv.PacketsPerSecond = req.PacketData.PacketRate
		}
		if req.PacketData.AvgPacketSize > 0 {
			fv.PacketSizeMean = req.PacketData.AvgPacketSize
			fv.TotalBytes = int(math.Round(req.PacketData.AvgPacketSize * total))
			fv.BytesPerSecond = float64(fv.TotalBytes) / duration
		}
	}
	return fv
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
