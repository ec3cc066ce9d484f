package model

import (
	"time"
)

// Protocol is the normalized protocol tag of a captured packet.
type Protocol string

const (
	ProtocolTCP   Protocol = "TCP"
	ProtocolUDP   Protocol = "UDP"
	ProtocolICMP  Protocol = "ICMP"
	ProtocolOther Protocol = "OTHER"
)

// PacketRecord holds the metadata extracted from a single captured frame.
// Records are immutable once constructed.
type PacketRecord struct {
	Timestamp   int64    `json:"timestamp"` // wall-clock, milliseconds
	SrcIP       string   `json:"src_ip"`
	DstIP       string   `json:"dst_ip"`
	SrcPort     uint16   `json:"src_port"`
	DstPort     uint16   `json:"dst_port"`
	Protocol    Protocol `json:"protocol"`
	RawProtocol string   `json:"raw_protocol,omitempty"` // original field for OTHER
	Size        int      `json:"size"`
}

// Time returns the record timestamp as a time.Time.
func (r PacketRecord) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// FlowKey is the 3-tuple grouping records into a flow within one window.
type FlowKey struct {
	SrcIP    string   `json:"src_ip"`
	DstIP    string   `json:"dst_ip"`
	Protocol Protocol `json:"protocol"`
}

// FlowSummary is the per-flow aggregate derived from a window snapshot.
// It is computed on demand and never stored.
type FlowSummary struct {
	SrcIP          string   `json:"src_ip"`
	DstIP          string   `json:"dst_ip"`
	Protocol       Protocol `json:"protocol"`
	PacketCount    int      `json:"packet_count"`
	ByteCount      int      `json:"byte_count"`
	UniqueSrcPorts int      `json:"unique_src_ports"`
	UniqueDstPorts int      `json:"unique_dst_ports"`
	FirstSeen      int64    `json:"first_seen"` // milliseconds
	LastSeen       int64    `json:"last_seen"`  // milliseconds
}

// FeatureVector is the detection input derived from a whole window at a
// moment in time. All statistics use the population formula.
type FeatureVector struct {
	Duration         float64       `json:"duration"` // seconds, floor 1
	TotalPackets     int           `json:"total_packets"`
	TotalBytes       int           `json:"total_bytes"`
	PacketsPerSecond float64       `json:"packets_per_second"`
	BytesPerSecond   float64       `json:"bytes_per_second"`
	PacketSizeMean   float64       `json:"packet_size_mean"`
	PacketSizeStd    float64       `json:"packet_size_std"`
	PacketSizeMin    float64       `json:"packet_size_min"`
	PacketSizeMax    float64       `json:"packet_size_max"`
	InterArrivalMean float64       `json:"inter_arrival_mean"` // seconds
	InterArrivalStd  float64       `json:"inter_arrival_std"`  // seconds
	UniqueSrcPorts   int           `json:"unique_src_ports"`
	UniqueDstPorts   int           `json:"unique_dst_ports"`
	UniqueProtocols  int           `json:"unique_protocols"`
	IsTCP            bool          `json:"is_tcp"`
	IsUDP            bool          `json:"is_udp"`
	IsICMP           bool          `json:"is_icmp"`
	TargetIP         string        `json:"target_ip"`
	Flows            []FlowSummary `json:"flows"`
}

// NetworkSlice tags a detection request with the 5G slice it concerns.
type NetworkSlice string

const (
	SliceEMBB  NetworkSlice = "eMBB"
	SliceURLLC NetworkSlice = "URLLC"
	SliceMMTC  NetworkSlice = "mMTC"
)

// ValidSlice reports whether s is one of the known slice tags.
func ValidSlice(s NetworkSlice) bool {
	switch s {
	case SliceEMBB, SliceURLLC, SliceMMTC:
		return true
	}
	return false
}

// PacketData carries optional per-request traffic hints.
type PacketData struct {
	PacketRate    float64 `json:"packet_rate,omitempty"`
	AvgPacketSize float64 `json:"avg_packet_size,omitempty"`
}

// DetectionRequest is the input to the detection orchestrator.
type DetectionRequest struct {
	Traffic      []float64    `json:"traffic"`
	IPAddress    string       `json:"ip_address"`
	PacketData   *PacketData  `json:"packet_data,omitempty"`
	NetworkSlice NetworkSlice `json:"network_slice,omitempty"`
}

// Prediction is the classifier outcome for one request.
type Prediction string

const (
	PredictionNormal     Prediction = "normal"
	PredictionSuspicious Prediction = "suspicious"
	PredictionDDoS       Prediction = "ddos"
)

// ThreatLevel grades the severity of a verdict.
type ThreatLevel string

const (
	ThreatLow    ThreatLevel = "LOW"
	ThreatMedium ThreatLevel = "MEDIUM"
	ThreatHigh   ThreatLevel = "HIGH"
)

// MitigationAction is the recommended response to a verdict.
type MitigationAction string

const (
	ActionNormal    MitigationAction = "NORMAL"
	ActionMonitor   MitigationAction = "MONITOR"
	ActionRateLimit MitigationAction = "RATE_LIMIT"
	ActionIsolate   MitigationAction = "ISOLATE"
)

// Selected-model tags recorded in verdicts.
const (
	ModelDualAnalysis   = "dual_analysis"
	ModelSystemFallback = "system_fallback"
)

// Mitigation pairs the recommended action with its priority.
type Mitigation struct {
	Action   MitigationAction `json:"action"`
	Priority ThreatLevel      `json:"priority"`
}

// Verdict is the fused output of the ML and reputation judgments over one
// DetectionRequest. It lives only for the response and one fabric emission.
type Verdict struct {
	Prediction        Prediction     `json:"prediction"`
	Confidence        float64        `json:"confidence"`
	ThreatLevel       ThreatLevel    `json:"threat_level"`
	DDoSIndicators    int            `json:"ddos_indicators"`
	ConfidenceFactors []string       `json:"confidence_factors"`
	EnsembleScore     float64        `json:"ensemble_score"`
	ReputationScore   int            `json:"reputation_score"`
	Mitigation        Mitigation     `json:"mitigation"`
	SelectedModel     string         `json:"selected_model"`
	Features          *FeatureVector `json:"features,omitempty"`
	NetworkSlice      NetworkSlice   `json:"network_slice"`
	Timestamp         string         `json:"timestamp"` // ISO-8601
}

// SliceRecommendation is the optional mitigation hint returned by the ML
// classifier.
type SliceRecommendation struct {
	Action   string `json:"action"`
	Priority string `json:"priority"`
}

// MLResponse is the decoded body of a classifier response. All fields are
// optional on the wire; Normalize applies the documented defaults so the
// fusion policy never sees a partially filled response.
type MLResponse struct {
	Prediction        Prediction             `json:"prediction"`
	Confidence        *float64               `json:"confidence"`
	ThreatLevel       ThreatLevel            `json:"threat_level"`
	DDoSIndicators    int                    `json:"ddos_indicators"`
	ConfidenceFactors []string               `json:"confidence_factors"`
	NetworkAnalysis   map[string]interface{} `json:"network_analysis"`
	SliceRec          *SliceRecommendation   `json:"slice_recommendation"`
}

// Normalize fills absent fields with their defaults: normal prediction,
// confidence 0.8, threat level derived from the prediction.
func (r *MLResponse) Normalize() {
	if r.Prediction == "" {
		r.Prediction = PredictionNormal
	}
	if r.Confidence == nil {
		c := 0.8
		r.Confidence = &c
	}
	if r.ThreatLevel == "" {
		switch r.Prediction {
		case PredictionDDoS:
			r.ThreatLevel = ThreatHigh
		case PredictionSuspicious:
			r.ThreatLevel = ThreatMedium
		default:
			r.ThreatLevel = ThreatLow
		}
	}
	if r.ConfidenceFactors == nil {
		r.ConfidenceFactors = []string{}
	}
}

// ReputationOutcome is the result of one reputation judgment: either a score
// in [0,100] or Unavailable.
type ReputationOutcome struct {
	Available bool   `json:"available"`
	Score     int    `json:"score"`
	Status    string `json:"status"` // clean | suspicious
}

// Unavailable is the outcome used when the reputation grader failed.
func Unavailable() ReputationOutcome {
	return ReputationOutcome{Available: false}
}
