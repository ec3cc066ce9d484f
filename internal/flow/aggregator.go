package flow

import (
	"math"
	"sort"

	"github.com/Akshita3104/SentinelAi-sub000/internal/core/model"
)

// accumulator state for one 3-tuple flow within a window snapshot.
type flowAccum struct {
	key       model.FlowKey
	packets   int
	bytes     int
	srcPorts  map[uint16]struct{}
	dstPorts  map[uint16]struct{}
	firstSeen int64
	lastSeen  int64
}

// BuildFeatureVector derives the detection features for the whole window
// snapshot. An empty snapshot yields a zero-valued vector with duration 1,
// never an error.
func BuildFeatureVector(records []model.PacketRecord, target string) model.FeatureVector {
	fv := model.FeatureVector{
		Duration: 1,
		TargetIP: target,
		Flows:    []model.FlowSummary{},
	}
	if len(records) == 0 {
		return fv
	}

	flows := make(map[model.FlowKey]*flowAccum)
	srcPorts := make(map[uint16]struct{})
	dstPorts := make(map[uint16]struct{})
	protocols := make(map[model.Protocol]struct{})

	minTS, maxTS := records[0].Timestamp, records[0].Timestamp
	sizes := make([]float64, len(records))
	timestamps := make([]int64, len(records))
	totalBytes := 0

	for i, rec := range records {
		if rec.Timestamp < minTS {
			minTS = rec.Timestamp
		}
		if rec.Timestamp > maxTS {
			maxTS = rec.Timestamp
		}
		sizes[i] = float64(rec.Size)
		timestamps[i] = rec.Timestamp
		totalBytes += rec.Size

		srcPorts[rec.SrcPort] = struct{}{}
		dstPorts[rec.DstPort] = struct{}{}
		protocols[rec.Protocol] = struct{}{}
		switch rec.Protocol {
		case model.ProtocolTCP:
			fv.IsTCP = true
		case model.ProtocolUDP:
			fv.IsUDP = true
		case model.ProtocolICMP:
			fv.IsICMP = true
		}

		key := model.FlowKey{SrcIP: rec.SrcIP, DstIP: rec.DstIP, Protocol: rec.Protocol}
		acc, ok := flows[key]
		if !ok {
			acc = &flowAccum{
				key:       key,
				srcPorts:  make(map[uint16]struct{}),
				dstPorts:  make(map[uint16]struct{}),
				firstSeen: rec.Timestamp,
				lastSeen:  rec.Timestamp,
			}
			flows[key] = acc
		}
		acc.packets++
		acc.bytes += rec.Size
		acc.srcPorts[rec.SrcPort] = struct{}{}
		acc.dstPorts[rec.DstPort] = struct{}{}
		if rec.Timestamp < acc.firstSeen {
			acc.firstSeen = rec.Timestamp
		}
		if rec.Timestamp > acc.lastSeen {
			acc.lastSeen = rec.Timestamp
		}
	}

	duration := float64(maxTS-minTS) / 1000.0
	if duration < 1 {
		duration = 1
	}

	fv.Duration = duration
	fv.TotalPackets = len(records)
	fv.TotalBytes = totalBytes
	fv.PacketsPerSecond = float64(len(records)) / duration
	fv.BytesPerSecond = float64(totalBytes) / duration
	fv.PacketSizeMean = mean(sizes)
	fv.PacketSizeStd = popStdDev(sizes)
	fv.PacketSizeMin, fv.PacketSizeMax = minMax(sizes)
	fv.UniqueSrcPorts = len(srcPorts)
	fv.UniqueDstPorts = len(dstPorts)
	fv.UniqueProtocols = len(protocols)

	// One timestamp sort for the inter-arrival deltas.
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })
	if len(timestamps) > 1 {
		deltas := make([]float64, len(timestamps)-1)
		for i := 1; i < len(timestamps); i++ {
			deltas[i-1] = float64(timestamps[i]-timestamps[i-1]) / 1000.0
		}
		fv.InterArrivalMean = mean(deltas)
		fv.InterArrivalStd = popStdDev(deltas)
	}

	fv.Flows = make([]model.FlowSummary, 0, len(flows))
	for _, acc := range flows {
		fv.Flows = append(fv.Flows, model.FlowSummary{
			SrcIP:          acc.key.SrcIP,
			DstIP:          acc.key.DstIP,
			Protocol:       acc.key.Protocol,
			PacketCount:    acc.packets,
			ByteCount:      acc.bytes,
			UniqueSrcPorts: len(acc.srcPorts),
			UniqueDstPorts: len(acc.dstPorts),
			FirstSeen:      acc.firstSeen,
			LastSeen:       acc.lastSeen,
		})
	}
	// Deterministic output order: busiest flows first.
	sort.Slice(fv.Flows, func(i, j int) bool {
		if fv.Flows[i].PacketCount != fv.Flows[j].PacketCount {
			return fv.Flows[i].PacketCount > fv.Flows[j].PacketCount
		}
		if fv.Flows[i].SrcIP != fv.Flows[j].SrcIP {
			return fv.Flows[i].SrcIP < fv.Flows[j].SrcIP
		}
		return fv.Flows[i].DstIP < fv.Flows[j].DstIP
	})

	return fv
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// popStdDev computes the population standard deviation (divide by N). For
// N <= 1 the result is 0.
func popStdDev(values []float64) float64 {
	if len(values) <= 1 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

func minMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
