package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Akshita3104/SentinelAi-sub000/internal/core/model"
)

func TestBuildFeatureVectorEmptyWindow(t *testing.T) {
	fv := BuildFeatureVector(nil, "10.0.0.1")

	assert.Equal(t, 1.0, fv.Duration)
	assert.Equal(t, "10.0.0.1", fv.TargetIP)
	assert.Zero(t, fv.TotalPackets)
	assert.Zero(t, fv.PacketsPerSecond)
	assert.NotNil(t, fv.Flows)
	assert.Empty(t, fv.Flows)
}

func TestBuildFeatureVectorSinglePacket(t *testing.T) {
	records := []model.PacketRecord{
		{Timestamp: 1700000000000, SrcIP: "10.0.0.2", DstIP: "10.0.0.1", SrcPort: 40000, DstPort: 80, Protocol: model.ProtocolTCP, Size: 500},
	}

	fv := BuildFeatureVector(records, "10.0.0.1")

	// Duration clamps to one second, std devs are zero for N=1.
	assert.Equal(t, 1.0, fv.Duration)
	assert.Equal(t, 1, fv.TotalPackets)
	assert.Equal(t, 500, fv.TotalBytes)
	assert.Equal(t, 1.0, fv.PacketsPerSecond)
	assert.Equal(t, 500.0, fv.BytesPerSecond)
	assert.Equal(t, 500.0, fv.PacketSizeMean)
	assert.Zero(t, fv.PacketSizeStd)
	assert.Equal(t, 500.0, fv.PacketSizeMin)
	assert.Equal(t, 500.0, fv.PacketSizeMax)
	assert.Zero(t, fv.InterArrivalMean)
	assert.Zero(t, fv.InterArrivalStd)
	assert.True(t, fv.IsTCP)
	assert.False(t, fv.IsUDP)
	assert.Len(t, fv.Flows, 1)
}

func TestBuildFeatureVectorRates(t *testing.T) {
	// Four packets over four seconds: 1 pps.
	var records []model.PacketRecord
	base := int64(1700000000000)
	for i := 0; i < 4; i++ {
		records = append(records, model.PacketRecord{
			Timestamp: base + int64(i)*1000,
			SrcIP:     "10.0.0.2", DstIP: "10.0.0.1",
			SrcPort: uint16(40000 + i), DstPort: 80,
			Protocol: model.ProtocolTCP, Size: 100,
		})
	}

	fv := BuildFeatureVector(records, "10.0.0.1")

	assert.InDelta(t, 3.0, fv.Duration, 1e-9)
	assert.InDelta(t, 4.0/3.0, fv.PacketsPerSecond, 1e-9)
	assert.InDelta(t, 400.0/3.0, fv.BytesPerSecond, 1e-9)
	assert.InDelta(t, 1.0, fv.InterArrivalMean, 1e-9)
	assert.Zero(t, fv.InterArrivalStd)
	assert.Equal(t, 4, fv.UniqueSrcPorts)
	assert.Equal(t, 1, fv.UniqueDstPorts)
	assert.Equal(t, 1, fv.UniqueProtocols)
}

func TestBuildFeatureVectorFlowGrouping(t *testing.T) {
	base := int64(1700000000000)
	records := []model.PacketRecord{
		{Timestamp: base, SrcIP: "10.0.0.2", DstIP: "10.0.0.1", SrcPort: 40000, DstPort: 80, Protocol: model.ProtocolTCP, Size: 100},
		{Timestamp: base + 100, SrcIP: "10.0.0.2", DstIP: "10.0.0.1", SrcPort: 40001, DstPort: 80, Protocol: model.ProtocolTCP, Size: 200},
		{Timestamp: base + 200, SrcIP: "10.0.0.3", DstIP: "10.0.0.1", SrcPort: 50000, DstPort: 53, Protocol: model.ProtocolUDP, Size: 80},
		// Same endpoints as the first flow but a different protocol is a
		// distinct flow.
		{Timestamp: base + 300, SrcIP: "10.0.0.2", DstIP: "10.0.0.1", Protocol: model.ProtocolICMP, Size: 64},
	}

	fv := BuildFeatureVector(records, "10.0.0.1")

	assert.Len(t, fv.Flows, 3)
	assert.Equal(t, 3, fv.UniqueProtocols)
	assert.True(t, fv.IsTCP)
	assert.True(t, fv.IsUDP)
	assert.True(t, fv.IsICMP)

	busiest := fv.Flows[0]
	assert.Equal(t, "10.0.0.2", busiest.SrcIP)
	assert.Equal(t, model.ProtocolTCP, busiest.Protocol)
	assert.Equal(t, 2, busiest.PacketCount)
	assert.Equal(t, 300, busiest.ByteCount)
	assert.Equal(t, 2, busiest.UniqueSrcPorts)
	assert.Equal(t, 1, busiest.UniqueDstPorts)
	assert.Equal(t, base, busiest.FirstSeen)
	assert.Equal(t, base+100, busiest.LastSeen)
}

func TestBuildFeatureVectorDeterministicOrder(t *testing.T) {
	base := int64(1700000000000)
	records := []model.PacketRecord{
		{Timestamp: base, SrcIP: "10.0.0.5", DstIP: "10.0.0.1", Protocol: model.ProtocolTCP, Size: 100},
		{Timestamp: base + 1, SrcIP: "10.0.0.3", DstIP: "10.0.0.1", Protocol: model.ProtocolTCP, Size: 100},
		{Timestamp: base + 2, SrcIP: "10.0.0.4", DstIP: "10.0.0.1", Protocol: model.ProtocolTCP, Size: 100},
	}

	first := BuildFeatureVector(records, "10.0.0.1")
	for i := 0; i < 10; i++ {
		again := BuildFeatureVector(records, "10.0.0.1")
		assert.Equal(t, first, again)
	}
	// Equal packet counts tie-break on source address.
	assert.Equal(t, "10.0.0.3", first.Flows[0].SrcIP)
	assert.Equal(t, "10.0.0.5", first.Flows[2].SrcIP)
}

func TestBuildFeatureVectorOutOfOrderTimestamps(t *testing.T) {
	base := int64(1700000000000)
	records := []model.PacketRecord{
		{Timestamp: base + 4000, SrcIP: "10.0.0.2", DstIP: "10.0.0.1", Protocol: model.ProtocolTCP, Size: 100},
		{Timestamp: base, SrcIP: "10.0.0.2", DstIP: "10.0.0.1", Protocol: model.ProtocolTCP, Size: 100},
		{Timestamp: base + 2000, SrcIP: "10.0.0.2", DstIP: "10.0.0.1", Protocol: model.ProtocolTCP, Size: 100},
	}

	fv := BuildFeatureVector(records, "10.0.0.1")

	assert.InDelta(t, 4.0, fv.Duration, 1e-9)
	// Inter-arrival deltas come from sorted timestamps: 2s and 2s.
	assert.InDelta(t, 2.0, fv.InterArrivalMean, 1e-9)
	assert.Zero(t, fv.InterArrivalStd)
	assert.Equal(t, base, fv.Flows[0].FirstSeen)
	assert.Equal(t, base+4000, fv.Flows[0].LastSeen)
}
