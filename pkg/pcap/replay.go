// Package pcap replays recorded traffic through the capture pipeline.
package pcap

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/Akshita3104/SentinelAi-sub000/internal/core/model"
)

// ReplaySource reads a pcap file and feeds its packets into the flow
// window as if they had been captured live. It implements the same
// interface as the live capture source, so the supervisor does not know
// the difference.
type ReplaySource struct {
	path   string
	handle *pcap.Handle
	done   chan struct{}
}

// NewReplaySource creates a replay source for the given pcap file.
func NewReplaySource(path string) *ReplaySource {
	return &ReplaySource{path: path, done: make(chan struct{})}
}

// Open opens the pcap file; it fails fast if the file is missing or
// malformed.
func (r *ReplaySource) Open(ctx context.Context) error {
	handle, err := pcap.OpenOffline(r.path)
	if err != nil {
		return fmt.Errorf("open pcap %s: %w", r.path, err)
	}
	r.handle = handle
	return nil
}

// Run reads every packet from the file, converts it to a record and emits
// it. Replay timestamps are rebased so the last packet lands at "now",
// which keeps the whole file inside the rolling window.
func (r *ReplaySource) Run(ctx context.Context, emit func(model.PacketRecord), stderr func(string)) error {
	defer close(r.done)
	defer r.handle.Close()

	source := gopacket.NewPacketSource(r.handle, r.handle.LinkType())

	var records []model.PacketRecord
	for packet := range source.Packets() {
		if ctx.Err() != nil {
			return nil
		}
		rec, err := convert(packet)
		if err != nil {
			// Unsupported link or network layers are expected in mixed
			// captures; report and keep going.
			stderr(fmt.Sprintf("skipping packet: %v", err))
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return fmt.Errorf("pcap %s contained no usable packets", r.path)
	}

	offset := time.Now().UnixMilli() - records[len(records)-1].Timestamp
	for _, rec := range records {
		rec.Timestamp += offset
		emit(rec)
	}
	return nil
}

// Shutdown waits for the replay loop to drain, up to the grace period.
func (r *ReplaySource) Shutdown(grace time.Duration) {
	select {
	case <-r.done:
	case <-time.After(grace):
	}
}

// convert extracts the record fields from a decoded packet. IPv4 TCP, UDP
// and ICMP packets are supported; everything else is rejected.
func convert(packet gopacket.Packet) (model.PacketRecord, error) {
	var rec model.PacketRecord

	rec.Timestamp = time.Now().UnixMilli()
	if meta := packet.Metadata(); meta != nil {
		rec.Timestamp = meta.Timestamp.UnixMilli()
		rec.Size = meta.Length
	}
	if rec.Size == 0 {
		rec.Size = len(packet.Data())
	}

	l := packet.Layer(layers.LayerTypeIPv4)
	if l == nil {
		return rec, fmt.Errorf("not an IPv4 packet")
	}
	ip := l.(*layers.IPv4)
	rec.SrcIP = ip.SrcIP.String()
	rec.DstIP = ip.DstIP.String()

	switch {
	case packet.Layer(layers.LayerTypeTCP) != nil:
		tcp := packet.Layer(layers.LayerTypeTCP).(*layers.TCP)
		rec.Protocol = model.ProtocolTCP
		rec.SrcPort = uint16(tcp.SrcPort)
		rec.DstPort = uint16(tcp.DstPort)
	case packet.Layer(layers.LayerTypeUDP) != nil:
		udp := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		rec.Protocol = model.ProtocolUDP
		rec.SrcPort = uint16(udp.SrcPort)
		rec.DstPort = uint16(udp.DstPort)
	case packet.Layer(layers.LayerTypeICMPv4) != nil:
		rec.Protocol = model.ProtocolICMP
	default:
		rec.Protocol = model.ProtocolOther
		rec.RawProtocol = strconv.Itoa(int(ip.Protocol))
	}

	return rec, nil
}
