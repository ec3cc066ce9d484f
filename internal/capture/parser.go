package capture

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Akshita3104/SentinelAi-sub000/internal/core/model"
)

// ErrSkipLine marks a capture line with too few usable fields. Callers count
// and drop; no parse error is fatal.
var ErrSkipLine = errors.New("capture line skipped")

// Field layout of one capture line, tab-separated:
// epoch-seconds, src IP, dst IP, protocol, tcp srcport, tcp dstport,
// udp srcport, udp dstport, frame length.
const (
	fieldEpoch = iota
	fieldSrcIP
	fieldDstIP
	fieldProtocol
	fieldTCPSrcPort
	fieldTCPDstPort
	fieldUDPSrcPort
	fieldUDPDstPort
	fieldFrameLen
	numFields
)

const defaultFrameSize = 64

// ParseLine decodes one line of capture output into a PacketRecord. now is
// the wall clock used when the line carries no usable timestamp.
func ParseLine(line string, now time.Time) (model.PacketRecord, error) {
	fields := strings.Split(line, "\t")
	nonEmpty := 0
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
		if fields[i] != "" {
			nonEmpty++
		}
	}
	if nonEmpty < 6 {
		return model.PacketRecord{}, ErrSkipLine
	}

	rec := model.PacketRecord{
		Timestamp: now.UnixMilli(),
		SrcIP:     field(fields, fieldSrcIP),
		DstIP:     field(fields, fieldDstIP),
		Size:      defaultFrameSize,
	}

	if ts, err := strconv.ParseFloat(field(fields, fieldEpoch), 64); err == nil && !math.IsNaN(ts) && !math.IsInf(ts, 0) {
		rec.Timestamp = int64(math.Round(ts * 1000))
	}

	rec.Protocol, rec.RawProtocol = mapProtocol(field(fields, fieldProtocol))

	// Prefer the TCP port pair, fall back to UDP, else zero.
	if src, dst, ok := parsePortPair(field(fields, fieldTCPSrcPort), field(fields, fieldTCPDstPort)); ok {
		rec.SrcPort, rec.DstPort = src, dst
	} else if src, dst, ok := parsePortPair(field(fields, fieldUDPSrcPort), field(fields, fieldUDPDstPort)); ok {
		rec.SrcPort, rec.DstPort = src, dst
	}

	if size, err := strconv.Atoi(field(fields, fieldFrameLen)); err == nil {
		rec.Size = size
	}

	return rec, nil
}

// FormatLine renders a record back into the capture line format. Used for
// status samples and round-trip tests.
func FormatLine(rec model.PacketRecord) string {
	proto := string(rec.Protocol)
	if rec.Protocol == model.ProtocolOther && rec.RawProtocol != "" {
		proto = rec.RawProtocol
	}
	tcpSrc, tcpDst, udpSrc, udpDst := "", "", "", ""
	switch rec.Protocol {
	case model.ProtocolUDP:
		udpSrc = strconv.Itoa(int(rec.SrcPort))
		udpDst = strconv.Itoa(int(rec.DstPort))
	default:
		tcpSrc = strconv.Itoa(int(rec.SrcPort))
		tcpDst = strconv.Itoa(int(rec.DstPort))
	}
	return fmt.Sprintf("%.3f\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d",
		float64(rec.Timestamp)/1000.0, rec.SrcIP, rec.DstIP, proto,
		tcpSrc, tcpDst, udpSrc, udpDst, rec.Size)
}

func field(fields []string, i int) string {
	if i >= len(fields) {
		return ""
	}
	return fields[i]
}

func parsePortPair(src, dst string) (uint16, uint16, bool) {
	if src == "" && dst == "" {
		return 0, 0, false
	}
	s := parsePort(src)
	d := parsePort(dst)
	if s == 0 && d == 0 {
		return 0, 0, false
	}
	return s, d, true
}

func parsePort(s string) uint16 {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 65535 {
		return 0
	}
	return uint16(n)
}

// mapProtocol normalizes the protocol field: numeric IP protocol values and
// textual names are both accepted; anything else is OTHER with the original
// value preserved.
func mapProtocol(raw string) (model.Protocol, string) {
	switch strings.ToUpper(raw) {
	case "TCP":
		return model.ProtocolTCP, ""
	case "UDP":
		return model.ProtocolUDP, ""
	case "ICMP":
		return model.ProtocolICMP, ""
	}
	switch raw {
	case "6":
		return model.ProtocolTCP, ""
	case "17":
		return model.ProtocolUDP, ""
	case "1":
		return model.ProtocolICMP, ""
	}
	return model.ProtocolOther, raw
}
