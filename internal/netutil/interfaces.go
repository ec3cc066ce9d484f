package netutil

import (
	"fmt"
	"net"
	"strings"

	"github.com/Akshita3104/SentinelAi-sub000/internal/core/model"
)

// InterfaceInfo describes one local network interface.
type InterfaceInfo struct {
	Name string `json:"name"`
	IP   string `json:"ip"`
	MAC  string `json:"mac"`
	Up   bool   `json:"up"`
}

// LocalInterfaces enumerates non-loopback interfaces carrying an IPv4
// address.
func LocalInterfaces() ([]InterfaceInfo, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("listing interfaces: %w", err)
	}

	out := make([]InterfaceInfo, 0, len(ifaces))
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.To4() == nil {
				continue
			}
			out = append(out, InterfaceInfo{
				Name: iface.Name,
				IP:   ipNet.IP.String(),
				MAC:  iface.HardwareAddr.String(),
				Up:   iface.Flags&net.FlagUp != 0,
			})
			break
		}
	}
	return out, nil
}

// IsCaptureInterface reports whether the named interface is eligible for
// capture: an ethernet or wi-fi class device that is not virtual. A "vmware"
// substring disqualifies the interface even when it claims to be ethernet.
func IsCaptureInterface(name string) bool {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "vmware") {
		return false
	}
	if strings.Contains(lower, "ethernet") ||
		strings.Contains(lower, "wi-fi") ||
		strings.Contains(lower, "wlan") {
		return true
	}
	// Linux device naming: eth0, enp3s0, wlp2s0.
	return strings.HasPrefix(lower, "eth") ||
		strings.HasPrefix(lower, "en") ||
		strings.HasPrefix(lower, "wl")
}

// ValidateCaptureTarget checks that target is an address owned by a local
// capture-eligible interface.
func ValidateCaptureTarget(target string) error {
	ifaces, err := LocalInterfaces()
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	for _, iface := range ifaces {
		if iface.IP != target {
			continue
		}
		if !IsCaptureInterface(iface.Name) {
			return fmt.Errorf("%w: interface %q is not eligible for capture", model.ErrInvalidInput, iface.Name)
		}
		return nil
	}
	return fmt.Errorf("%w: %s is not a local interface address", model.ErrInvalidInput, target)
}
