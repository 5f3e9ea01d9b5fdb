package features

import (
	"net/netip"
	"strings"

	"github.com/mssola/useragent"

	pstrings "payguard/pkg/platform/strings"
)

// Static merchant risk table. Unknown merchants get defaultMerchantRisk.
var merchantRisk = map[string]float64{
	"high-risk-merchant": 0.8,
	"casino":             0.7,
	"crypto-exchange":    0.7,
	"premium-retailer":   0.1,
}

const (
	defaultMerchantRisk = 0.3

	internalIPRisk    = 0.1
	flaggedIPRisk     = 0.8
	defaultIPRisk     = 0.4
	botDeviceRisk     = 0.9
	unknownDeviceRisk = 0.6
	knownDeviceRisk   = 0.2
)

// Addresses from this range have a history of abuse.
var flaggedPrefix = netip.MustParsePrefix("203.0.113.0/24")

// MerchantRisk looks up the static risk for a merchant.
func MerchantRisk(merchantID string) float64 {
	if r, ok := merchantRisk[pstrings.Fold(merchantID)]; ok {
		return r
	}
	return defaultMerchantRisk
}

// IsInternalIP reports private (10/8, 172.16/12, 192.168/16, fc00::/7) and
// loopback addresses. Unparseable input is treated as external.
func IsInternalIP(ip string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsPrivate() || addr.IsLoopback()
}

// IPRisk scores an address: internal 0.1, flagged range 0.8, else 0.4.
func IPRisk(ip string) float64 {
	if IsInternalIP(ip) {
		return internalIPRisk
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err == nil && flaggedPrefix.Contains(addr.Unmap()) {
		return flaggedIPRisk
	}
	return defaultIPRisk
}

// Device describes the client as far as device info allows.
type Device struct {
	Browser string
	Bot     bool
}

// ParseDevice reads the browser from device info. An explicit "browser" key
// wins; otherwise it is derived from "userAgent" / "user_agent".
func ParseDevice(info map[string]string) Device {
	var d Device
	d.Browser = strings.TrimSpace(info["browser"])

	ua := strings.TrimSpace(info["userAgent"])
	if ua == "" {
		ua = strings.TrimSpace(info["user_agent"])
	}
	if ua == "" {
		return d
	}

	parsed := useragent.New(ua)
	d.Bot = parsed.Bot()
	if d.Browser == "" {
		name, _ := parsed.Browser()
		d.Browser = name
	}
	return d
}

// DeviceRisk scores a device: bots 0.9, unknown browser 0.6, else 0.2.
func DeviceRisk(d Device) float64 {
	switch {
	case d.Bot:
		return botDeviceRisk
	case d.Browser == "", strings.EqualFold(d.Browser, "unknown"):
		return unknownDeviceRisk
	default:
		return knownDeviceRisk
	}
}
