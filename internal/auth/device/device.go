// Package device derives display labels and coarse fingerprints from the
// User-Agent header. Fingerprints are stored on the session snapshot and
// compared on refresh; drift is logged, never enforced.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mssola/useragent"
)

type Service struct {
	enabled bool
}

func NewService(enabled bool) *Service {
	return &Service{enabled: enabled}
}

// ComputeFingerprint hashes browser family, browser major version, OS and
// platform. Minor browser upgrades keep the same fingerprint.
func (s *Service) ComputeFingerprint(userAgent string) string {
	if s == nil || !s.enabled {
		return ""
	}
	ua := useragent.New(userAgent)
	name, version := ua.Browser()
	major, _, _ := strings.Cut(version, ".")
	sum := sha256.Sum256([]byte(strings.Join([]string{name, major, ua.OS(), ua.Platform()}, "|")))
	return hex.EncodeToString(sum[:])
}

// CompareFingerprints reports whether the two match and whether the pair
// represents drift worth logging.
func (s *Service) CompareFingerprints(stored, current string) (matched bool, drift bool) {
	if stored == current {
		return true, false
	}
	return false, stored != "" && current != ""
}

// ParseUserAgent returns a short label such as "Chrome on Windows 10".
func ParseUserAgent(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return "Unknown Device"
	}
	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}
	os := ua.OS()
	if os == "" {
		os = "Unknown OS"
	}
	label := fmt.Sprintf("%s on %s", browser, os)
	if platform := ua.Platform(); platform != "" && !strings.Contains(label, platform) {
		label = fmt.Sprintf("%s (%s)", label, platform)
	}
	return strings.Join(strings.Fields(label), " ")
}
