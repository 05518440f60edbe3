package domain

import (
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// Platform is a deployment target a requirement group applies to.
type Platform string

// Known platforms. PlatformGeneral groups apply everywhere; PlatformAny selects every group.
const (
	PlatformGeneral Platform = "general"
	PlatformX86     Platform = "x86"
	PlatformAarch64 Platform = "aarch64"
	PlatformRPi     Platform = "rpi"
	PlatformIMX8    Platform = "imx8"
	PlatformHailo15 Platform = "hailo15"
	PlatformAny     Platform = "any"
)

var knownPlatforms = []Platform{
	PlatformGeneral,
	PlatformX86,
	PlatformAarch64,
	PlatformRPi,
	PlatformIMX8,
	PlatformHailo15,
	PlatformAny,
}

// ParsePlatform validates a platform token.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(knownPlatforms, p) {
		return "", zerr.With(zerr.Wrap(ErrUnknownPlatform, "platform is not recognized"), "platform", s)
	}
	return p, nil
}

// Selects reports whether a group declaring the given platforms is selected by p.
// A group with no declared platform is treated as general.
func (p Platform) Selects(declared []Platform) bool {
	if p == PlatformAny {
		return true
	}
	if len(declared) == 0 {
		return true
	}
	for _, d := range declared {
		if d == PlatformGeneral || d == PlatformAny || d == p {
			return true
		}
	}
	return false
}
