package domain

import (
	"regexp"
	"runtime"

	"go.trai.ch/zerr"
)

// ArchToken is the reserved placeholder for the host machine architecture.
const ArchToken = "ARCH"

var tokenPattern = regexp.MustCompile(`<([A-Z][A-Z0-9_]*)>`)

// Tokens maps reserved placeholder names to their runtime values.
type Tokens map[string]string

// DefaultTokens resolves the reserved placeholders for the running host.
func DefaultTokens() Tokens {
	return Tokens{ArchToken: MachineArch(runtime.GOARCH)}
}

// Expand replaces every <NAME> placeholder in s. Unknown placeholders are a parse error.
func (t Tokens) Expand(s string) (string, error) {
	var missing string
	out := tokenPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := t[name]
		if !ok {
			if missing == "" {
				missing = m
			}
			return m
		}
		return v
	})
	if missing != "" {
		return "", zerr.With(zerr.Wrap(ErrManifestParse, "unknown placeholder"), "placeholder", missing)
	}
	return out, nil
}

// MachineArch maps a Go architecture name to the kernel machine name (uname -m).
func MachineArch(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "arm":
		return "armv7l"
	case "386":
		return "i686"
	default:
		return goarch
	}
}
