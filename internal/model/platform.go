package model

import (
	"fmt"
	"runtime"
	"strings"
)

// OSFamily identifies an operating system family using the names found
// in launcher manifests.
type OSFamily string

const (
	Windows   OSFamily = "windows"
	Linux     OSFamily = "linux"
	MacOS     OSFamily = "osx"
	UnknownOS OSFamily = "unknown"
)

// IsValid returns true if the OS family is recognized.
// UnknownOS is a valid value but is never supported by a sync run.
func (o OSFamily) IsValid() bool {
	switch o {
	case Windows, Linux, MacOS, UnknownOS:
		return true
	default:
		return false
	}
}

// IsKnown returns true for every family except UnknownOS.
func (o OSFamily) IsKnown() bool {
	return o.IsValid() && o != UnknownOS
}

// String returns the manifest name of the OS family.
func (o OSFamily) String() string {
	return string(o)
}

// AllOSFamilies returns all known OS families.
func AllOSFamilies() []OSFamily {
	return []OSFamily{Windows, Linux, MacOS}
}

// ParseOS converts a manifest or Go OS name to an OSFamily.
// Accepts "osx", "macos", "mac-os" and "darwin" for MacOS.
func ParseOS(s string) (OSFamily, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "windows":
		return Windows, nil
	case "linux":
		return Linux, nil
	case "osx", "macos", "mac-os", "darwin":
		return MacOS, nil
	case "unknown":
		return UnknownOS, nil
	default:
		return "", fmt.Errorf("unknown OS family %q (valid: windows, linux, osx)", s)
	}
}

// Platform describes the OS family and CPU architecture that artifacts
// are synchronized for. It is a plain value; construct it once per run.
type Platform struct {
	OS   OSFamily
	Arch string
}

// String returns the platform as "os/arch".
func (p Platform) String() string {
	return p.OS.String() + "/" + p.Arch
}

// HostPlatform returns the platform of the running process.
func HostPlatform() Platform {
	return NewPlatform(runtime.GOOS, runtime.GOARCH)
}

// NewPlatform builds a Platform from Go's GOOS/GOARCH vocabulary.
// Operating systems without a manifest branch map to UnknownOS.
func NewPlatform(goos, goarch string) Platform {
	family, err := ParseOS(goos)
	if err != nil {
		family = UnknownOS
	}
	return Platform{OS: family, Arch: NormalizeArch(goarch)}
}

// NormalizeArch maps Go and manifest architecture spellings onto the
// manifest vocabulary: x86_64, x86, arm64, arm.
func NormalizeArch(arch string) string {
	switch a := strings.ToLower(strings.TrimSpace(arch)); a {
	case "amd64", "x86_64", "x64":
		return "x86_64"
	case "386", "i386", "i686", "x86":
		return "x86"
	case "arm64", "aarch64":
		return "arm64"
	default:
		return a
	}
}

// Bits returns the pointer width of the architecture as a string, used
// for the ${arch} placeholder in native classifiers.
func (p Platform) Bits() string {
	switch p.Arch {
	case "x86", "arm":
		return "32"
	default:
		return "64"
	}
}
