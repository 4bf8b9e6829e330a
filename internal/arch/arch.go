// Package arch enumerates the guest instruction set architectures that can be
// hardware-virtualized on this host and maps each one to the QEMU system
// emulator that runs it.
//
// Only architectures the host can accelerate are ever supported. The set is
// computed once from the host architecture the binary was built for:
//
//	amd64 -> x86, x86_64
//	386   -> x86
//	other -> (none)
//
// Constructing a GuestArch from user input goes through Parse, which rejects
// architectures outside that set.
package arch

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
)

// GuestArch is the instruction set architecture presented to the guest.
// The zero value is not a valid architecture.
type GuestArch int

const (
	// X86 is the 32-bit x86 architecture (i386).
	X86 GuestArch = iota + 1

	// X86_64 is the 64-bit x86 architecture (amd64).
	X86_64
)

// all lists every declared architecture in a stable order.
var all = []GuestArch{X86, X86_64}

var (
	supported     []GuestArch
	supportedOnce sync.Once
)

// String returns the stable identifier of the architecture.
func (a GuestArch) String() string {
	switch a {
	case X86:
		return "x86"
	case X86_64:
		return "x86_64"
	default:
		return fmt.Sprintf("GuestArch(%d)", int(a))
	}
}

// Executable returns the name of the QEMU system emulator for the architecture.
// There is a separate QEMU executable for each guest ISA.
func (a GuestArch) Executable() string {
	switch a {
	case X86:
		return "qemu-system-i386"
	case X86_64:
		return "qemu-system-x86_64"
	default:
		return ""
	}
}

// Valid reports whether a is one of the declared architectures.
func (a GuestArch) Valid() bool {
	for _, v := range all {
		if a == v {
			return true
		}
	}
	return false
}

// Supported reports whether the host can hardware-virtualize a.
func (a GuestArch) Supported() bool {
	for _, v := range Supported() {
		if a == v {
			return true
		}
	}
	return false
}

// Supported returns the architectures this host can hardware-virtualize.
// The result is computed on first use and must not be modified.
func Supported() []GuestArch {
	supportedOnce.Do(func() {
		supported = supportedFor(runtime.GOARCH)
	})
	return supported
}

// supportedFor maps a Go host architecture to the guest architectures it can
// accelerate.
func supportedFor(goarch string) []GuestArch {
	switch goarch {
	case "amd64":
		return []GuestArch{X86, X86_64}
	case "386":
		return []GuestArch{X86}
	default:
		return []GuestArch{}
	}
}

// Parse resolves an architecture name to a GuestArch supported by this host.
// Accepted names are case-insensitive: x86, i386, i686 for X86 and
// x86_64, amd64 for X86_64.
func Parse(s string) (GuestArch, error) {
	return parseFor(s, Supported())
}

func parseFor(s string, host []GuestArch) (GuestArch, error) {
	a, err := Lookup(s)
	if err != nil {
		return 0, err
	}

	for _, v := range host {
		if v == a {
			return a, nil
		}
	}
	return 0, &UnsupportedError{Arch: a, Host: runtime.GOARCH}
}

// Lookup resolves an architecture name without checking whether this host
// supports it. Unknown names fail with *UnknownError.
func Lookup(s string) (GuestArch, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x86", "i386", "i686":
		return X86, nil
	case "x86_64", "x86-64", "amd64":
		return X86_64, nil
	default:
		return 0, &UnknownError{Name: s}
	}
}

// All returns every declared architecture, supported or not.
func All() []GuestArch {
	return append([]GuestArch(nil), all...)
}

// MarshalText implements encoding.TextMarshaler.
func (a GuestArch) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid architecture %d", int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It only accepts
// architectures supported by this host.
func (a *GuestArch) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
