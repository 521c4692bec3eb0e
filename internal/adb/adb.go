// Package adb provides argument construction and discovery for the USB
// debug bridge transport.
//
// The installer never keeps a persistent adb connection; every operation
// is a single adb invocation, and all invocations are built from the
// helpers here so tests can assert on exact argument vectors.
package adb

import (
	"fmt"
	"strings"
)

// Endpoint is the resolved bridge shell transport. It is resolved once at
// pipeline start and treated as immutable afterwards.
type Endpoint struct {
	// Path is the adb executable to invoke.
	Path string
	// Available reports whether the transport can be used at all.
	Available bool
}

// ShellArgs returns the argument vector for running a shell command on
// the device.
func ShellArgs(command string) []string {
	return []string{"shell", command}
}

// ProbeArgs returns the trivial shell probe used by the boot waiter.
func ProbeArgs() []string {
	return ShellArgs("true")
}

// PushArgs returns the argument vector for pushing a local file to a
// device path.
func PushArgs(local, remote string) []string {
	return []string{"push", local, remote}
}

// ForwardArgs returns the argument vector for establishing a tcp port
// forward from the host to the same port on the device.
func ForwardArgs(port int) []string {
	spec := fmt.Sprintf("tcp:%d", port)
	return []string{"forward", spec, spec}
}

// ForwardListArgs returns the argument vector for listing active
// forwards.
func ForwardListArgs() []string {
	return []string{"forward", "--list"}
}

// HasForward reports whether the output of `adb forward --list` already
// contains a host-to-device binding for the given port. Each line has the
// form "<serial> tcp:<local> tcp:<remote>".
func HasForward(listOutput string, port int) bool {
	local := fmt.Sprintf("tcp:%d", port)
	for _, line := range strings.Split(listOutput, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		if fields[1] == local && fields[2] == local {
			return true
		}
	}
	return false
}
