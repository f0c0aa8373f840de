//go:build !linux && !windows

package process

import "github.com/wippyai/wlb/errors"

// Current is not available on this platform.
func Current() (*Process, error) {
	return nil, errors.Unsupported(errors.PhaseResolve, "process inspection on this platform")
}

// Open is not available on this platform.
func Open(int) (*Process, error) {
	return nil, errors.Unsupported(errors.PhaseResolve, "process inspection on this platform")
}
