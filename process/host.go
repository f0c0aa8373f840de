package process

import (
	"os"
	"os/user"

	"github.com/wippyai/wlb/errors"
)

// ComputerName returns the host name of the machine.
func ComputerName() (string, error) {
	name, err := os.Hostname()
	if err != nil {
		return "", errors.Wrap(errors.PhaseResolve, errors.KindAddressResolution, err, "computer name")
	}
	return name, nil
}

// UserName returns the login name of the current user.
func UserName() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", errors.Wrap(errors.PhaseResolve, errors.KindAddressResolution, err, "user name")
	}
	return u.Username, nil
}
