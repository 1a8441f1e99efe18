package bootenv

import (
	"fmt"
	"strings"
)

// Every error in this package is fatal to the run. The resolver never
// retries and never degrades to a guessed device.

// ProbeNotFoundError reports that no identifiable filesystem backs a path.
type ProbeNotFoundError struct {
	Path string
}

func (e ProbeNotFoundError) Error() string {
	return fmt.Sprintf("No filesystem found backing '%s'", e.Path)
}

// ProbeExternalToolError records a probing tool invocation that failed or
// produced output that could not be interpreted.
type ProbeExternalToolError struct {
	Path string
	Tool string
	Err  error
}

func (e ProbeExternalToolError) Error() string {
	return fmt.Sprintf("Probing '%s' with %s: %s", e.Path, e.Tool, e.Err.Error())
}

func (e ProbeExternalToolError) Unwrap() error {
	return e.Err
}

// NoMemberDevicesError reports a btrfs volume whose reported device list
// came back empty. The volume state is inconsistent and must not be guessed.
type NoMemberDevicesError struct {
	MountPoint string
}

func (e NoMemberDevicesError) Error() string {
	return fmt.Sprintf("btrfs volume mounted at '%s' reports no member devices", e.MountPoint)
}

// AmbiguousSubvolumeError reports conflicting subvolume IDs for one mount.
type AmbiguousSubvolumeError struct {
	MountPoint string
	IDs        []string
}

func (e AmbiguousSubvolumeError) Error() string {
	return fmt.Sprintf("btrfs subvolume IDs for '%s' are ambiguous: %s", e.MountPoint, strings.Join(e.IDs, ", "))
}

// TopologyExternalToolError records a btrfs tool invocation that failed or
// produced output that could not be interpreted.
type TopologyExternalToolError struct {
	MountPoint string
	Tool       string
	Err        error
}

func (e TopologyExternalToolError) Error() string {
	return fmt.Sprintf("Resolving btrfs topology of '%s' with %s: %s", e.MountPoint, e.Tool, e.Err.Error())
}

func (e TopologyExternalToolError) Unwrap() error {
	return e.Err
}

// NothingToInstallError reports that resolution finished with an empty
// device set.
type NothingToInstallError struct{}

func (e NothingToInstallError) Error() string {
	return "Nothing to install: no devices back the boot or root filesystems"
}
