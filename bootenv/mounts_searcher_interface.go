package bootenv

import "strings"

// Mount is one row of /proc/self/mountinfo reduced to the fields the
// resolver cares about. PartitionPath is the mount source; for btrfs it
// names one arbitrary member device of the volume.
type Mount struct {
	PartitionPath string
	MountPoint    string
	FsType        string
	MountOptions  []string
	SuperOptions  []string
}

// Contains reports whether path lives under this mount point.
func (m Mount) Contains(path string) bool {
	if m.MountPoint == "/" {
		return strings.HasPrefix(path, "/")
	}
	return path == m.MountPoint || strings.HasPrefix(path, m.MountPoint+"/")
}

func (m Mount) hasMountOption(name string) bool {
	for _, opt := range m.MountOptions {
		if opt == name {
			return true
		}
	}
	return false
}

func (m Mount) hasSuperOption(name string) bool {
	for _, opt := range m.SuperOptions {
		if opt == name {
			return true
		}
	}
	return false
}

type MountsSearcher interface {
	SearchMounts() ([]Mount, error)
}
