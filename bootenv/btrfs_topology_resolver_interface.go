package bootenv

// BtrfsVolumeTopology describes the volume backing one btrfs mount point
// and where in the volume's subvolume tree that mount point lives.
//
// Devices is ordered by devid. SubvolPath is relative to the volume top
// level and empty when the top level itself is mounted; how deeply
// subvolumes nest below it is not interpreted.
type BtrfsVolumeTopology struct {
	VolumeUUID string
	Devices    []string
	SubvolID   string
	SubvolPath string
}

type BtrfsTopologyResolver interface {
	ResolveTopology(mountPoint string) (BtrfsVolumeTopology, error)
}
