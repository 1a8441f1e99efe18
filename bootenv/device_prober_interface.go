package bootenv

// DeviceProber resolves a path (a mount point, a directory, or a block
// device node) to the block device backing it.
type DeviceProber interface {
	Probe(path string) (DeviceInfo, error)
}
