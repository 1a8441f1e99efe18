package bootenv

// FileSystemType is the closed set of filesystem types the resolver
// distinguishes. Anything blkid reports outside this set maps to
// FileSystemOther and is treated as a plain single-device filesystem.
type FileSystemType string

const (
	FileSystemExt4  FileSystemType = "ext4"
	FileSystemVfat  FileSystemType = "vfat"
	FileSystemBtrfs FileSystemType = "btrfs"
	FileSystemOther FileSystemType = "other"
)

type PartitionRole string

const (
	PartitionRoleESP      PartitionRole = "esp"
	PartitionRoleBIOSBoot PartitionRole = "bios-boot"
	PartitionRoleUnknown  PartitionRole = "unknown"
)

// GPT partition type GUIDs that matter for boot loader installation.
const (
	espPartitionGUID      = "c12a7328-f81f-11d2-ba4b-00a0c93ec93b"
	biosBootPartitionGUID = "21686148-6449-6e6f-744e-656564454649"
)

// DeviceInfo describes the block device backing one probed path.
type DeviceInfo struct {
	DevicePath    string
	MountPoint    string
	FsType        FileSystemType
	UUID          string
	Label         string
	PartitionUUID string
	PartitionRole PartitionRole
}

func (i DeviceInfo) IsBtrfs() bool {
	return i.FsType == FileSystemBtrfs
}
