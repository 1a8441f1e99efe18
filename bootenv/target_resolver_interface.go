package bootenv

type TargetRole string

const (
	TargetRoleCombined TargetRole = "combined"
	TargetRoleRoot     TargetRole = "root"
	TargetRoleBoot     TargetRole = "boot"
)

// InstallTarget names the ordered device set one boot loader installation
// pass covers. Devices of unrelated filesystems are never mixed into one
// target.
type InstallTarget struct {
	Devices     []string
	Role        TargetRole
	MultiDevice bool
	Description string
}

type BootTargetResolver interface {
	Resolve(bootMountPoint, rootMountPoint string) ([]InstallTarget, error)
}
