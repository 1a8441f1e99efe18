package bootenv

import (
	"sort"
	"strings"

	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	boshlog "github.com/cloudfoundry/bosh-utils/logger"
	boshuuid "github.com/cloudfoundry/bosh-utils/uuid"
)

type bootTargetResolver struct {
	prober   DeviceProber
	topology BtrfsTopologyResolver
	uuidGen  boshuuid.Generator
	logger   boshlog.Logger
	logTag   string
}

func NewBootTargetResolver(
	prober DeviceProber,
	topology BtrfsTopologyResolver,
	uuidGen boshuuid.Generator,
	logger boshlog.Logger,
) BootTargetResolver {
	return bootTargetResolver{
		prober:   prober,
		topology: topology,
		uuidGen:  uuidGen,
		logger:   logger,
		logTag:   "bootTargetResolver",
	}
}

// Resolve maps the boot and root mount points to the device sets the boot
// loader has to land on. Identical sets collapse into one combined target;
// differing sets (partial overlap included) yield the root set before the
// boot set so root-backing devices are written first.
func (r bootTargetResolver) Resolve(bootMountPoint, rootMountPoint string) ([]InstallTarget, error) {
	resolutionID, err := r.uuidGen.Generate()
	if err != nil {
		return nil, bosherr.WrapError(err, "Generating resolution id")
	}

	r.logger.Debug(r.logTag, "Resolution %s: root '%s', boot '%s'", resolutionID, rootMountPoint, bootMountPoint)

	rootDevices, err := r.backingDevices(rootMountPoint)
	if err != nil {
		return nil, bosherr.WrapErrorf(err, "Resolving devices backing root '%s'", rootMountPoint)
	}

	bootDevices, err := r.backingDevices(bootMountPoint)
	if err != nil {
		return nil, bosherr.WrapErrorf(err, "Resolving devices backing boot '%s'", bootMountPoint)
	}

	if len(rootDevices) == 0 && len(bootDevices) == 0 {
		return nil, NothingToInstallError{}
	}

	if sameDeviceSet(rootDevices, bootDevices) {
		r.logger.Info(r.logTag, "Resolution %s: boot and root share devices %v", resolutionID, rootDevices)
		return []InstallTarget{makeTarget(rootDevices, TargetRoleCombined, "boot and root share a filesystem")}, nil
	}

	targets := []InstallTarget{}
	if len(rootDevices) > 0 {
		targets = append(targets, makeTarget(rootDevices, TargetRoleRoot, "root filesystem devices"))
	}
	if len(bootDevices) > 0 {
		targets = append(targets, makeTarget(bootDevices, TargetRoleBoot, "boot filesystem devices"))
	}

	r.logger.Info(r.logTag, "Resolution %s: %d install targets", resolutionID, len(targets))

	return targets, nil
}

// backingDevices probes one mount point. A btrfs mount expands to every
// member device of its volume; sources that are not device nodes (tmpfs,
// overlay) back nothing installable and resolve to the empty set.
func (r bootTargetResolver) backingDevices(mountPoint string) ([]string, error) {
	info, err := r.prober.Probe(mountPoint)
	if err != nil {
		return nil, err
	}

	if !strings.HasPrefix(info.DevicePath, "/dev/") {
		r.logger.Debug(r.logTag, "Ignoring non-device source '%s' for '%s'", info.DevicePath, mountPoint)
		return nil, nil
	}

	if info.IsBtrfs() {
		topologyMount := info.MountPoint
		if topologyMount == "" {
			topologyMount = mountPoint
		}

		topology, err := r.topology.ResolveTopology(topologyMount)
		if err != nil {
			return nil, err
		}

		return topology.Devices, nil
	}

	return []string{info.DevicePath}, nil
}

func makeTarget(devices []string, role TargetRole, description string) InstallTarget {
	return InstallTarget{
		Devices:     devices,
		Role:        role,
		MultiDevice: len(devices) > 1,
		Description: description,
	}
}

func sameDeviceSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	sortedA := append([]string{}, a...)
	sortedB := append([]string{}, b...)
	sort.Strings(sortedA)
	sort.Strings(sortedB)

	for i := range sortedA {
		if sortedA[i] != sortedB[i] {
			return false
		}
	}

	return true
}
