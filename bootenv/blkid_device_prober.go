package bootenv

import (
	"strings"

	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	boshlog "github.com/cloudfoundry/bosh-utils/logger"
	boshsys "github.com/cloudfoundry/bosh-utils/system"
)

type DeviceProberOpts struct {
	BlkidPath string
	StorePath string
}

type blkidDeviceProber struct {
	runner         boshsys.CmdRunner
	mountsSearcher MountsSearcher
	blkidPath      string
	storePath      string
	logger         boshlog.Logger
	logTag         string
}

func NewBlkidDeviceProber(
	runner boshsys.CmdRunner,
	mountsSearcher MountsSearcher,
	opts DeviceProberOpts,
	logger boshlog.Logger,
) DeviceProber {
	if opts.BlkidPath == "" {
		opts.BlkidPath = "blkid"
	}
	if opts.StorePath == "" {
		opts.StorePath = "/nix/store"
	}

	return blkidDeviceProber{
		runner:         runner,
		mountsSearcher: mountsSearcher,
		blkidPath:      opts.BlkidPath,
		storePath:      opts.StorePath,
		logger:         logger,
		logTag:         "blkidDeviceProber",
	}
}

func (p blkidDeviceProber) Probe(path string) (DeviceInfo, error) {
	canonical, err := CanonicalPath(p.runner, path)
	if err != nil {
		p.logger.Debug(p.logTag, "Canonicalizing '%s': %s", path, err.Error())
		return DeviceInfo{}, ProbeNotFoundError{Path: path}
	}

	var info DeviceInfo
	if strings.HasPrefix(canonical, "/dev/") {
		info.DevicePath = canonical
	} else {
		mount, found, err := p.findMount(canonical)
		if err != nil {
			return DeviceInfo{}, ProbeExternalToolError{Path: path, Tool: procMountInfoPath, Err: err}
		}
		if !found {
			return DeviceInfo{}, ProbeNotFoundError{Path: path}
		}

		info.DevicePath = mount.PartitionPath
		info.MountPoint = mount.MountPoint

		// tmpfs and overlay sources have no device node blkid could probe
		if !strings.HasPrefix(info.DevicePath, "/dev/") {
			info.FsType = fileSystemTypeFrom(mount.FsType)
			return info, nil
		}
	}

	stdout, stderr, exitStatus, err := p.runner.RunCommand(p.blkidPath, "-p", "-o", "export", info.DevicePath)
	if err != nil {
		if exitStatus == 2 && stderr == "" {
			// blkid found no identifiable filesystem on the device
			return DeviceInfo{}, ProbeNotFoundError{Path: path}
		}
		return DeviceInfo{}, ProbeExternalToolError{Path: path, Tool: p.blkidPath, Err: err}
	}

	values := parseBlkidExport(stdout)

	typeName, ok := values["TYPE"]
	if !ok {
		return DeviceInfo{}, ProbeExternalToolError{
			Path: path,
			Tool: p.blkidPath,
			Err:  bosherr.Errorf("Output for '%s' has no TYPE key: '%s'", info.DevicePath, stdout),
		}
	}

	info.FsType = fileSystemTypeFrom(typeName)
	info.UUID = values["UUID"]
	info.Label = values["LABEL"]
	info.PartitionUUID = values["PART_ENTRY_UUID"]
	info.PartitionRole = partitionRoleFrom(values["PART_ENTRY_TYPE"])

	p.logger.Debug(p.logTag, "Probed '%s': device '%s' type '%s'", path, info.DevicePath, info.FsType)

	return info, nil
}

// findMount picks the mount with the longest mount point containing dir.
// The autofs placeholders systemd leaves around and the read-only bind
// mount sitting on top of the store hide the entries that name the real
// backing device, so both are skipped.
func (p blkidDeviceProber) findMount(dir string) (Mount, bool, error) {
	mounts, err := p.mountsSearcher.SearchMounts()
	if err != nil {
		return Mount{}, false, err
	}

	var best Mount
	var found bool
	for _, mount := range mounts {
		if !mount.Contains(dir) {
			continue
		}
		if mount.FsType == "autofs" {
			continue
		}
		if mount.MountPoint == p.storePath && mount.hasSuperOption("rw") && mount.hasMountOption("ro") {
			continue
		}
		if !found || len(mount.MountPoint) > len(best.MountPoint) {
			best = mount
			found = true
		}
	}

	return best, found, nil
}

func parseBlkidExport(output string) map[string]string {
	values := map[string]string{}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kv := strings.SplitN(line, "=", 2)
		if len(kv) != 2 {
			continue
		}
		values[kv[0]] = kv[1]
	}

	return values
}

func fileSystemTypeFrom(name string) FileSystemType {
	switch name {
	case "ext4":
		return FileSystemExt4
	case "vfat":
		return FileSystemVfat
	case "btrfs":
		return FileSystemBtrfs
	default:
		return FileSystemOther
	}
}

func partitionRoleFrom(guid string) PartitionRole {
	switch strings.ToLower(guid) {
	case espPartitionGUID:
		return PartitionRoleESP
	case biosBootPartitionGUID:
		return PartitionRoleBIOSBoot
	default:
		return PartitionRoleUnknown
	}
}
