package bootenv

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	boshlog "github.com/cloudfoundry/bosh-utils/logger"
	boshsys "github.com/cloudfoundry/bosh-utils/system"
	"github.com/gofrs/uuid"
)

var (
	subvolIDRegexp   = regexp.MustCompile(`(?m)^\s*(?:Object ID|Subvolume ID):\s*(\d+)`)
	volumeUUIDRegexp = regexp.MustCompile(`(?m)uuid:\s+(\S+)`)
	memberRegexp     = regexp.MustCompile(`(?m)^\s*devid\s+(\d+)\s+.*\spath\s+(\S+)\s*$`)
)

type btrfsCliTopologyResolver struct {
	runner    boshsys.CmdRunner
	btrfsPath string
	logger    boshlog.Logger
	logTag    string
}

func NewBtrfsCliTopologyResolver(runner boshsys.CmdRunner, btrfsPath string, logger boshlog.Logger) BtrfsTopologyResolver {
	if btrfsPath == "" {
		btrfsPath = "btrfs"
	}

	return btrfsCliTopologyResolver{
		runner:    runner,
		btrfsPath: btrfsPath,
		logger:    logger,
		logTag:    "btrfsCliTopologyResolver",
	}
}

func (r btrfsCliTopologyResolver) ResolveTopology(mountPoint string) (BtrfsVolumeTopology, error) {
	topology := BtrfsVolumeTopology{}

	subvolID, subvolPath, err := r.resolveSubvolume(mountPoint)
	if err != nil {
		return topology, err
	}
	topology.SubvolID = subvolID
	topology.SubvolPath = subvolPath

	volumeUUID, devices, err := r.resolveMembers(mountPoint)
	if err != nil {
		return topology, err
	}
	topology.VolumeUUID = volumeUUID
	topology.Devices = devices

	r.logger.Debug(r.logTag, "Resolved topology of '%s': volume %s, subvol '%s', devices %v",
		mountPoint, topology.VolumeUUID, topology.SubvolPath, topology.Devices)

	return topology, nil
}

func (r btrfsCliTopologyResolver) resolveSubvolume(mountPoint string) (string, string, error) {
	stdout, stderr, _, err := r.runner.RunCommand(r.btrfsPath, "subvolume", "show", mountPoint)
	if err != nil {
		if strings.Contains(stderr, "not a subvolume") {
			// the volume top level is mounted directly
			return "", "", nil
		}
		return "", "", TopologyExternalToolError{MountPoint: mountPoint, Tool: r.btrfsPath, Err: err}
	}

	ids := uniqueSubvolIDs(stdout)
	switch {
	case len(ids) == 0:
		return "", "", nil
	case len(ids) > 1:
		return "", "", AmbiguousSubvolumeError{MountPoint: mountPoint, IDs: ids}
	}

	// ID 5 is the filesystem tree itself and never appears in the
	// subvolume listing
	if ids[0] == "5" {
		return ids[0], "", nil
	}

	subvolPath, err := r.lookupSubvolumePath(mountPoint, ids[0])
	if err != nil {
		return "", "", err
	}

	return ids[0], subvolPath, nil
}

func (r btrfsCliTopologyResolver) lookupSubvolumePath(mountPoint, subvolID string) (string, error) {
	stdout, _, _, err := r.runner.RunCommand(r.btrfsPath, "subvolume", "list", mountPoint)
	if err != nil {
		return "", TopologyExternalToolError{MountPoint: mountPoint, Tool: r.btrfsPath, Err: err}
	}

	pathRegexp := regexp.MustCompile(`(?m)^ID ` + regexp.QuoteMeta(subvolID) + ` [^\n]* path ([^\n]*)$`)
	matches := pathRegexp.FindAllStringSubmatch(stdout, -1)
	switch {
	case len(matches) > 1:
		return "", TopologyExternalToolError{
			MountPoint: mountPoint,
			Tool:       r.btrfsPath,
			Err:        bosherr.Errorf("Subvolume listing names ID %s more than once", subvolID),
		}
	case len(matches) == 0:
		return "", TopologyExternalToolError{
			MountPoint: mountPoint,
			Tool:       r.btrfsPath,
			Err:        bosherr.Errorf("Subvolume listing has no path for ID %s", subvolID),
		}
	}

	return matches[0][1], nil
}

func (r btrfsCliTopologyResolver) resolveMembers(mountPoint string) (string, []string, error) {
	stdout, _, _, err := r.runner.RunCommand(r.btrfsPath, "filesystem", "show", mountPoint)
	if err != nil {
		return "", nil, TopologyExternalToolError{MountPoint: mountPoint, Tool: r.btrfsPath, Err: err}
	}

	uuidMatch := volumeUUIDRegexp.FindStringSubmatch(stdout)
	if uuidMatch == nil {
		return "", nil, TopologyExternalToolError{
			MountPoint: mountPoint,
			Tool:       r.btrfsPath,
			Err:        bosherr.Errorf("Volume listing for '%s' has no uuid", mountPoint),
		}
	}

	volumeUUID, err := uuid.FromString(uuidMatch[1])
	if err != nil {
		return "", nil, TopologyExternalToolError{
			MountPoint: mountPoint,
			Tool:       r.btrfsPath,
			Err:        bosherr.WrapErrorf(err, "Parsing volume uuid '%s'", uuidMatch[1]),
		}
	}

	type member struct {
		devid int
		path  string
	}

	var members []member
	for _, match := range memberRegexp.FindAllStringSubmatch(stdout, -1) {
		devid, err := strconv.Atoi(match[1])
		if err != nil {
			return "", nil, TopologyExternalToolError{
				MountPoint: mountPoint,
				Tool:       r.btrfsPath,
				Err:        bosherr.WrapErrorf(err, "Parsing devid '%s'", match[1]),
			}
		}
		members = append(members, member{devid: devid, path: match[2]})
	}

	if len(members) == 0 {
		return "", nil, NoMemberDevicesError{MountPoint: mountPoint}
	}

	sort.Slice(members, func(i, j int) bool { return members[i].devid < members[j].devid })

	devices := make([]string, 0, len(members))
	for _, m := range members {
		devices = append(devices, m.path)
	}

	return volumeUUID.String(), devices, nil
}

func uniqueSubvolIDs(output string) []string {
	var ids []string
	for _, match := range subvolIDRegexp.FindAllStringSubmatch(output, -1) {
		duplicate := false
		for _, id := range ids {
			if id == match[1] {
				duplicate = true
				break
			}
		}
		if !duplicate {
			ids = append(ids, match[1])
		}
	}

	return ids
}
