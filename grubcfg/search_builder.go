package grubcfg

import (
	"fmt"
	"strings"

	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	boshlog "github.com/cloudfoundry/bosh-utils/logger"

	"github.com/nixfoundry/grub-installer/bootenv"
	"github.com/nixfoundry/grub-installer/settings"
)

const (
	byUUIDPrefix  = "/dev/disk/by-uuid/"
	byLabelPrefix = "/dev/disk/by-label/"
)

// GrubSearch is the boot-time address of a directory: the search command
// that binds a drive variable to the backing filesystem, and the path GRUB
// must use to reach the directory. Path never ends in a slash. Search is
// empty when the directory can be reached without binding a drive.
type GrubSearch struct {
	Path   string
	Search string
}

// SearchBuilder resolves directories into GrubSearch values. Each search
// clause claims the next $driveN variable, so one builder must be used for
// all lookups of a run.
type SearchBuilder struct {
	prober     bootenv.DeviceProber
	topology   bootenv.BtrfsTopologyResolver
	identifier settings.FsIdentifier
	logger     boshlog.Logger
	logTag     string
	driveid    int
}

func NewSearchBuilder(
	prober bootenv.DeviceProber,
	topology bootenv.BtrfsTopologyResolver,
	identifier settings.FsIdentifier,
	logger boshlog.Logger,
) *SearchBuilder {
	return &SearchBuilder{
		prober:     prober,
		topology:   topology,
		identifier: identifier,
		logger:     logger,
		logTag:     "searchBuilder",
		driveid:    1,
	}
}

func (b *SearchBuilder) SearchFor(dir string) (GrubSearch, error) {
	info, err := b.prober.Probe(dir)
	if err != nil {
		return GrubSearch{}, bosherr.WrapErrorf(err, "Resolving the GRUB location of '%s'", dir)
	}

	path := strings.TrimPrefix(dir, info.MountPoint)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	// A mount of a non-top-level subvolume hides the subvolume prefix from
	// the mounted tree, but GRUB reads the filesystem from the top.
	if info.IsBtrfs() {
		topology, err := b.topology.ResolveTopology(info.MountPoint)
		if err != nil {
			return GrubSearch{}, bosherr.WrapErrorf(err, "Resolving the GRUB location of '%s'", dir)
		}
		if topology.SubvolPath != "" {
			path = "/" + topology.SubvolPath + path
		}
	}

	search, err := b.searchClause(info)
	if err != nil {
		return GrubSearch{}, err
	}

	if search != "" {
		search = fmt.Sprintf("search --set=drive%d %s", b.driveid, search)
		path = fmt.Sprintf("($drive%d)%s", b.driveid, path)
		b.driveid++
	}

	path = strings.TrimSuffix(path, "/")

	b.logger.Debug(b.logTag, "Resolved '%s' to path '%s' search '%s'", dir, path, search)

	return GrubSearch{Path: path, Search: search}, nil
}

func (b *SearchBuilder) searchClause(info bootenv.DeviceInfo) (string, error) {
	switch b.identifier {
	case settings.FsIdentifierProvided:
		// Devices addressed through the by-uuid and by-label trees carry
		// their own identifier; anything else is referenced bare.
		if uuid := strings.TrimPrefix(info.DevicePath, byUUIDPrefix); uuid != info.DevicePath {
			return "--fs-uuid " + uuid, nil
		}
		if label := strings.TrimPrefix(info.DevicePath, byLabelPrefix); label != info.DevicePath {
			return "--label " + label, nil
		}
		return "", nil

	case settings.FsIdentifierLabel:
		if info.Label == "" {
			return "", bosherr.Errorf("Couldn't find a label for '%s'", info.MountPoint)
		}
		return "--label " + info.Label, nil

	default:
		if info.UUID == "" {
			return "", bosherr.Errorf("Couldn't find a uuid for '%s'", info.MountPoint)
		}
		return "--fs-uuid " + info.UUID, nil
	}
}
