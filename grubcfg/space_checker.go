package grubcfg

import (
	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	sigar "github.com/cloudfoundry/gosigar"
)

// SpaceChecker reports how much room a filesystem has left before the
// builder copies kernels into it.
type SpaceChecker interface {
	AvailableKBytes(path string) (uint64, error)
}

type fileSystemUsageSigar interface {
	GetFileSystemUsage(path string) (sigar.FileSystemUsage, error)
}

type sigarSpaceChecker struct {
	statsSigar fileSystemUsageSigar
}

func NewSigarSpaceChecker(statsSigar fileSystemUsageSigar) SpaceChecker {
	return sigarSpaceChecker{statsSigar: statsSigar}
}

func (c sigarSpaceChecker) AvailableKBytes(path string) (uint64, error) {
	usage, err := c.statsSigar.GetFileSystemUsage(path)
	if err != nil {
		return 0, bosherr.WrapErrorf(err, "Getting filesystem usage of '%s'", path)
	}

	return usage.Avail, nil
}
