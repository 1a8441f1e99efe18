package app

import (
	sigar "github.com/cloudfoundry/gosigar"

	"github.com/nixfoundry/grub-installer/grubcfg"
)

func newSpaceChecker() grubcfg.SpaceChecker {
	return grubcfg.NewSigarSpaceChecker(&sigar.ConcreteSigar{})
}
