package fakes

import (
	"github.com/nixfoundry/grub-installer/bootenv"
)

type FakeBootTargetResolver struct {
	ResolveCalled          int
	ResolveBootMountPoints []string
	ResolveRootMountPoints []string

	ResolveTargets []bootenv.InstallTarget
	ResolveErr     error
}

func (r *FakeBootTargetResolver) Resolve(bootMountPoint, rootMountPoint string) ([]bootenv.InstallTarget, error) {
	r.ResolveCalled++
	r.ResolveBootMountPoints = append(r.ResolveBootMountPoints, bootMountPoint)
	r.ResolveRootMountPoints = append(r.ResolveRootMountPoints, rootMountPoint)

	return r.ResolveTargets, r.ResolveErr
}
