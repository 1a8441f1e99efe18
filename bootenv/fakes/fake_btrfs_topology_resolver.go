package fakes

import (
	"github.com/nixfoundry/grub-installer/bootenv"
)

type FakeBtrfsTopologyResolver struct {
	ResolveTopologyCalled      int
	ResolveTopologyMountPoints []string

	ResolveTopologyTopologies map[string]bootenv.BtrfsVolumeTopology
	ResolveTopologyErrs       map[string]error
	ResolveTopologyErr        error
}

func NewFakeBtrfsTopologyResolver() *FakeBtrfsTopologyResolver {
	return &FakeBtrfsTopologyResolver{
		ResolveTopologyTopologies: make(map[string]bootenv.BtrfsVolumeTopology),
		ResolveTopologyErrs:       make(map[string]error),
	}
}

func (r *FakeBtrfsTopologyResolver) ResolveTopology(mountPoint string) (bootenv.BtrfsVolumeTopology, error) {
	r.ResolveTopologyCalled++
	r.ResolveTopologyMountPoints = append(r.ResolveTopologyMountPoints, mountPoint)

	if err, found := r.ResolveTopologyErrs[mountPoint]; found {
		return bootenv.BtrfsVolumeTopology{}, err
	}
	if r.ResolveTopologyErr != nil {
		return bootenv.BtrfsVolumeTopology{}, r.ResolveTopologyErr
	}

	return r.ResolveTopologyTopologies[mountPoint], nil
}
