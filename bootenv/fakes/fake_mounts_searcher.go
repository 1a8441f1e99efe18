package fakes

import (
	"github.com/nixfoundry/grub-installer/bootenv"
)

type FakeMountsSearcher struct {
	SearchMountsCalled int
	SearchMountsMounts []bootenv.Mount
	SearchMountsErr    error
}

func (s *FakeMountsSearcher) SearchMounts() ([]bootenv.Mount, error) {
	s.SearchMountsCalled++
	return s.SearchMountsMounts, s.SearchMountsErr
}
