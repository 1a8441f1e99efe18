package fakes

import (
	"github.com/nixfoundry/grub-installer/bootenv"
)

type FakeDeviceProber struct {
	ProbeCalled int
	ProbePaths  []string

	ProbeDeviceInfos map[string]bootenv.DeviceInfo
	ProbeErrs        map[string]error
	ProbeErr         error
}

func NewFakeDeviceProber() *FakeDeviceProber {
	return &FakeDeviceProber{
		ProbeDeviceInfos: make(map[string]bootenv.DeviceInfo),
		ProbeErrs:        make(map[string]error),
	}
}

func (p *FakeDeviceProber) Probe(path string) (bootenv.DeviceInfo, error) {
	p.ProbeCalled++
	p.ProbePaths = append(p.ProbePaths, path)

	if err, found := p.ProbeErrs[path]; found {
		return bootenv.DeviceInfo{}, err
	}
	if p.ProbeErr != nil {
		return bootenv.DeviceInfo{}, p.ProbeErr
	}

	if info, found := p.ProbeDeviceInfos[path]; found {
		return info, nil
	}

	return bootenv.DeviceInfo{}, bootenv.ProbeNotFoundError{Path: path}
}
