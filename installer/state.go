package installer

import (
	"encoding/json"
	"sort"
	"strings"

	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	boshsys "github.com/cloudfoundry/bosh-utils/system"

	"github.com/nixfoundry/grub-installer/settings"
)

// State records the parameters of the last completed boot loader
// installation so an unchanged configuration can skip grub-install.
//
// The on-disk format is five fixed lines (name, version, efi mode,
// comma-joined devices, EFI mount point) followed by one JSON object
// holding everything added since the line format froze.
type State struct {
	Name          string
	Version       string
	Efi           string
	Devices       []string
	EfiMountPoint string

	ExtraGrubInstallArgs []string
}

type stateExtras struct {
	ExtraGrubInstallArgs []string `json:"extraGrubInstallArgs"`
}

// NewState captures what the run about to install will leave behind.
func NewState(doc settings.Document, efiTarget EfiTarget, devices []string) State {
	return State{
		Name:                 doc.FullName,
		Version:              doc.FullVersion,
		Efi:                  efiTarget.String(),
		Devices:              devices,
		EfiMountPoint:        doc.EfiSysMountPoint,
		ExtraGrubInstallArgs: doc.ExtraGrubInstallArgs,
	}
}

// LoadState reads the state a previous run saved. A missing or corrupt
// file reads as the zero state, which never matches a real install, so
// installation proceeds.
func LoadState(fs boshsys.FileSystem, path string) State {
	contents, err := fs.ReadFileString(path)
	if err != nil {
		return State{}
	}

	lines := strings.Split(contents, "\n")
	if len(lines) < 5 {
		return State{}
	}

	state := State{
		Name:          lines[0],
		Version:       lines[1],
		Efi:           lines[2],
		Devices:       strings.Split(lines[3], ","),
		EfiMountPoint: lines[4],
	}

	extrasLine := "{}"
	if len(lines) > 5 && lines[5] != "" {
		extrasLine = lines[5]
	}

	var extras stateExtras
	err = json.Unmarshal([]byte(extrasLine), &extras)
	if err != nil {
		return State{}
	}
	state.ExtraGrubInstallArgs = extras.ExtraGrubInstallArgs

	return state
}

// Save writes the state atomically so a crashed run never leaves a
// half-written file that would skip the next installation.
func (s State) Save(fs boshsys.FileSystem, path string) error {
	var out strings.Builder
	out.WriteString(s.Name + "\n")
	out.WriteString(s.Version + "\n")
	out.WriteString(s.Efi + "\n")
	out.WriteString(strings.Join(s.Devices, ",") + "\n")
	out.WriteString(s.EfiMountPoint + "\n")

	extras, err := json.Marshal(stateExtras{ExtraGrubInstallArgs: s.ExtraGrubInstallArgs})
	if err != nil {
		return bosherr.WrapError(err, "Marshalling state extras")
	}
	out.Write(extras)
	out.WriteString("\n")

	tmp := path + ".tmp"

	err = fs.WriteFileString(tmp, out.String())
	if err != nil {
		return bosherr.WrapErrorf(err, "Writing '%s'", tmp)
	}

	err = fs.Rename(tmp, path)
	if err != nil {
		return bosherr.WrapErrorf(err, "Renaming '%s' to '%s'", tmp, path)
	}

	return nil
}

// NeedsReinstall reports whether this desired state differs from what the
// previous run recorded. Devices and extra install arguments compare as
// sets: reordering alone never reinstalls, but any added, removed or
// unrelated historical device does.
func (s State) NeedsReinstall(prev State) bool {
	if s.Name != prev.Name {
		return true
	}
	if s.Version != prev.Version {
		return true
	}
	if s.Efi != prev.Efi {
		return true
	}
	if s.EfiMountPoint != prev.EfiMountPoint {
		return true
	}
	if !sameStringSet(s.Devices, prev.Devices) {
		return true
	}

	return !sameStringSet(s.ExtraGrubInstallArgs, prev.ExtraGrubInstallArgs)
}

func sameStringSet(a, b []string) bool {
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
