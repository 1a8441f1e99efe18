package settings

import (
	"encoding/json"
	"sort"

	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	mapstruc "github.com/mitchellh/mapstructure"
)

type FsIdentifier string

const (
	FsIdentifierUUID     FsIdentifier = "uuid"
	FsIdentifierLabel    FsIdentifier = "label"
	FsIdentifierProvided FsIdentifier = "provided"
)

type ToolPaths struct {
	Blkid string `json:"blkid"`
	Btrfs string `json:"btrfs"`
}

// Document is the install document the system configuration generates for
// one bootloader run. Keys are the attribute names of the generating
// module.
type Document struct {
	FullName    string `json:"fullName"`
	FullVersion string `json:"fullVersion"`
	DistroName  string `json:"distroName"`

	Grub          string `json:"grub"`
	GrubTarget    string `json:"grubTarget"`
	GrubEfi       string `json:"grubEfi"`
	GrubTargetEfi string `json:"grubTargetEfi"`

	BootPath  string   `json:"bootPath"`
	StorePath string   `json:"storePath"`
	Devices   []string `json:"devices"`

	FsIdentifier FsIdentifier `json:"fsIdentifier"`
	CopyKernels  bool         `json:"copyKernels"`

	EfiSysMountPoint      string   `json:"efiSysMountPoint"`
	CanTouchEfiVariables  bool     `json:"canTouchEfiVariables"`
	EfiInstallAsRemovable bool     `json:"efiInstallAsRemovable"`
	BootloaderID          string   `json:"bootloaderId"`
	ForceInstall          bool     `json:"forceInstall"`
	ExtraGrubInstallArgs  []string `json:"extraGrubInstallArgs"`

	Default            string `json:"default"`
	Timeout            int    `json:"timeout"`
	TimeoutStyle       string `json:"timeoutStyle"`
	ConfigurationLimit int    `json:"configurationLimit"`

	EntryOptions    string `json:"entryOptions"`
	SubEntryOptions string `json:"subEntryOptions"`

	ExtraConfig             string `json:"extraConfig"`
	ExtraPrepareConfig      string `json:"extraPrepareConfig"`
	ExtraPerEntryConfig     string `json:"extraPerEntryConfig"`
	ExtraEntries            string `json:"extraEntries"`
	ExtraEntriesBeforeNixOS bool   `json:"extraEntriesBeforeNixOS"`

	Font            string `json:"font"`
	Theme           string `json:"theme"`
	SplashImage     string `json:"splashImage"`
	SplashMode      string `json:"splashMode"`
	BackgroundColor string `json:"backgroundColor"`

	GfxmodeEfi     string `json:"gfxmodeEfi"`
	GfxmodeBios    string `json:"gfxmodeBios"`
	GfxpayloadEfi  string `json:"gfxpayloadEfi"`
	GfxpayloadBios string `json:"gfxpayloadBios"`

	Users UserSlice `json:"users"`

	UseOSProber bool `json:"useOSProber"`

	Shell     string    `json:"shell"`
	Path      string    `json:"path"`
	ToolPaths ToolPaths `json:"toolPaths"`

	// GrubUsers is Users with password files read and hashes checked.
	GrubUsers []GrubUser `json:"-"`
}

type UserOptions struct {
	HashedPasswordFile string
	HashedPassword     string
	PasswordFile       string
	Password           string
}

type User struct {
	Name    string
	Options UserOptions
}

type UserSlice []User

// GrubUser is a menu credential ready for grub.cfg emission.
type GrubUser struct {
	Name     string
	Password string
	Hashed   bool
}

// UnmarshalJSON decodes the user attribute set. Users are keyed by name
// with a heterogeneous options object each; order is fixed by sorting the
// names so the emitted config is stable.
func (s *UserSlice) UnmarshalJSON(data []byte) error {
	var maps map[string]map[string]interface{}

	err := json.Unmarshal(data, &maps)
	if err != nil {
		return bosherr.WrapError(err, "Unmarshalling users")
	}

	names := make([]string, 0, len(maps))
	for name := range maps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		var opts UserOptions
		err := mapstruc.Decode(maps[name], &opts)
		if err != nil {
			return bosherr.WrapErrorf(err, "Unmarshalling user '%s'", name)
		}
		*s = append(*s, User{Name: name, Options: opts})
	}

	return nil
}

func (d Document) SaveDefault() bool {
	return d.Default == "saved"
}

func (d *Document) applyDefaults() {
	if d.StorePath == "" {
		d.StorePath = "/nix/store"
	}
	if d.FsIdentifier == "" {
		d.FsIdentifier = FsIdentifierUUID
	}
	if d.DistroName == "" {
		d.DistroName = "NixOS"
	}
	if d.SplashMode == "" {
		d.SplashMode = "stretch"
	}
	if d.TimeoutStyle == "" {
		d.TimeoutStyle = "menu"
	}
	if d.BootloaderID == "" {
		d.BootloaderID = "NixOS"
	}
	if d.EfiSysMountPoint == "" {
		d.EfiSysMountPoint = d.BootPath
	}
	if d.EntryOptions == "" {
		d.EntryOptions = "--class nixos --unrestricted"
	}
	if d.SubEntryOptions == "" {
		d.SubEntryOptions = "--class nixos"
	}
	if d.GfxmodeEfi == "" {
		d.GfxmodeEfi = "auto"
	}
	if d.GfxmodeBios == "" {
		d.GfxmodeBios = "1024x768"
	}
	if d.GfxpayloadEfi == "" {
		d.GfxpayloadEfi = "keep"
	}
	if d.GfxpayloadBios == "" {
		d.GfxpayloadBios = "text"
	}
	if d.Shell == "" {
		d.Shell = "/bin/sh"
	}
	if d.ToolPaths.Blkid == "" {
		d.ToolPaths.Blkid = "blkid"
	}
	if d.ToolPaths.Btrfs == "" {
		d.ToolPaths.Btrfs = "btrfs"
	}
}

func (d Document) validate() error {
	if d.BootPath == "" {
		return bosherr.Error("Validating document: bootPath must not be empty")
	}

	switch d.FsIdentifier {
	case FsIdentifierUUID, FsIdentifierLabel, FsIdentifierProvided:
	default:
		return bosherr.Errorf("Validating document: unknown fsIdentifier '%s'", d.FsIdentifier)
	}

	return nil
}
