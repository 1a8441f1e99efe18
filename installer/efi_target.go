package installer

import (
	bosherr "github.com/cloudfoundry/bosh-utils/errors"

	"github.com/nixfoundry/grub-installer/settings"
)

// EfiTarget says which GRUB flavors this run installs and which packages
// provide them. Four combinations exist: BIOS and EFI together, BIOS
// alone, EFI alone, or nothing at all (menu regeneration only).
type EfiTarget struct {
	mode string

	biosPackage string
	biosTarget  string
	efiPackage  string
	efiTarget   string
}

// DeduceEfiTarget reads the grub/grubEfi package paths and their install
// targets out of the document. Installing both flavors requires both
// targets; installing EFI requires its target.
func DeduceEfiTarget(doc settings.Document) (EfiTarget, error) {
	switch {
	case doc.Grub != "" && doc.GrubEfi != "":
		if doc.GrubTarget == "" || doc.GrubTargetEfi == "" {
			return EfiTarget{}, bosherr.Error(
				"EFI can only be installed when target is set; a target is also required then for non-EFI grub")
		}
		return EfiTarget{
			mode:        "both",
			biosPackage: doc.Grub,
			biosTarget:  doc.GrubTarget,
			efiPackage:  doc.GrubEfi,
			efiTarget:   doc.GrubTargetEfi,
		}, nil

	case doc.Grub != "":
		return EfiTarget{
			mode:        "no",
			biosPackage: doc.Grub,
			biosTarget:  doc.GrubTarget,
		}, nil

	case doc.GrubEfi != "":
		if doc.GrubTargetEfi == "" {
			return EfiTarget{}, bosherr.Error("EFI can only be installed when target is set")
		}
		return EfiTarget{
			mode:       "only",
			efiPackage: doc.GrubEfi,
			efiTarget:  doc.GrubTargetEfi,
		}, nil

	default:
		return EfiTarget{mode: "neither"}, nil
	}
}

// Bios returns the package providing BIOS grub-install and the optional
// --target value. The last return is false when this run installs no BIOS
// boot loader.
func (t EfiTarget) Bios() (string, string, bool) {
	return t.biosPackage, t.biosTarget, t.biosPackage != ""
}

// Efi returns the package providing EFI grub-install and the mandatory
// --target value. The last return is false when this run installs no EFI
// boot loader.
func (t EfiTarget) Efi() (string, string, bool) {
	return t.efiPackage, t.efiTarget, t.efiPackage != ""
}

// String is the state-file vocabulary: the historical answer to "is this
// an EFI install" plus the two mixed cases added later.
func (t EfiTarget) String() string {
	return t.mode
}
