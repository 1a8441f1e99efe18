package installer

import (
	gopath "path"

	"code.cloudfoundry.org/clock"
	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	boshlog "github.com/cloudfoundry/bosh-utils/logger"
	boshsys "github.com/cloudfoundry/bosh-utils/system"

	"github.com/nixfoundry/grub-installer/bootenv"
	"github.com/nixfoundry/grub-installer/settings"
)

// Runner drives grub-install over the resolved targets: once per BIOS
// device in target order, then once for the EFI system partition.
type Runner interface {
	Install(targets []bootenv.InstallTarget, efiTarget EfiTarget) error
}

type grubInstallRunner struct {
	runner      boshsys.CmdRunner
	fs          boshsys.FileSystem
	doc         settings.Document
	timeService clock.Clock
	logger      boshlog.Logger
	logTag      string
}

func NewGrubInstallRunner(
	runner boshsys.CmdRunner,
	fs boshsys.FileSystem,
	doc settings.Document,
	timeService clock.Clock,
	logger boshlog.Logger,
) Runner {
	return grubInstallRunner{
		runner:      runner,
		fs:          fs,
		doc:         doc,
		timeService: timeService,
		logger:      logger,
		logTag:      "grubInstallRunner",
	}
}

func (r grubInstallRunner) Install(targets []bootenv.InstallTarget, efiTarget EfiTarget) error {
	err := r.installBios(targets, efiTarget)
	if err != nil {
		return err
	}

	return r.installEfi(efiTarget)
}

func (r grubInstallRunner) installBios(targets []bootenv.InstallTarget, efiTarget EfiTarget) error {
	biosPackage, biosTarget, covered := efiTarget.Bios()
	if !covered {
		return nil
	}

	// grub-install detects the boot drive by walking its --root-directory,
	// so hand it a throwaway root whose boot entry points at the real one.
	rootDir, err := r.fs.TempDir("grub-install-root")
	if err != nil {
		return bosherr.WrapError(err, "Creating a root directory for grub-install")
	}
	defer func() {
		_ = r.fs.RemoveAll(rootDir)
	}()

	err = r.fs.Symlink(r.doc.BootPath, gopath.Join(rootDir, "boot"))
	if err != nil {
		return bosherr.WrapErrorf(err, "Symlinking '%s/boot' to '%s'", rootDir, r.doc.BootPath)
	}

	installPath := gopath.Join(biosPackage, "sbin", "grub-install")

	for _, target := range targets {
		for _, device := range target.Devices {
			if device == "nodev" {
				continue
			}

			canonical, err := bootenv.CanonicalPath(r.runner, device)
			if err != nil {
				return err
			}

			r.logger.Info(r.logTag, "Installing the GRUB 2 boot loader on %s (%s)...", canonical, target.Role)

			args := []string{"--recheck", "--root-directory=" + rootDir, canonical}
			args = append(args, r.doc.ExtraGrubInstallArgs...)
			if r.doc.ForceInstall {
				args = append(args, "--force")
			}
			if biosTarget != "" {
				args = append(args, "--target="+biosTarget)
			}

			started := r.timeService.Now()

			_, _, exitStatus, err := r.runner.RunCommand(installPath, args...)
			if err != nil {
				return bosherr.WrapErrorf(err,
					"%s: installation of GRUB on '%s' failed (status %d)", installPath, canonical, exitStatus)
			}

			r.logger.Debug(r.logTag, "Installed on %s in %s", canonical, r.timeService.Since(started))
		}
	}

	return nil
}

func (r grubInstallRunner) installEfi(efiTarget EfiTarget) error {
	efiPackage, target, covered := efiTarget.Efi()
	if !covered {
		return nil
	}

	r.logger.Info(r.logTag, "Installing the GRUB 2 boot loader into %s...", r.doc.EfiSysMountPoint)

	installPath := gopath.Join(efiPackage, "sbin", "grub-install")

	args := []string{
		"--recheck",
		"--target=" + target,
		"--boot-directory=" + r.doc.BootPath,
		"--efi-directory=" + r.doc.EfiSysMountPoint,
	}
	args = append(args, r.doc.ExtraGrubInstallArgs...)
	if r.doc.ForceInstall {
		args = append(args, "--force")
	}
	args = append(args, "--bootloader-id="+r.doc.BootloaderID)

	// Firmware that must not be written to still gets a loader the
	// fallback path can find.
	if !r.doc.CanTouchEfiVariables {
		args = append(args, "--no-nvram")
		if r.doc.EfiInstallAsRemovable {
			args = append(args, "--removable")
		}
	}

	started := r.timeService.Now()

	_, _, exitStatus, err := r.runner.RunCommand(installPath, args...)
	if err != nil {
		return bosherr.WrapErrorf(err,
			"%s: installation of GRUB EFI into '%s' failed (status %d)", installPath, r.doc.EfiSysMountPoint, exitStatus)
	}

	r.logger.Debug(r.logTag, "Installed into %s in %s", r.doc.EfiSysMountPoint, r.timeService.Since(started))

	return nil
}
