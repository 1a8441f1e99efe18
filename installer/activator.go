package installer

import (
	"fmt"
	gopath "path"
	"strings"

	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	boshlog "github.com/cloudfoundry/bosh-utils/logger"
	boshsys "github.com/cloudfoundry/bosh-utils/system"

	"github.com/nixfoundry/grub-installer/grubcfg"
	"github.com/nixfoundry/grub-installer/settings"
	dirs "github.com/nixfoundry/grub-installer/settings/directories"
)

// Activator switches the live grub.cfg over to a freshly built menu and
// removes copied kernels no entry references anymore. The switch is a
// rename, so readers only ever see the old menu or the new one.
type Activator interface {
	Activate(menu grubcfg.Menu, efiTarget EfiTarget) error
}

type configActivator struct {
	fs          boshsys.FileSystem
	runner      boshsys.CmdRunner
	doc         settings.Document
	dirProvider dirs.Provider
	logger      boshlog.Logger
	logTag      string
}

func NewConfigActivator(
	fs boshsys.FileSystem,
	runner boshsys.CmdRunner,
	doc settings.Document,
	dirProvider dirs.Provider,
	logger boshlog.Logger,
) Activator {
	return configActivator{
		fs:          fs,
		runner:      runner,
		doc:         doc,
		dirProvider: dirProvider,
		logger:      logger,
		logTag:      "configActivator",
	}
}

func (a configActivator) Activate(menu grubcfg.Menu, efiTarget EfiTarget) error {
	err := a.fs.MkdirAll(a.dirProvider.GrubDir(), 0700)
	if err != nil {
		return bosherr.WrapErrorf(err, "Creating '%s'", a.dirProvider.GrubDir())
	}

	temp := a.dirProvider.GrubConfigTmpPath()

	err = a.fs.WriteFileString(temp, menu.Text)
	if err != nil {
		return bosherr.WrapErrorf(err, "Writing '%s'", temp)
	}

	err = a.runPrepareConfig()
	if err != nil {
		return err
	}

	err = a.runOSProber(efiTarget, temp)
	if err != nil {
		return err
	}

	final := a.dirProvider.GrubConfigPath()

	err = a.fs.Rename(temp, final)
	if err != nil {
		return bosherr.WrapErrorf(err, "Renaming '%s' to '%s'", temp, final)
	}

	return a.removeObsoleteKernels(menu.Copied)
}

func (a configActivator) runPrepareConfig() error {
	prepare := strings.ReplaceAll(a.doc.ExtraPrepareConfig, "@bootPath@", a.doc.BootPath)
	if prepare == "" {
		return nil
	}

	a.logger.Debug(a.logTag, "Running the prepare hook")

	_, _, _, err := a.runner.RunCommand(a.doc.Shell, "-c", prepare)
	if err != nil {
		return bosherr.WrapError(err, "Running the prepare hook")
	}

	return nil
}

// runOSProber appends foreign operating systems to the pending menu by
// running the os-prober hook shipped with whichever GRUB package this run
// installs. The hook's output is opaque; it is redirected into the menu
// file, never interpreted.
func (a configActivator) runOSProber(efiTarget EfiTarget, temp string) error {
	if !a.doc.UseOSProber {
		return nil
	}

	proberPackage, found := osProberPackage(efiTarget)
	if !found {
		return bosherr.Error("useOSProber is set but no GRUB package is configured to provide the os-prober hook")
	}

	cmd := boshsys.Command{
		Name: a.doc.Shell,
		Args: []string{"-c", fmt.Sprintf(
			"pkgdatadir=%s/share/grub %s/etc/grub.d/30_os-prober >> %s", proberPackage, proberPackage, temp)},
	}
	if a.doc.SaveDefault() {
		cmd.Env = map[string]string{"GRUB_SAVEDEFAULT": "true"}
	}

	_, _, _, err := a.runner.RunComplexCommand(cmd)
	if err != nil {
		return bosherr.WrapError(err, "Running the os-prober hook")
	}

	return nil
}

// The EFI package wins when both flavors are installed, matching which
// grub-install runs last.
func osProberPackage(efiTarget EfiTarget) (string, bool) {
	if efiPackage, _, covered := efiTarget.Efi(); covered {
		return efiPackage, true
	}
	if biosPackage, _, covered := efiTarget.Bios(); covered {
		return biosPackage, true
	}

	return "", false
}

func (a configActivator) removeObsoleteKernels(copied map[string]struct{}) error {
	files, err := a.fs.Glob(gopath.Join(a.dirProvider.KernelsDir(), "*"))
	if err != nil {
		return bosherr.WrapError(err, "Listing the copied kernels")
	}

	for _, file := range files {
		if _, ok := copied[file]; ok {
			continue
		}

		a.logger.Info(a.logTag, "Removing obsolete file %s", file)

		err = a.fs.RemoveAll(file)
		if err != nil {
			return bosherr.WrapErrorf(err, "Removing obsolete file '%s'", file)
		}
	}

	return nil
}
