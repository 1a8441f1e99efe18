package app

import (
	"fmt"
	"io"
	"os"

	"code.cloudfoundry.org/clock"
	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	boshlog "github.com/cloudfoundry/bosh-utils/logger"
	boshsys "github.com/cloudfoundry/bosh-utils/system"
	boshuuid "github.com/cloudfoundry/bosh-utils/uuid"

	"github.com/nixfoundry/grub-installer/bootenv"
	"github.com/nixfoundry/grub-installer/grubcfg"
	"github.com/nixfoundry/grub-installer/installer"
	"github.com/nixfoundry/grub-installer/settings"
	dirs "github.com/nixfoundry/grub-installer/settings/directories"
)

type App interface {
	Setup(opts Options) error
	Run() error
}

type app struct {
	logger boshlog.Logger
	fs     boshsys.FileSystem
	runner boshsys.CmdRunner
	out    io.Writer
	logTag string

	timeService  clock.Clock
	spaceChecker grubcfg.SpaceChecker

	opts        Options
	doc         settings.Document
	dirProvider dirs.Provider

	prober         bootenv.DeviceProber
	topology       bootenv.BtrfsTopologyResolver
	targetResolver bootenv.BootTargetResolver
}

func New(logger boshlog.Logger, fs boshsys.FileSystem, runner boshsys.CmdRunner, out io.Writer) App {
	return &app{
		logger: logger,
		fs:     fs,
		runner: runner,
		out:    out,
		logTag: "App",

		timeService:  clock.NewClock(),
		spaceChecker: newSpaceChecker(),
	}
}

func (a *app) Setup(opts Options) error {
	a.opts = opts

	var err error
	a.doc, err = settings.LoadDocument(a.fs, opts.DocumentPath)
	if err != nil {
		return bosherr.WrapError(err, "Loading the install document")
	}

	// External tools resolve through the PATH the generating module chose.
	if a.doc.Path != "" {
		err = os.Setenv("PATH", a.doc.Path)
		if err != nil {
			return bosherr.WrapError(err, "Exporting PATH")
		}
	}

	a.dirProvider = dirs.NewProvider(a.doc.BootPath)

	mountsSearcher := bootenv.NewProcMountsSearcher(a.fs, a.logger)
	a.prober = bootenv.NewBlkidDeviceProber(a.runner, mountsSearcher, bootenv.DeviceProberOpts{
		BlkidPath: a.doc.ToolPaths.Blkid,
		StorePath: a.doc.StorePath,
	}, a.logger)
	a.topology = bootenv.NewBtrfsCliTopologyResolver(a.runner, a.doc.ToolPaths.Btrfs, a.logger)
	a.targetResolver = bootenv.NewBootTargetResolver(a.prober, a.topology, boshuuid.NewGenerator(), a.logger)

	return nil
}

func (a *app) Run() error {
	a.logger.Info(a.logTag, "Updating the GRUB 2 menu")

	copyKernels, err := a.resolveCopyKernels()
	if err != nil {
		return err
	}

	targets, err := a.resolveTargets()
	if err != nil {
		return err
	}

	searchBuilder := grubcfg.NewSearchBuilder(a.prober, a.topology, a.doc.FsIdentifier, a.logger)

	builderOpts := grubcfg.BuilderOpts{
		Document:      a.doc,
		DefaultConfig: a.opts.DefaultConfigPath,
		DirProvider:   a.dirProvider,
		DryRun:        a.opts.DryRun,
	}

	builderOpts.BootSearch, err = searchBuilder.SearchFor(a.doc.BootPath)
	if err != nil {
		return err
	}

	if !copyKernels {
		storeSearch, err := searchBuilder.SearchFor(a.doc.StorePath)
		if err != nil {
			return err
		}
		builderOpts.StoreSearch = &storeSearch
	}

	menu, err := grubcfg.NewBuilder(builderOpts, a.fs, a.runner, a.spaceChecker, a.logger).Build()
	if err != nil {
		return err
	}

	if a.opts.DryRun {
		_, err = fmt.Fprint(a.out, menu.Text)
		if err != nil {
			return bosherr.WrapError(err, "Printing the menu")
		}
		return nil
	}

	efiTarget, err := installer.DeduceEfiTarget(a.doc)
	if err != nil {
		return err
	}

	err = installer.NewConfigActivator(a.fs, a.runner, a.doc, a.dirProvider, a.logger).Activate(menu, efiTarget)
	if err != nil {
		return err
	}

	return a.install(targets, efiTarget)
}

// resolveCopyKernels decides whether kernels and initrds must be copied to
// the boot filesystem. They must whenever GRUB cannot read the store at
// boot time, which is the case when the store lives on another device.
func (a *app) resolveCopyKernels() (bool, error) {
	if a.doc.CopyKernels {
		return true, nil
	}

	bootInfo, err := a.prober.Probe(a.doc.BootPath)
	if err != nil {
		return false, bosherr.WrapErrorf(err, "Probing the boot path '%s'", a.doc.BootPath)
	}

	storeInfo, err := a.prober.Probe(a.doc.StorePath)
	if err != nil {
		return false, bosherr.WrapErrorf(err, "Probing the store '%s'", a.doc.StorePath)
	}

	if bootInfo.DevicePath != storeInfo.DevicePath {
		a.logger.Info(a.logTag, "Copying kernels: '%s' and '%s' are on different devices", a.doc.BootPath, a.doc.StorePath)
		return true, nil
	}

	return false, nil
}

// resolveTargets picks the devices grub-install runs against. Devices named
// by the document win; the literal "nodev" passes through uncanonicalized.
// Without explicit devices the boot and root filesystems are probed.
func (a *app) resolveTargets() ([]bootenv.InstallTarget, error) {
	if len(a.doc.Devices) > 0 {
		devices := make([]string, 0, len(a.doc.Devices))
		for _, device := range a.doc.Devices {
			if device == "nodev" {
				devices = append(devices, device)
				continue
			}

			canonical, err := bootenv.CanonicalPath(a.runner, device)
			if err != nil {
				return nil, err
			}
			devices = append(devices, canonical)
		}

		return []bootenv.InstallTarget{{
			Devices:     devices,
			Role:        bootenv.TargetRoleCombined,
			MultiDevice: len(devices) > 1,
			Description: "devices named by the install document",
		}}, nil
	}

	return a.targetResolver.Resolve(a.doc.BootPath, "/")
}

func (a *app) install(targets []bootenv.InstallTarget, efiTarget installer.EfiTarget) error {
	statePath := a.dirProvider.StateFilePath()
	state := installer.NewState(a.doc, efiTarget, flattenDevices(targets))

	if !a.forceInstall() && !state.NeedsReinstall(installer.LoadState(a.fs, statePath)) {
		a.logger.Info(a.logTag, "Boot loader installation is up to date")
		return nil
	}

	err := installer.NewGrubInstallRunner(a.runner, a.fs, a.doc, a.timeService, a.logger).Install(targets, efiTarget)
	if err != nil {
		return err
	}

	return state.Save(a.fs, statePath)
}

// forceInstall honors NIXOS_INSTALL_BOOTLOADER=1, which reinstalls no
// matter what the state file records.
func (a *app) forceInstall() bool {
	if os.Getenv("NIXOS_INSTALL_GRUB") == "1" {
		a.logger.Warn(a.logTag, "NIXOS_INSTALL_GRUB is deprecated, use NIXOS_INSTALL_BOOTLOADER")
		return true
	}

	return os.Getenv("NIXOS_INSTALL_BOOTLOADER") == "1"
}

func flattenDevices(targets []bootenv.InstallTarget) []string {
	devices := []string{}
	for _, target := range targets {
		devices = append(devices, target.Devices...)
	}

	return devices
}
