package grubcfg

import (
	"fmt"
	"strings"

	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	boshlog "github.com/cloudfoundry/bosh-utils/logger"
	boshsys "github.com/cloudfoundry/bosh-utils/system"

	"github.com/nixfoundry/grub-installer/settings"
	dirs "github.com/nixfoundry/grub-installer/settings/directories"
)

// Menu is one fully rendered boot menu plus the files the build placed
// under the kernels directory. Copied keys are absolute paths; the
// installer removes everything else it finds there.
type Menu struct {
	Text   string
	Copied map[string]struct{}
}

type BuilderOpts struct {
	Document      settings.Document
	DefaultConfig string
	DirProvider   dirs.Provider
	BootSearch    GrubSearch
	StoreSearch   *GrubSearch
	DryRun        bool
}

// Builder renders grub.cfg for the system profile generations. A builder
// is single-use: Build walks the profiles once and accumulates the copied
// file set as it goes.
type Builder struct {
	doc           settings.Document
	defaultConfig string
	dirProvider   dirs.Provider
	bootSearch    GrubSearch
	storeSearch   *GrubSearch
	dryRun        bool

	fs           boshsys.FileSystem
	runner       boshsys.CmdRunner
	spaceChecker SpaceChecker
	logger       boshlog.Logger
	logTag       string

	out    strings.Builder
	copied map[string]struct{}
}

func NewBuilder(
	opts BuilderOpts,
	fs boshsys.FileSystem,
	runner boshsys.CmdRunner,
	spaceChecker SpaceChecker,
	logger boshlog.Logger,
) *Builder {
	return &Builder{
		doc:           opts.Document,
		defaultConfig: opts.DefaultConfig,
		dirProvider:   opts.DirProvider,
		bootSearch:    opts.BootSearch,
		storeSearch:   opts.StoreSearch,
		dryRun:        opts.DryRun,
		fs:            fs,
		runner:        runner,
		spaceChecker:  spaceChecker,
		logger:        logger,
		logTag:        "menuBuilder",
		copied:        map[string]struct{}{},
	}
}

func (b *Builder) Build() (Menu, error) {
	b.out.WriteString("# Automatically generated.  DO NOT EDIT THIS FILE!\n")

	b.appendUsers()
	b.appendDefaultEntrySetup()

	err := b.appendAppearance()
	if err != nil {
		return Menu{}, err
	}

	err = b.appendEntries()
	if err != nil {
		return Menu{}, err
	}

	return Menu{Text: b.out.String(), Copied: b.copied}, nil
}

func (b *Builder) appendUsers() {
	if len(b.doc.GrubUsers) == 0 {
		return
	}

	names := make([]string, 0, len(b.doc.GrubUsers))
	for _, user := range b.doc.GrubUsers {
		if user.Hashed {
			fmt.Fprintf(&b.out, "password_pbkdf2 %s %s\n", user.Name, user.Password)
		} else {
			fmt.Fprintf(&b.out, "password %s %s\n", user.Name, user.Password)
		}
		names = append(names, user.Name)
	}

	fmt.Fprintf(&b.out, "set superusers=\"%s\"\n", strings.Join(names, " "))
}

// appendDefaultEntrySetup writes the prologue every menu shares: the drive
// searches, the grubenv handling for grub-reboot's one-shot entry, and the
// default entry and timeout selection.
func (b *Builder) appendDefaultEntrySetup() {
	if b.storeSearch != nil && b.storeSearch.Search != "" {
		b.out.WriteString(b.storeSearch.Search + "\n")
	}
	if b.bootSearch.Search != "" {
		b.out.WriteString(b.bootSearch.Search + "\n")
	}

	defaultEntry := b.doc.Default
	if b.doc.SaveDefault() {
		defaultEntry = "\"${saved_entry}\""
	}

	b.out.WriteString("if [ -s $prefix/grubenv ]; then\n")
	b.out.WriteString("  load_env\n")
	b.out.WriteString("fi\n")
	b.out.WriteString("\n")
	b.out.WriteString("# 'grub-reboot' sets a one-shot saved entry, which we process here and\n")
	b.out.WriteString("# then delete.\n")
	b.out.WriteString("if [ \"${next_entry}\" ]; then\n")
	b.out.WriteString("  set default=\"${next_entry}\"\n")
	b.out.WriteString("  set next_entry=\n")
	b.out.WriteString("  save_env next_entry\n")
	b.out.WriteString("  set timeout=1\n")
	b.out.WriteString("  set boot_once=true\n")
	b.out.WriteString("else\n")
	fmt.Fprintf(&b.out, "  set default=%s\n", defaultEntry)
	fmt.Fprintf(&b.out, "  set timeout=%d\n", b.doc.Timeout)
	b.out.WriteString("fi\n")
	fmt.Fprintf(&b.out, "set timeout_style=%s\n", b.doc.TimeoutStyle)
	b.out.WriteString("\n")

	if b.doc.SaveDefault() {
		b.out.WriteString("function savedefault {\n")
		b.out.WriteString("  if [ -z \"${boot_once}\" ]; then\n")
		b.out.WriteString("    saved_entry=\"${chosen}\"\n")
		b.out.WriteString("    save_env saved_entry\n")
		b.out.WriteString("  fi\n")
		b.out.WriteString("}\n")
		b.out.WriteString("\n")
	}
}

func (b *Builder) copyFile(src, dst string) error {
	if b.dryRun {
		return nil
	}

	err := b.fs.CopyFile(src, dst)
	if err != nil {
		return bosherr.WrapErrorf(err, "Copying '%s' to '%s'", src, dst)
	}

	return nil
}
