package grubcfg

import (
	"fmt"
	gopath "path"
	"sort"
	"strconv"
	"strings"
	"time"

	bosherr "github.com/cloudfoundry/bosh-utils/errors"

	"github.com/nixfoundry/grub-installer/bootenv"
)

const profilesDir = "/nix/var/nix/profiles"

func (b *Builder) appendEntries() error {
	err := b.appendDefaultEntries()
	if err != nil {
		return err
	}

	return b.appendProfiles()
}

func (b *Builder) appendDefaultEntries() error {
	extraEntries := strings.ReplaceAll(b.doc.ExtraEntries, "@bootRoot@", b.bootSearch.Path)

	if b.doc.ExtraEntriesBeforeNixOS && extraEntries != "" {
		b.out.WriteString(extraEntries + "\n")
	}

	err := b.addGeneration(b.doc.DistroName, "", b.defaultConfig, b.doc.EntryOptions, true)
	if err != nil {
		return err
	}

	if !b.doc.ExtraEntriesBeforeNixOS && extraEntries != "" {
		b.out.WriteString(extraEntries + "\n")
	}

	return nil
}

func (b *Builder) appendProfiles() error {
	err := b.addProfile(
		gopath.Join(profilesDir, "system"),
		fmt.Sprintf("%s - All configurations", b.doc.DistroName),
	)
	if err != nil {
		return err
	}

	profiles, err := b.fs.Glob(gopath.Join(profilesDir, "system-profiles", "*"))
	if err != nil {
		return bosherr.WrapError(err, "Listing system profiles")
	}

	for _, profile := range profiles {
		name := gopath.Base(profile)
		if !isProfileName(name) {
			continue
		}

		err = b.addProfile(profile, fmt.Sprintf("%s - Profile '%s'", b.doc.DistroName, name))
		if err != nil {
			return err
		}
	}

	return nil
}

// addProfile writes a submenu holding the profile's generations, newest
// first, up to the configured limit.
func (b *Builder) addProfile(profile, description string) error {
	fmt.Fprintf(&b.out, "submenu \"%s\" --class submenu {\n", description)

	links, err := b.generationLinks(profile)
	if err != nil {
		return err
	}

	limit := b.doc.ConfigurationLimit
	if limit <= 0 || limit > len(links) {
		limit = len(links)
	}

	for _, link := range links[:limit] {
		version, err := b.fs.ReadFileString(gopath.Join(link.path, "nixos-version"))
		if err != nil {
			b.logger.Warn(b.logTag, "Skipping corrupt system profile entry '%s'", link.path)
			continue
		}

		date, err := b.generationDate(link.path)
		if err != nil {
			return err
		}

		err = b.addGeneration(
			fmt.Sprintf("%s - Configuration %d", b.doc.DistroName, link.number),
			fmt.Sprintf(" (%s - %s)", date, strings.TrimSpace(version)),
			link.path,
			b.doc.SubEntryOptions,
			false,
		)
		if err != nil {
			return err
		}
	}

	b.out.WriteString("}\n")

	return nil
}

type generationLink struct {
	path   string
	number int
}

func (b *Builder) generationLinks(profile string) ([]generationLink, error) {
	matches, err := b.fs.Glob(profile + "-*-link")
	if err != nil {
		return nil, bosherr.WrapErrorf(err, "Listing generations of '%s'", profile)
	}

	prefix := gopath.Base(profile) + "-"

	var links []generationLink
	for _, match := range matches {
		gen := strings.TrimSuffix(strings.TrimPrefix(gopath.Base(match), prefix), "-link")
		number, err := strconv.Atoi(gen)
		if err != nil {
			continue
		}
		links = append(links, generationLink{path: match, number: number})
	}

	sort.Slice(links, func(i, j int) bool { return links[i].number > links[j].number })

	return links, nil
}

// addGeneration writes the generation's entry and one entry per
// specialisation. Anything but the current generation gets its
// specialisations tucked into a submenu.
func (b *Builder) addGeneration(name, nameSuffix, path, options string, current bool) error {
	specialisations, err := b.fs.Glob(gopath.Join(path, "specialisation", "*"))
	if err != nil {
		return bosherr.WrapErrorf(err, "Listing specialisations of '%s'", path)
	}
	sort.Strings(specialisations)

	wrap := !current && len(specialisations) > 0
	if wrap {
		fmt.Fprintf(&b.out, "submenu \"> %s%s\" --class submenu {\n", name, nameSuffix)
	}

	entryName := name
	if len(specialisations) > 0 {
		entryName += " - Default"
	}
	entryName += nameSuffix

	err = b.addEntry(entryName, path, options, current)
	if err != nil {
		return err
	}

	for _, link := range specialisations {
		childName, err := b.specialisationName(name, link)
		if err != nil {
			return err
		}

		err = b.addEntry(childName, link, "", true)
		if err != nil {
			return err
		}
	}

	if wrap {
		b.out.WriteString("}\n")
	}

	return nil
}

func (b *Builder) specialisationName(base, link string) (string, error) {
	cfgName, err := b.fs.ReadFileString(gopath.Join(link, "configuration-name"))
	if err == nil && strings.TrimSpace(cfgName) != "" {
		return base + " - " + strings.TrimSpace(cfgName), nil
	}

	date, err := b.generationDate(link)
	if err != nil {
		return "", err
	}

	version, err := b.versionOf(link)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s - (%s - %s - %s)", base, gopath.Base(link), date, version), nil
}

func (b *Builder) versionOf(link string) (string, error) {
	version, err := b.fs.ReadFileString(gopath.Join(link, "nixos-version"))
	if err == nil {
		return strings.TrimSpace(version), nil
	}

	// Old generations predating the nixos-version file still name the
	// kernel release in their module tree.
	kernel, err := bootenv.CanonicalPath(b.runner, gopath.Join(link, "kernel"))
	if err != nil {
		return "", err
	}

	modules, err := b.fs.Glob(gopath.Join(gopath.Dir(kernel), "lib", "modules", "*"))
	if err != nil || len(modules) == 0 {
		return "", bosherr.Errorf("Could not deduce the NixOS version of '%s'", link)
	}

	return gopath.Base(modules[0]), nil
}

func (b *Builder) generationDate(link string) (string, error) {
	stdout, _, _, err := b.runner.RunCommand("stat", "-c", "%Y", link)
	if err != nil {
		return "", bosherr.WrapErrorf(err, "Reading the modification time of '%s'", link)
	}

	seconds, err := strconv.ParseInt(strings.TrimSpace(stdout), 10, 64)
	if err != nil {
		return "", bosherr.WrapErrorf(err, "Parsing the modification time of '%s'", link)
	}

	return time.Unix(seconds, 0).UTC().Format("2006-01-02"), nil
}

// addEntry writes one menuentry for the system at path. Systems without a
// kernel and initrd (a manual profile rollback target, say) are skipped.
func (b *Builder) addEntry(name, path, options string, current bool) error {
	if !b.fs.FileExists(gopath.Join(path, "kernel")) || !b.fs.FileExists(gopath.Join(path, "initrd")) {
		return nil
	}

	kernel, err := b.copyToKernelsDir(gopath.Join(path, "kernel"))
	if err != nil {
		return err
	}

	initrd, err := b.copyToKernelsDir(gopath.Join(path, "initrd"))
	if err != nil {
		return err
	}

	secrets, err := b.appendInitrdSecrets(name, path, current)
	if err != nil {
		return err
	}
	if secrets != "" {
		initrd += " " + secrets
	}

	init, err := bootenv.CanonicalPath(b.runner, gopath.Join(path, "init"))
	if err != nil {
		return err
	}

	params, err := b.fs.ReadFileString(gopath.Join(path, "kernel-params"))
	if err != nil {
		return bosherr.WrapErrorf(err, "Reading the kernel params of '%s'", path)
	}
	kernelParams := fmt.Sprintf("init=%s %s", init, strings.TrimSpace(params))

	var xen, xenParams string
	if b.fs.FileExists(gopath.Join(path, "xen.gz")) {
		xen, err = b.copyToKernelsDir(gopath.Join(path, "xen.gz"))
		if err != nil {
			return err
		}

		raw, err := b.fs.ReadFileString(gopath.Join(path, "xen-params"))
		if err == nil {
			xenParams = strings.TrimSpace(raw)
		}
	}

	if options != "" {
		fmt.Fprintf(&b.out, "menuentry \"%s\" %s {\n", name, options)
	} else {
		fmt.Fprintf(&b.out, "menuentry \"%s\" {\n", name)
	}
	if b.doc.SaveDefault() {
		b.out.WriteString("  savedefault\n")
	}
	if b.bootSearch.Search != "" {
		b.out.WriteString(b.bootSearch.Search + "\n")
	}
	if b.storeSearch != nil && b.storeSearch.Search != "" {
		b.out.WriteString(b.storeSearch.Search + "\n")
	}
	if b.doc.ExtraPerEntryConfig != "" {
		b.out.WriteString("  " + b.doc.ExtraPerEntryConfig + "\n")
	}
	if xen != "" {
		fmt.Fprintf(&b.out, "  multiboot %s %s\n", xen, xenParams)
		fmt.Fprintf(&b.out, "  module %s %s\n", kernel, kernelParams)
		fmt.Fprintf(&b.out, "  module %s\n", initrd)
	} else {
		fmt.Fprintf(&b.out, "  linux %s %s\n", kernel, kernelParams)
		fmt.Fprintf(&b.out, "  initrd %s\n", initrd)
	}
	b.out.WriteString("}\n\n")

	return nil
}

func isProfileName(name string) bool {
	if name == "" {
		return false
	}
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_':
		default:
			return false
		}
	}

	return true
}
