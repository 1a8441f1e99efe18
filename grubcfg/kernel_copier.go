package grubcfg

import (
	gopath "path"
	"strconv"
	"strings"

	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	"golang.org/x/sys/unix"

	"github.com/nixfoundry/grub-installer/bootenv"
)

// copyToKernelsDir places a store file under the kernels directory and
// returns the GRUB-side path entries must reference. When the store is
// reachable at boot the file is referenced in place instead.
func (b *Builder) copyToKernelsDir(path string) (string, error) {
	canonical, err := bootenv.CanonicalPath(b.runner, path)
	if err != nil {
		return "", err
	}

	storePrefix := strings.TrimSuffix(b.doc.StorePath, "/") + "/"
	if !strings.HasPrefix(canonical, storePrefix) {
		return "", bosherr.Errorf("Path '%s' is not in the store '%s'", canonical, b.doc.StorePath)
	}
	relative := strings.TrimPrefix(canonical, storePrefix)

	if b.storeSearch != nil {
		return b.storeSearch.Path + "/" + relative, nil
	}

	name := strings.ReplaceAll(relative, "/", "-")
	dst := gopath.Join(b.dirProvider.KernelsDir(), name)

	// The destination appears atomically so an interrupted run never
	// leaves a partially copied kernel under its final name.
	if !b.dryRun && !b.fs.FileExists(dst) {
		err = b.fs.MkdirAll(b.dirProvider.KernelsDir(), 0755)
		if err != nil {
			return "", bosherr.WrapErrorf(err, "Creating '%s'", b.dirProvider.KernelsDir())
		}

		err = b.ensureSpaceFor(canonical)
		if err != nil {
			return "", err
		}

		tmp := dst + ".tmp"
		err = b.fs.CopyFile(canonical, tmp)
		if err != nil {
			return "", bosherr.WrapErrorf(err, "Copying '%s' to '%s'", canonical, tmp)
		}

		err = b.fs.Rename(tmp, dst)
		if err != nil {
			return "", bosherr.WrapErrorf(err, "Renaming '%s' to '%s'", tmp, dst)
		}
	}

	b.copied[dst] = struct{}{}

	return b.bootSearch.Path + "/kernels/" + name, nil
}

func (b *Builder) ensureSpaceFor(path string) error {
	stdout, _, _, err := b.runner.RunCommand("stat", "-c", "%s", path)
	if err != nil {
		return bosherr.WrapErrorf(err, "Sizing '%s'", path)
	}

	needed, err := strconv.ParseUint(strings.TrimSpace(stdout), 10, 64)
	if err != nil {
		return bosherr.WrapErrorf(err, "Parsing the size of '%s'", path)
	}

	available, err := b.spaceChecker.AvailableKBytes(b.dirProvider.BootDir())
	if err != nil {
		return err
	}

	if available*1024 < needed {
		return bosherr.Errorf(
			"Not enough space in '%s' to copy '%s': %d bytes needed, %d KiB available",
			b.dirProvider.BootDir(), path, needed, available,
		)
	}

	return nil
}

// appendInitrdSecrets runs the generation's append-initrd-secrets hook and
// returns the GRUB-side path of the produced secrets initrd, or "" when the
// generation has none. Failures are fatal only for the generation being
// activated; older generations may legitimately reference secrets that no
// longer exist.
func (b *Builder) appendInitrdSecrets(name, path string, current bool) (string, error) {
	script := gopath.Join(path, "append-initrd-secrets")
	if !b.fs.FileExists(script) {
		return "", nil
	}

	canonical, err := bootenv.CanonicalPath(b.runner, path)
	if err != nil {
		return "", err
	}

	secretsName := gopath.Base(canonical) + "-secrets"
	dst := gopath.Join(b.dirProvider.KernelsDir(), secretsName)
	ref := b.bootSearch.Path + "/kernels/" + secretsName

	if b.dryRun {
		return ref, nil
	}

	err = b.fs.MkdirAll(b.dirProvider.KernelsDir(), 0755)
	if err != nil {
		return "", bosherr.WrapErrorf(err, "Creating '%s'", b.dirProvider.KernelsDir())
	}

	tmp := dst + ".tmp"

	// The secrets initrd must not end up world readable.
	oldMask := unix.Umask(0137)
	_, _, _, runErr := b.runner.RunCommand(script, tmp)
	unix.Umask(oldMask)

	if runErr != nil {
		if current {
			return "", bosherr.WrapErrorf(runErr, "Creating initrd secrets for \"%s\"", name)
		}
		b.logger.Warn(b.logTag, "Failed to create initrd secrets for \"%s\", an older generation: %s", name, runErr.Error())
		b.logger.Warn(b.logTag, "This is normal after having removed or renamed a file in `boot.initrd.secrets`")
	}

	if !b.fs.FileExists(tmp) {
		return "", nil
	}

	content, err := b.fs.ReadFile(tmp)
	if err != nil {
		return "", bosherr.WrapErrorf(err, "Checking initrd secrets '%s'", tmp)
	}
	if len(content) == 0 {
		err = b.fs.RemoveAll(tmp)
		if err != nil {
			return "", bosherr.WrapErrorf(err, "Removing empty initrd secrets '%s'", tmp)
		}
		return "", nil
	}

	err = b.fs.Rename(tmp, dst)
	if err != nil {
		return "", bosherr.WrapError(err, "Moving initrd secrets into place")
	}
	b.copied[dst] = struct{}{}

	return ref, nil
}
