package bootenv

import (
	"strings"

	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	boshsys "github.com/cloudfoundry/bosh-utils/system"
)

// CanonicalPath resolves every symlink in path so logically equivalent
// paths always name the same file or device.
func CanonicalPath(runner boshsys.CmdRunner, path string) (string, error) {
	stdout, _, _, err := runner.RunCommand("readlink", "-f", path)
	if err != nil {
		return "", bosherr.WrapErrorf(err, "Canonicalizing '%s'", path)
	}

	return strings.Trim(stdout, "\n"), nil
}
