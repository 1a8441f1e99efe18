package bootenv_test

import (
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	fakesys "github.com/cloudfoundry/bosh-utils/system/fakes"

	"github.com/nixfoundry/grub-installer/bootenv"
)

var _ = Describe("CanonicalPath", func() {
	var runner *fakesys.FakeCmdRunner

	BeforeEach(func() {
		runner = fakesys.NewFakeCmdRunner()
	})

	It("resolves symlinks through readlink", func() {
		runner.AddCmdResult("readlink -f /dev/disk/by-uuid/2222-BBBB", fakesys.FakeCmdResult{
			Stdout: "/dev/sda1\n",
		})

		path, err := bootenv.CanonicalPath(runner, "/dev/disk/by-uuid/2222-BBBB")
		Expect(err).ToNot(HaveOccurred())
		Expect(path).To(Equal("/dev/sda1"))
	})

	It("returns an error when readlink fails", func() {
		runner.AddCmdResult("readlink -f /enoent", fakesys.FakeCmdResult{
			Error: errors.New("no such file or directory"),
		})

		_, err := bootenv.CanonicalPath(runner, "/enoent")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("Canonicalizing '/enoent'"))
	})
})
