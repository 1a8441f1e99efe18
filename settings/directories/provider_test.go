package directories_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/nixfoundry/grub-installer/settings/directories"
)

var _ = Describe("Provider", func() {
	var provider directories.Provider

	BeforeEach(func() {
		provider = directories.NewProvider("/boot")
	})

	It("places the grub tree under the boot dir", func() {
		Expect(provider.BootDir()).To(Equal("/boot"))
		Expect(provider.GrubDir()).To(Equal("/boot/grub"))
		Expect(provider.GrubConfigPath()).To(Equal("/boot/grub/grub.cfg"))
		Expect(provider.GrubConfigTmpPath()).To(Equal("/boot/grub/grub.cfg.tmp"))
		Expect(provider.StateFilePath()).To(Equal("/boot/grub/state"))
	})

	It("places copied artifacts directly under the boot dir", func() {
		Expect(provider.KernelsDir()).To(Equal("/boot/kernels"))
		Expect(provider.ConvertedFontPath()).To(Equal("/boot/converted-font.pf2"))
		Expect(provider.ThemeDir()).To(Equal("/boot/theme"))
	})
})
