package bootenv_test

import (
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	boshlog "github.com/cloudfoundry/bosh-utils/logger"
	fakesys "github.com/cloudfoundry/bosh-utils/system/fakes"

	. "github.com/nixfoundry/grub-installer/bootenv"
	fakeenv "github.com/nixfoundry/grub-installer/bootenv/fakes"
)

var _ = Describe("blkidDeviceProber", func() {
	var (
		runner   *fakesys.FakeCmdRunner
		searcher *fakeenv.FakeMountsSearcher
		prober   DeviceProber
	)

	stubCanonical := func(path, canonical string) {
		runner.AddCmdResult("readlink -f "+path, fakesys.FakeCmdResult{Stdout: canonical + "\n"})
	}

	BeforeEach(func() {
		runner = fakesys.NewFakeCmdRunner()
		searcher = &fakeenv.FakeMountsSearcher{}
		prober = NewBlkidDeviceProber(runner, searcher, DeviceProberOpts{}, boshlog.NewLogger(boshlog.LevelNone))

		searcher.SearchMountsMounts = []Mount{
			{
				PartitionPath: "/dev/sda1",
				MountPoint:    "/",
				FsType:        "ext4",
				MountOptions:  []string{"rw", "relatime"},
				SuperOptions:  []string{"rw"},
			},
			{
				PartitionPath: "/dev/sda2",
				MountPoint:    "/boot",
				FsType:        "vfat",
				MountOptions:  []string{"rw"},
				SuperOptions:  []string{"rw"},
			},
		}
	})

	Describe("Probe", func() {
		Context("with a directory covered by a mount", func() {
			It("probes the device of the longest matching mount point", func() {
				stubCanonical("/boot/grub", "/boot/grub")
				runner.AddCmdResult("blkid -p -o export /dev/sda2", fakesys.FakeCmdResult{Stdout: `DEVNAME=/dev/sda2
UUID=ABCD-EF01
LABEL=BOOT
TYPE=vfat
PART_ENTRY_TYPE=c12a7328-f81f-11d2-ba4b-00a0c93ec93b
PART_ENTRY_UUID=7ad15887-3a4f-4531-8dcf-dd1e2f2c0b7e
`})

				info, err := prober.Probe("/boot/grub")
				Expect(err).ToNot(HaveOccurred())
				Expect(info).To(Equal(DeviceInfo{
					DevicePath:    "/dev/sda2",
					MountPoint:    "/boot",
					FsType:        FileSystemVfat,
					UUID:          "ABCD-EF01",
					Label:         "BOOT",
					PartitionUUID: "7ad15887-3a4f-4531-8dcf-dd1e2f2c0b7e",
					PartitionRole: PartitionRoleESP,
				}))

				Expect(runner.RunCommands).To(ContainElement([]string{"blkid", "-p", "-o", "export", "/dev/sda2"}))
			})

			It("falls back to the root mount for paths outside other mounts", func() {
				stubCanonical("/nix/store/abc", "/nix/store/abc")
				runner.AddCmdResult("blkid -p -o export /dev/sda1", fakesys.FakeCmdResult{Stdout: "TYPE=ext4\nUUID=11111111-2222-3333-4444-555555555555\n"})

				info, err := prober.Probe("/nix/store/abc")
				Expect(err).ToNot(HaveOccurred())
				Expect(info.DevicePath).To(Equal("/dev/sda1"))
				Expect(info.MountPoint).To(Equal("/"))
				Expect(info.FsType).To(Equal(FileSystemExt4))
				Expect(info.PartitionRole).To(Equal(PartitionRoleUnknown))
			})

			It("skips autofs placeholder mounts", func() {
				searcher.SearchMountsMounts = append(searcher.SearchMountsMounts, Mount{
					PartitionPath: "systemd-1",
					MountPoint:    "/boot/efi",
					FsType:        "autofs",
					MountOptions:  []string{"rw"},
					SuperOptions:  []string{"rw", "fd=29"},
				})
				stubCanonical("/boot/efi", "/boot/efi")
				runner.AddCmdResult("blkid -p -o export /dev/sda2", fakesys.FakeCmdResult{Stdout: "TYPE=vfat\n"})

				info, err := prober.Probe("/boot/efi")
				Expect(err).ToNot(HaveOccurred())
				Expect(info.DevicePath).To(Equal("/dev/sda2"))
				Expect(info.MountPoint).To(Equal("/boot"))
			})

			It("skips the read-only bind mount covering the store", func() {
				searcher.SearchMountsMounts = append(searcher.SearchMountsMounts, Mount{
					PartitionPath: "/dev/sda1",
					MountPoint:    "/nix/store",
					FsType:        "ext4",
					MountOptions:  []string{"ro", "nosuid"},
					SuperOptions:  []string{"rw", "errors=remount-ro"},
				})
				stubCanonical("/nix/store/abc", "/nix/store/abc")
				runner.AddCmdResult("blkid -p -o export /dev/sda1", fakesys.FakeCmdResult{Stdout: "TYPE=ext4\n"})

				info, err := prober.Probe("/nix/store/abc")
				Expect(err).ToNot(HaveOccurred())
				Expect(info.MountPoint).To(Equal("/"))
			})

			It("keeps a store mount that is not the bind-mount shadow", func() {
				searcher.SearchMountsMounts = append(searcher.SearchMountsMounts, Mount{
					PartitionPath: "/dev/sdb1",
					MountPoint:    "/nix/store",
					FsType:        "ext4",
					MountOptions:  []string{"rw", "relatime"},
					SuperOptions:  []string{"rw"},
				})
				stubCanonical("/nix/store/abc", "/nix/store/abc")
				runner.AddCmdResult("blkid -p -o export /dev/sdb1", fakesys.FakeCmdResult{Stdout: "TYPE=ext4\n"})

				info, err := prober.Probe("/nix/store/abc")
				Expect(err).ToNot(HaveOccurred())
				Expect(info.DevicePath).To(Equal("/dev/sdb1"))
				Expect(info.MountPoint).To(Equal("/nix/store"))
			})

			It("returns virtual filesystem sources without probing them", func() {
				searcher.SearchMountsMounts = []Mount{
					{
						PartitionPath: "tmpfs",
						MountPoint:    "/",
						FsType:        "tmpfs",
						MountOptions:  []string{"rw"},
						SuperOptions:  []string{"rw"},
					},
				}
				stubCanonical("/scratch", "/scratch")

				info, err := prober.Probe("/scratch")
				Expect(err).ToNot(HaveOccurred())
				Expect(info).To(Equal(DeviceInfo{
					DevicePath: "tmpfs",
					MountPoint: "/",
					FsType:     FileSystemOther,
				}))
				Expect(runner.RunCommands).To(HaveLen(1))
			})

			It("returns ProbeNotFoundError when no mount covers the path", func() {
				searcher.SearchMountsMounts = []Mount{}
				stubCanonical("/boot", "/boot")

				_, err := prober.Probe("/boot")
				Expect(err).To(Equal(ProbeNotFoundError{Path: "/boot"}))
			})

			It("wraps mount search failures as external tool errors", func() {
				searcher.SearchMountsErr = errors.New("fake-search-error")
				stubCanonical("/boot", "/boot")

				_, err := prober.Probe("/boot")
				Expect(err).To(BeAssignableToTypeOf(ProbeExternalToolError{}))
				Expect(err.Error()).To(ContainSubstring("/proc/self/mountinfo"))
				Expect(err.Error()).To(ContainSubstring("fake-search-error"))
			})
		})

		Context("with a device node", func() {
			It("probes the canonicalized device directly", func() {
				stubCanonical("/dev/disk/by-uuid/ABCD-EF01", "/dev/sda2")
				runner.AddCmdResult("blkid -p -o export /dev/sda2", fakesys.FakeCmdResult{Stdout: "TYPE=vfat\nUUID=ABCD-EF01\n"})

				info, err := prober.Probe("/dev/disk/by-uuid/ABCD-EF01")
				Expect(err).ToNot(HaveOccurred())
				Expect(info.DevicePath).To(Equal("/dev/sda2"))
				Expect(info.MountPoint).To(Equal(""))
				Expect(searcher.SearchMountsCalled).To(Equal(0))
			})
		})

		Context("when canonicalization fails", func() {
			It("returns ProbeNotFoundError", func() {
				runner.AddCmdResult("readlink -f /does/not/exist", fakesys.FakeCmdResult{
					ExitStatus: 1,
					Error:      errors.New("exit status 1"),
				})

				_, err := prober.Probe("/does/not/exist")
				Expect(err).To(Equal(ProbeNotFoundError{Path: "/does/not/exist"}))
			})
		})

		Context("when blkid finds no filesystem", func() {
			It("returns ProbeNotFoundError on exit status 2 with empty stderr", func() {
				stubCanonical("/boot", "/boot")
				runner.AddCmdResult("blkid -p -o export /dev/sda2", fakesys.FakeCmdResult{
					ExitStatus: 2,
					Error:      errors.New("exit status 2"),
				})

				_, err := prober.Probe("/boot")
				Expect(err).To(Equal(ProbeNotFoundError{Path: "/boot"}))
			})
		})

		Context("when blkid fails", func() {
			It("returns ProbeExternalToolError", func() {
				stubCanonical("/boot", "/boot")
				runner.AddCmdResult("blkid -p -o export /dev/sda2", fakesys.FakeCmdResult{
					Stderr:     "blkid: error probing",
					ExitStatus: 4,
					Error:      errors.New("exit status 4"),
				})

				_, err := prober.Probe("/boot")
				var toolErr ProbeExternalToolError
				Expect(errors.As(err, &toolErr)).To(BeTrue())
				Expect(toolErr.Tool).To(Equal("blkid"))
				Expect(toolErr.Path).To(Equal("/boot"))
			})
		})

		Context("when blkid output has no TYPE", func() {
			It("returns ProbeExternalToolError", func() {
				stubCanonical("/boot", "/boot")
				runner.AddCmdResult("blkid -p -o export /dev/sda2", fakesys.FakeCmdResult{Stdout: "DEVNAME=/dev/sda2\n"})

				_, err := prober.Probe("/boot")
				Expect(err).To(BeAssignableToTypeOf(ProbeExternalToolError{}))
				Expect(err.Error()).To(ContainSubstring("no TYPE key"))
			})
		})

		Context("with configured tool paths", func() {
			It("runs blkid from the configured location", func() {
				prober = NewBlkidDeviceProber(runner, searcher, DeviceProberOpts{
					BlkidPath: "/nix/store/util-linux/bin/blkid",
				}, boshlog.NewLogger(boshlog.LevelNone))

				stubCanonical("/boot", "/boot")
				runner.AddCmdResult("/nix/store/util-linux/bin/blkid -p -o export /dev/sda2", fakesys.FakeCmdResult{Stdout: "TYPE=vfat\n"})

				info, err := prober.Probe("/boot")
				Expect(err).ToNot(HaveOccurred())
				Expect(info.FsType).To(Equal(FileSystemVfat))
			})
		})

		It("maps the BIOS boot partition GUID to its role", func() {
			stubCanonical("/dev/sda3", "/dev/sda3")
			runner.AddCmdResult("blkid -p -o export /dev/sda3", fakesys.FakeCmdResult{Stdout: "TYPE=ext4\nPART_ENTRY_TYPE=21686148-6449-6E6F-744E-656564454649\n"})

			info, err := prober.Probe("/dev/sda3")
			Expect(err).ToNot(HaveOccurred())
			Expect(info.PartitionRole).To(Equal(PartitionRoleBIOSBoot))
		})

		It("maps unrecognized filesystem types to FileSystemOther", func() {
			stubCanonical("/dev/sda4", "/dev/sda4")
			runner.AddCmdResult("blkid -p -o export /dev/sda4", fakesys.FakeCmdResult{Stdout: "TYPE=xfs\n"})

			info, err := prober.Probe("/dev/sda4")
			Expect(err).ToNot(HaveOccurred())
			Expect(info.FsType).To(Equal(FileSystemOther))
		})
	})
})
