package bootenv_test

import (
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	boshlog "github.com/cloudfoundry/bosh-utils/logger"
	boshuuid "github.com/cloudfoundry/bosh-utils/uuid"
	fakeuuid "github.com/cloudfoundry/bosh-utils/uuid/fakes"

	. "github.com/nixfoundry/grub-installer/bootenv"
	fakeenv "github.com/nixfoundry/grub-installer/bootenv/fakes"
)

var _ = Describe("bootTargetResolver", func() {
	var (
		prober   *fakeenv.FakeDeviceProber
		topology *fakeenv.FakeBtrfsTopologyResolver
		resolver BootTargetResolver
	)

	BeforeEach(func() {
		prober = fakeenv.NewFakeDeviceProber()
		topology = fakeenv.NewFakeBtrfsTopologyResolver()
		resolver = NewBootTargetResolver(prober, topology, boshuuid.NewGenerator(), boshlog.NewLogger(boshlog.LevelNone))
	})

	Describe("Resolve", func() {
		Context("with an ext4 root and a vfat boot partition", func() {
			BeforeEach(func() {
				prober.ProbeDeviceInfos["/"] = DeviceInfo{
					DevicePath: "/dev/nvme0n1p2",
					MountPoint: "/",
					FsType:     FileSystemExt4,
					UUID:       "9bb3a2e4-1f6c-49f1-a2a6-ae11f9b8e1c6",
				}
				prober.ProbeDeviceInfos["/boot"] = DeviceInfo{
					DevicePath:    "/dev/nvme0n1p1",
					MountPoint:    "/boot",
					FsType:        FileSystemVfat,
					UUID:          "ABCD-EF01",
					PartitionRole: PartitionRoleESP,
				}
			})

			It("yields a root target before a boot target, one device each", func() {
				targets, err := resolver.Resolve("/boot", "/")
				Expect(err).ToNot(HaveOccurred())
				Expect(targets).To(HaveLen(2))

				Expect(targets[0].Role).To(Equal(TargetRoleRoot))
				Expect(targets[0].Devices).To(Equal([]string{"/dev/nvme0n1p2"}))
				Expect(targets[0].MultiDevice).To(BeFalse())

				Expect(targets[1].Role).To(Equal(TargetRoleBoot))
				Expect(targets[1].Devices).To(Equal([]string{"/dev/nvme0n1p1"}))
				Expect(targets[1].MultiDevice).To(BeFalse())
			})

			It("never consults the btrfs topology resolver", func() {
				_, err := resolver.Resolve("/boot", "/")
				Expect(err).ToNot(HaveOccurred())
				Expect(topology.ResolveTopologyCalled).To(Equal(0))
			})

			It("yields identical targets on repeated runs", func() {
				first, err := resolver.Resolve("/boot", "/")
				Expect(err).ToNot(HaveOccurred())
				second, err := resolver.Resolve("/boot", "/")
				Expect(err).ToNot(HaveOccurred())
				Expect(second).To(Equal(first))
			})
		})

		Context("with boot and root sharing a two-device btrfs volume", func() {
			BeforeEach(func() {
				info := DeviceInfo{
					DevicePath: "/dev/sdb1",
					MountPoint: "/",
					FsType:     FileSystemBtrfs,
				}
				prober.ProbeDeviceInfos["/"] = info
				prober.ProbeDeviceInfos["/boot"] = info

				topology.ResolveTopologyTopologies["/"] = BtrfsVolumeTopology{
					VolumeUUID: "3142b002-0a33-4c36-81fd-129bab9e58e9",
					Devices:    []string{"/dev/sdb1", "/dev/sdc1"},
					SubvolID:   "257",
					SubvolPath: "@root",
				}
			})

			It("collapses them into one combined multi-device target", func() {
				targets, err := resolver.Resolve("/boot", "/")
				Expect(err).ToNot(HaveOccurred())
				Expect(targets).To(HaveLen(1))

				Expect(targets[0].Role).To(Equal(TargetRoleCombined))
				Expect(targets[0].Devices).To(Equal([]string{"/dev/sdb1", "/dev/sdc1"}))
				Expect(targets[0].MultiDevice).To(BeTrue())
			})

			It("covers every member device of the volume", func() {
				targets, err := resolver.Resolve("/boot", "/")
				Expect(err).ToNot(HaveOccurred())
				Expect(targets[0].Devices).To(HaveLen(2))
			})
		})

		Context("with a btrfs root and a separate ext4 boot", func() {
			BeforeEach(func() {
				prober.ProbeDeviceInfos["/"] = DeviceInfo{
					DevicePath: "/dev/sdb1",
					MountPoint: "/",
					FsType:     FileSystemBtrfs,
				}
				prober.ProbeDeviceInfos["/boot"] = DeviceInfo{
					DevicePath: "/dev/sda1",
					MountPoint: "/boot",
					FsType:     FileSystemExt4,
				}
				topology.ResolveTopologyTopologies["/"] = BtrfsVolumeTopology{
					VolumeUUID: "3142b002-0a33-4c36-81fd-129bab9e58e9",
					Devices:    []string{"/dev/sdb1", "/dev/sdc1"},
				}
			})

			It("orders the root volume devices before the boot device", func() {
				targets, err := resolver.Resolve("/boot", "/")
				Expect(err).ToNot(HaveOccurred())
				Expect(targets).To(HaveLen(2))

				Expect(targets[0].Role).To(Equal(TargetRoleRoot))
				Expect(targets[0].Devices).To(Equal([]string{"/dev/sdb1", "/dev/sdc1"}))
				Expect(targets[0].MultiDevice).To(BeTrue())

				Expect(targets[1].Role).To(Equal(TargetRoleBoot))
				Expect(targets[1].Devices).To(Equal([]string{"/dev/sda1"}))
			})
		})

		Context("with boot and root on the same plain device", func() {
			It("yields one combined target", func() {
				info := DeviceInfo{DevicePath: "/dev/vda1", MountPoint: "/", FsType: FileSystemExt4}
				prober.ProbeDeviceInfos["/"] = info
				prober.ProbeDeviceInfos["/boot"] = info

				targets, err := resolver.Resolve("/boot", "/")
				Expect(err).ToNot(HaveOccurred())
				Expect(targets).To(HaveLen(1))
				Expect(targets[0].Role).To(Equal(TargetRoleCombined))
				Expect(targets[0].Devices).To(Equal([]string{"/dev/vda1"}))
			})
		})

		Context("with partially overlapping device sets", func() {
			It("treats them as disjoint and keeps both targets", func() {
				prober.ProbeDeviceInfos["/"] = DeviceInfo{
					DevicePath: "/dev/sdb1",
					MountPoint: "/",
					FsType:     FileSystemBtrfs,
				}
				prober.ProbeDeviceInfos["/boot"] = DeviceInfo{
					DevicePath: "/dev/sdb1",
					MountPoint: "/boot",
					FsType:     FileSystemExt4,
				}
				topology.ResolveTopologyTopologies["/"] = BtrfsVolumeTopology{
					Devices: []string{"/dev/sdb1", "/dev/sdc1"},
				}

				targets, err := resolver.Resolve("/boot", "/")
				Expect(err).ToNot(HaveOccurred())
				Expect(targets).To(HaveLen(2))
				Expect(targets[0].Devices).To(Equal([]string{"/dev/sdb1", "/dev/sdc1"}))
				Expect(targets[1].Devices).To(Equal([]string{"/dev/sdb1"}))
			})
		})

		Context("with nothing installable behind either mount", func() {
			It("fails with NothingToInstallError", func() {
				prober.ProbeDeviceInfos["/"] = DeviceInfo{DevicePath: "tmpfs", MountPoint: "/"}
				prober.ProbeDeviceInfos["/boot"] = DeviceInfo{DevicePath: "overlay", MountPoint: "/boot"}

				_, err := resolver.Resolve("/boot", "/")
				Expect(err).To(Equal(NothingToInstallError{}))
			})
		})

		Context("with a RAM-backed root but a real boot device", func() {
			It("installs only to the boot device", func() {
				prober.ProbeDeviceInfos["/"] = DeviceInfo{DevicePath: "overlay", MountPoint: "/"}
				prober.ProbeDeviceInfos["/boot"] = DeviceInfo{
					DevicePath: "/dev/sda1",
					MountPoint: "/boot",
					FsType:     FileSystemVfat,
				}

				targets, err := resolver.Resolve("/boot", "/")
				Expect(err).ToNot(HaveOccurred())
				Expect(targets).To(HaveLen(1))
				Expect(targets[0].Role).To(Equal(TargetRoleBoot))
			})
		})

		Context("when probing fails", func() {
			It("propagates the error naming the root mount point", func() {
				prober.ProbeErrs["/"] = ProbeNotFoundError{Path: "/"}

				_, err := resolver.Resolve("/boot", "/")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("Resolving devices backing root '/'"))
				Expect(err.Error()).To(ContainSubstring("No filesystem found backing '/'"))
			})

			It("propagates the error naming the boot mount point", func() {
				prober.ProbeDeviceInfos["/"] = DeviceInfo{DevicePath: "/dev/sda1", MountPoint: "/", FsType: FileSystemExt4}
				prober.ProbeErrs["/boot"] = ProbeExternalToolError{Path: "/boot", Tool: "blkid", Err: errors.New("exit status 4")}

				_, err := resolver.Resolve("/boot", "/")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("Resolving devices backing boot '/boot'"))
			})
		})

		Context("when topology resolution fails", func() {
			It("propagates the failure", func() {
				prober.ProbeDeviceInfos["/"] = DeviceInfo{DevicePath: "/dev/sdb1", MountPoint: "/", FsType: FileSystemBtrfs}
				topology.ResolveTopologyErrs["/"] = NoMemberDevicesError{MountPoint: "/"}

				_, err := resolver.Resolve("/boot", "/")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("reports no member devices"))
			})
		})

		Context("when generating the resolution id fails", func() {
			It("returns the wrapped error", func() {
				resolver = NewBootTargetResolver(prober, topology, &fakeuuid.FakeGenerator{GenerateError: errors.New("fake-uuid-error")}, boshlog.NewLogger(boshlog.LevelNone))

				_, err := resolver.Resolve("/boot", "/")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("Generating resolution id"))
			})
		})
	})
})
