package bootenv

import (
	"strings"

	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	boshlog "github.com/cloudfoundry/bosh-utils/logger"
	boshsys "github.com/cloudfoundry/bosh-utils/system"
)

const procMountInfoPath = "/proc/self/mountinfo"

type procMountsSearcher struct {
	fs     boshsys.FileSystem
	logger boshlog.Logger
	logTag string
}

func NewProcMountsSearcher(fs boshsys.FileSystem, logger boshlog.Logger) MountsSearcher {
	return procMountsSearcher{
		fs:     fs,
		logger: logger,
		logTag: "procMountsSearcher",
	}
}

func (s procMountsSearcher) SearchMounts() ([]Mount, error) {
	mountInfo, err := s.fs.ReadFileString(procMountInfoPath)
	if err != nil {
		return []Mount{}, bosherr.WrapErrorf(err, "Reading %s", procMountInfoPath)
	}

	mountEntries := strings.Split(mountInfo, "\n")
	mounts := make([]Mount, 0, len(mountEntries))
	for _, mountEntry := range mountEntries {
		if mountEntry == "" {
			continue
		}

		mount, ok := s.parseEntry(mountEntry)
		if !ok {
			s.logger.Debug(s.logTag, "Skipping malformed mountinfo entry '%s'", mountEntry)
			continue
		}

		mounts = append(mounts, mount)
	}

	return mounts, nil
}

// parseEntry splits one mountinfo row. The variable-length optional fields
// end at a lone '-', followed by fstype, mount source and super options.
func (s procMountsSearcher) parseEntry(entry string) (Mount, bool) {
	fields := strings.Fields(entry)
	if len(fields) < 10 {
		return Mount{}, false
	}

	sep := -1
	for i := 6; i < len(fields); i++ {
		if fields[i] == "-" {
			sep = i
			break
		}
	}
	if sep == -1 || len(fields) < sep+4 {
		return Mount{}, false
	}

	return Mount{
		PartitionPath: fields[sep+2],
		MountPoint:    fields[4],
		FsType:        fields[sep+1],
		MountOptions:  strings.Split(fields[5], ","),
		SuperOptions:  strings.Split(fields[sep+3], ","),
	}, true
}
