package settings

import (
	"encoding/json"
	"strings"

	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	boshsys "github.com/cloudfoundry/bosh-utils/system"
)

// LoadDocument reads and validates an install document. Password files
// referenced by users are read here so a broken credential fails the run
// before anything touches the boot partition.
func LoadDocument(fs boshsys.FileSystem, path string) (Document, error) {
	var document Document

	contents, err := fs.ReadFile(path)
	if err != nil {
		return document, bosherr.WrapError(err, "Reading document")
	}

	err = json.Unmarshal(contents, &document)
	if err != nil {
		return document, bosherr.WrapError(err, "Parsing document")
	}

	document.applyDefaults()

	err = document.validate()
	if err != nil {
		return document, err
	}

	document.GrubUsers, err = resolveUsers(fs, document.Users)
	if err != nil {
		return document, err
	}

	return document, nil
}

func resolveUsers(fs boshsys.FileSystem, users UserSlice) ([]GrubUser, error) {
	resolved := make([]GrubUser, 0, len(users))
	for _, user := range users {
		opts := user.Options

		hashed := opts.HashedPassword
		if opts.HashedPasswordFile != "" {
			contents, err := fs.ReadFileString(opts.HashedPasswordFile)
			if err != nil {
				return nil, bosherr.WrapErrorf(err, "Reading hashed password file for GRUB user '%s'", user.Name)
			}
			hashed = strings.TrimSpace(contents)
		}

		if hashed != "" {
			if !strings.HasPrefix(hashed, "grub.pbkdf2.") {
				return nil, bosherr.Errorf("Password hash for GRUB user '%s' is not valid", user.Name)
			}
			resolved = append(resolved, GrubUser{Name: user.Name, Password: hashed, Hashed: true})
			continue
		}

		plain := opts.Password
		if opts.PasswordFile != "" {
			contents, err := fs.ReadFileString(opts.PasswordFile)
			if err != nil {
				return nil, bosherr.WrapErrorf(err, "Reading password file for GRUB user '%s'", user.Name)
			}
			plain = strings.TrimSpace(contents)
		}

		if plain == "" {
			return nil, bosherr.Errorf("GRUB user '%s' has no password", user.Name)
		}

		resolved = append(resolved, GrubUser{Name: user.Name, Password: plain})
	}

	return resolved, nil
}
