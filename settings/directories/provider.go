package directories

import "path/filepath"

// Provider knows where everything under the boot path lives.
type Provider struct {
	bootDir string
}

func NewProvider(bootDir string) Provider {
	return Provider{bootDir: bootDir}
}

func (p Provider) BootDir() string {
	return p.bootDir
}

func (p Provider) GrubDir() string {
	return filepath.Join(p.bootDir, "grub")
}

func (p Provider) GrubConfigPath() string {
	return filepath.Join(p.GrubDir(), "grub.cfg")
}

func (p Provider) GrubConfigTmpPath() string {
	return p.GrubConfigPath() + ".tmp"
}

func (p Provider) StateFilePath() string {
	return filepath.Join(p.GrubDir(), "state")
}

func (p Provider) KernelsDir() string {
	return filepath.Join(p.bootDir, "kernels")
}

func (p Provider) ConvertedFontPath() string {
	return filepath.Join(p.bootDir, "converted-font.pf2")
}

func (p Provider) ThemeDir() string {
	return filepath.Join(p.bootDir, "theme")
}
