package grubcfg

import (
	"fmt"
	"os"
	gopath "path"
	"sort"
	"strings"

	bosherr "github.com/cloudfoundry/bosh-utils/errors"
)

func (b *Builder) appendAppearance() error {
	err := b.appendFont()
	if err != nil {
		return err
	}

	err = b.appendSplash()
	if err != nil {
		return err
	}

	err = b.appendTheme()
	if err != nil {
		return err
	}

	if b.doc.ExtraConfig != "" {
		b.out.WriteString(b.doc.ExtraConfig + "\n\n")
	}

	return nil
}

func (b *Builder) appendFont() error {
	if b.doc.Font == "" {
		return nil
	}

	err := b.copyFile(b.doc.Font, b.dirProvider.ConvertedFontPath())
	if err != nil {
		return err
	}

	fmt.Fprintf(&b.out, `insmod font
if loadfont "%s"/converted-font.pf2; then
  insmod gfxterm
  if [ "${grub_platform}" = "efi" ]; then
    set gfxmode=%s
    set gfxpayload=%s
  else
    set gfxmode=%s
    set gfxpayload=%s
  fi
  terminal_output gfxterm
fi
`,
		b.bootSearch.Path,
		b.doc.GfxmodeEfi, b.doc.GfxpayloadEfi,
		b.doc.GfxmodeBios, b.doc.GfxpayloadBios,
	)

	return nil
}

func (b *Builder) appendSplash() error {
	if b.doc.SplashImage == "" {
		return nil
	}

	ext := strings.TrimPrefix(gopath.Ext(b.doc.SplashImage), ".")
	if ext == "" {
		return bosherr.Errorf("Splash image '%s' has no extension to pick a GRUB image module by", b.doc.SplashImage)
	}
	if ext == "jpg" {
		ext = "jpeg"
	}
	target := "background." + ext

	if b.doc.BackgroundColor != "" {
		fmt.Fprintf(&b.out, "background_color '%s'\n", b.doc.BackgroundColor)
	}

	err := b.copyFile(b.doc.SplashImage, gopath.Join(b.dirProvider.BootDir(), target))
	if err != nil {
		return err
	}

	fmt.Fprintf(&b.out, `insmod %s
if background_image --mode '%s' "%s"/%s; then
  set color_normal=white/black
  set color_highlight=black/white
else
  set menu_color_normal=cyan/blue
  set menu_color_highlight=white/blue
fi
`,
		ext, b.doc.SplashMode, b.bootSearch.Path, target,
	)

	return nil
}

func (b *Builder) appendTheme() error {
	themeDir := b.dirProvider.ThemeDir()

	if !b.dryRun && b.fs.FileExists(themeDir) {
		err := b.fs.RemoveAll(themeDir)
		if err != nil {
			return bosherr.WrapErrorf(err, "Cleaning up the theme folder '%s'", themeDir)
		}
	}

	if b.doc.Theme == "" {
		return nil
	}

	var insmods, fonts []string

	err := b.fs.Walk(b.doc.Theme, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == b.doc.Theme {
			return nil
		}

		relative := strings.TrimPrefix(path, b.doc.Theme+"/")

		if info.IsDir() {
			if b.dryRun {
				return nil
			}
			return b.fs.MkdirAll(gopath.Join(themeDir, relative), 0755)
		}

		switch strings.TrimPrefix(gopath.Ext(path), ".") {
		case "png":
			insmods = append(insmods, "png")
		case "jpeg", "jpg":
			insmods = append(insmods, "jpeg")
		case "pf2":
			fonts = append(fonts, relative)
		}

		return b.copyFile(path, gopath.Join(themeDir, relative))
	})
	if err != nil {
		return bosherr.WrapErrorf(err, "Copying theme '%s' to '%s'", b.doc.Theme, themeDir)
	}

	for _, module := range uniqueSorted(insmods) {
		fmt.Fprintf(&b.out, "insmod %s\n", module)
	}

	fmt.Fprintf(&b.out, `# Sets theme.
set theme="%s"/theme/theme.txt
export theme
# Load theme fonts, if any
`, b.bootSearch.Path)

	sort.Strings(fonts)
	for _, font := range fonts {
		fmt.Fprintf(&b.out, "loadfont \"%s\"/theme/%s\n", b.bootSearch.Path, font)
	}

	return nil
}

func uniqueSorted(values []string) []string {
	seen := map[string]struct{}{}
	var unique []string
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		unique = append(unique, value)
	}
	sort.Strings(unique)

	return unique
}
