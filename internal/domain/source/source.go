package source

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Source is a named upstream repository providing vendor SDK files.
type Source struct {
	// Name is the short family name (f0, h7, mp1); it is also the target folder name.
	Name string `yaml:"name"`
	// URL is the git origin of the repository.
	URL string `yaml:"url"`
}

// defaultOrigin is the organisation hosting the STM32Cube repositories.
const defaultOrigin = "https://github.com/STMicroelectronics/"

// defaultFamilies lists the families shipped in the package, in report order.
//
//nolint:gochecknoglobals // Static table.
var defaultFamilies = []string{
	"f0", "f1", "f2", "f3", "f4", "f7",
	"l0", "l1", "l4", "l5",
	"g0", "g4",
	"h7", "wb", "mp1",
}

// Defaults returns the built-in source table.
func Defaults() []Source {
	sources := make([]Source, 0, len(defaultFamilies))
	for _, name := range defaultFamilies {
		sources = append(sources, Source{
			Name: name,
			URL:  defaultOrigin + "STM32Cube" + strings.ToUpper(name) + ".git",
		})
	}

	return sources
}

// Family returns the upper-cased family name, e.g. "F4".
func (s Source) Family() string {
	return strings.ToUpper(s.Name)
}

// Label returns the display name, e.g. "STM32F4".
func (s Source) Label() string {
	return "STM32" + s.Family()
}

// CheckoutDir returns the working copy folder name git would pick for the URL:
// the last path element without a ".git" suffix.
func (s Source) CheckoutDir() string {
	raw := strings.TrimRight(s.URL, "/")

	if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Path != "" {
		raw = u.Path
	} else if i := strings.LastIndex(raw, ":"); i >= 0 && !strings.Contains(raw[:i], "/") {
		// scp-like syntax: git@host:org/repo.git
		raw = raw[i+1:]
	}

	base := path.Base(filepath.ToSlash(raw))

	return strings.TrimSuffix(base, ".git")
}

// HALDriverDir is the relative directory holding the HAL driver headers.
func (s Source) HALDriverDir() string {
	return filepath.Join("Drivers", "STM32"+s.Family()+"xx_HAL_Driver", "Inc")
}

// HALConfTemplate is the relative path of the HAL configuration template header.
// Upstream header names use the lower-case family.
func (s Source) HALConfTemplate() string {
	return filepath.Join(s.HALDriverDir(), "stm32"+strings.ToLower(s.Name)+"xx_hal_conf_template.h")
}

// HALConf is the relative path the template is duplicated to in the package.
func (s Source) HALConf() string {
	return filepath.Join(s.HALDriverDir(), "stm32"+strings.ToLower(s.Name)+"xx_hal_conf.h")
}
