// Package source defines the upstream STM32Cube repositories the packager
// pulls from and the paths derived from them.
package source
