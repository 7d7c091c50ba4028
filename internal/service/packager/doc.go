// Package packager assembles the framework-stm32cube PlatformIO package.
//
// Run loads the configuration and drives the pipeline: update the working
// copies, extract the allow-listed parts of every source into the package
// root, write the PlatformIO metadata, report the upstream versions and
// optionally invoke the external packer. Every stage is best-effort: a
// failing source or step is logged and the pipeline moves on, so rerunning
// the tool is the recovery path.
package packager
