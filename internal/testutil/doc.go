// Package testutil builds throwaway git repositories laid out like the
// STM32Cube upstreams for package and integration tests.
package testutil
