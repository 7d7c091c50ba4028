// Package versions persists the version report of the last packager run
// so the next run can tell which upstream families moved.
package versions
