//go:build !linux && !windows

package pathid

// onNetworkFilesystem is a conservative false on platforms without a cheap
// way to inspect mount types (spec §4.1: "a conservative false on other
// platforms").
func onNetworkFilesystem(path string) bool {
	return false
}
