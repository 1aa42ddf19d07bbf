//go:build windows

package pathid

import (
	"path/filepath"
	"syscall"
	"unsafe"
)

const driveRemote = 4 // DRIVE_REMOTE, per GetDriveType

func onNetworkFilesystem(path string) bool {
	root := filepath.VolumeName(path) + `\`
	p, err := syscall.UTF16PtrFromString(root)
	if err != nil {
		return false
	}
	kernel32 := syscall.NewLazyDLL("kernel32.dll")
	getDriveType := kernel32.NewProc("GetDriveTypeW")
	ret, _, _ := getDriveType.Call(uintptr(unsafe.Pointer(p)))
	return ret == driveRemote
}
