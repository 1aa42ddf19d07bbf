//go:build linux

package pathid

import (
	"bufio"
	"os"
	"strings"
)

// networkFsTypes are the mount-table filesystem types treated as networked
// for the purposes of spec §4.1's conservative inode-stability warning.
var networkFsTypes = map[string]bool{
	"nfs":       true,
	"nfs4":      true,
	"cifs":      true,
	"smb":       true,
	"smb2":      true,
	"afs":       true,
	"ceph":      true,
	"glusterfs": true,
	"9p":        true,
}

// onNetworkFilesystem consults /proc/mounts for the longest matching mount
// point under path and reports whether its filesystem type is a known
// network filesystem.
func onNetworkFilesystem(path string) bool {
	f, err := os.Open("/proc/mounts")
	if err != nil {
		return false
	}
	defer f.Close()

	bestLen := -1
	bestNet := false

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		mountPoint, fsType := fields[1], fields[2]
		if !strings.HasPrefix(path, mountPoint) {
			continue
		}
		if len(mountPoint) > bestLen {
			bestLen = len(mountPoint)
			bestNet = networkFsTypes[strings.ToLower(fsType)]
		}
	}
	return bestNet
}
