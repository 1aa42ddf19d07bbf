//go:build windows

package pathid

import (
	"os"

	"github.com/Microsoft/go-winio"
)

func statIdentity(path string) (nativeIdentity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nativeIdentity{}, err
	}
	defer f.Close()
	return fstatIdentity(f)
}

func fstatIdentity(f *os.File) (nativeIdentity, error) {
	info, err := winio.GetFileID(f)
	if err != nil {
		return nativeIdentity{}, err
	}
	return nativeIdentity{Device: info.VolumeSerialNumber, Inode: info.FileID}, nil
}
