//go:build unix

package pathid

import (
	"encoding/binary"
	"os"
	"syscall"
)

func inoBytes(ino uint64) [16]byte {
	var b [16]byte
	binary.LittleEndian.PutUint64(b[:8], ino)
	return b
}

func statIdentity(path string) (nativeIdentity, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nativeIdentity{}, err
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return nativeIdentity{}, &Error{Kind: ErrStatFailed, Path: path, Err: syscall.ENOTSUP}
	}
	return nativeIdentity{Device: uint64(st.Dev), Inode: inoBytes(uint64(st.Ino))}, nil
}

func fstatIdentity(f *os.File) (nativeIdentity, error) {
	fi, err := f.Stat()
	if err != nil {
		return nativeIdentity{}, err
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return nativeIdentity{}, &Error{Kind: ErrStatFailed, Path: f.Name(), Err: syscall.ENOTSUP}
	}
	return nativeIdentity{Device: uint64(st.Dev), Inode: inoBytes(uint64(st.Ino))}, nil
}
