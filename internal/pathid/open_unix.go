//go:build unix

package pathid

import (
	"os"
	"path/filepath"
	"syscall"
)

// VerifyAndOpen atomically re-verifies and opens the path this identity was
// captured for. For an existing-file identity, it opens the caller-supplied
// original path (not the pre-canonicalized one) with O_NOFOLLOW so a symlink
// swapped in after Capture is rejected, then fstat-compares identity. For a
// new-file identity, it opens the parent with O_DIRECTORY, verifies the
// parent's identity, then creates the child with O_CREAT|O_EXCL|O_NOFOLLOW.
func (p *PathIdentity) VerifyAndOpen() (*os.File, error) {
	if !p.ForNew {
		f, err := os.OpenFile(p.OriginalPath, os.O_RDONLY|syscall.O_NOFOLLOW, 0)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, newErr(ErrDeleted, p.OriginalPath, err)
			}
			if isSymlinkErr(err) {
				return nil, newErr(ErrIsSymlink, p.OriginalPath, err)
			}
			return nil, newErr(ErrOpenFailed, p.OriginalPath, err)
		}
		ident, err := fstatIdentity(f)
		if err != nil {
			f.Close()
			return nil, newErr(ErrStatFailed, p.OriginalPath, err)
		}
		if ident != p.Identity {
			f.Close()
			return nil, newErr(ErrIdentityChanged, p.OriginalPath, nil)
		}
		return f, nil
	}

	parentPath := filepath.Dir(p.ResolvedPath)
	parentFile, err := os.OpenFile(parentPath, os.O_RDONLY|syscall.O_DIRECTORY|syscall.O_NOFOLLOW, 0)
	if err != nil {
		return nil, newErr(ErrParentInaccessible, parentPath, err)
	}
	defer parentFile.Close()

	parentIdent, err := fstatIdentity(parentFile)
	if err != nil {
		return nil, newErr(ErrParentInaccessible, parentPath, err)
	}
	if parentIdent != p.ParentIdentity {
		return nil, newErr(ErrParentChanged, parentPath, nil)
	}

	childName := filepath.Base(p.ResolvedPath)
	fd, err := syscall.Openat(int(parentFile.Fd()), childName,
		syscall.O_CREAT|syscall.O_EXCL|syscall.O_NOFOLLOW|syscall.O_RDWR, 0o644)
	if err != nil {
		if err == syscall.EEXIST {
			return nil, newErr(ErrAlreadyExists, p.ResolvedPath, err)
		}
		if isSymlinkErr(err) {
			return nil, newErr(ErrIsSymlink, p.ResolvedPath, err)
		}
		return nil, newErr(ErrCreateFailed, p.ResolvedPath, err)
	}
	return os.NewFile(uintptr(fd), p.ResolvedPath), nil
}

func isSymlinkErr(err error) bool {
	return err == syscall.ELOOP
}
