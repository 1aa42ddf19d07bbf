//go:build windows

package pathid

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/windows"
)

// VerifyAndOpen is the Windows equivalent of the Unix O_NOFOLLOW/openat
// flow: a FILE_ATTRIBUTE_REPARSE_POINT check on the path, made just before
// the open, stands in for O_NOFOLLOW, since Windows has no open-time flag
// that refuses a reparse point outright.
func (p *PathIdentity) VerifyAndOpen() (*os.File, error) {
	if !p.ForNew {
		if isReparsePoint(p.OriginalPath) {
			return nil, newErr(ErrIsSymlink, p.OriginalPath, nil)
		}
		f, err := os.OpenFile(p.OriginalPath, os.O_RDONLY, 0)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, newErr(ErrDeleted, p.OriginalPath, err)
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
	parentIdent, err := statIdentity(parentPath)
	if err != nil {
		return nil, newErr(ErrParentInaccessible, parentPath, err)
	}
	if parentIdent != p.ParentIdentity {
		return nil, newErr(ErrParentChanged, parentPath, nil)
	}
	if isReparsePoint(p.ResolvedPath) {
		return nil, newErr(ErrIsSymlink, p.ResolvedPath, nil)
	}
	f, err := os.OpenFile(p.ResolvedPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, newErr(ErrAlreadyExists, p.ResolvedPath, err)
		}
		return nil, newErr(ErrCreateFailed, p.ResolvedPath, err)
	}
	return f, nil
}

func isReparsePoint(path string) bool {
	attrs, err := windows.GetFileAttributes(windows.StringToUTF16Ptr(path))
	if err != nil {
		return false
	}
	return attrs&windows.FILE_ATTRIBUTE_REPARSE_POINT != 0
}
