package approvalchan

import (
	"encoding/hex"

	"github.com/mfateev/approvalgate/internal/pathid"
)

// PathIdentitySnapshot is the wire form of a pathid.PathIdentity. It is
// diagnostic/log-correlation data for the child, not a reconstructable
// identity: pathid.PathIdentity's native device/inode pair is an
// unexported type by design (callers are meant to Capture their own), so
// the snapshot only exposes its inode/file-index bytes hex-encoded for
// display (the device part is not included), never round-trips it back into
// a *pathid.PathIdentity.
type PathIdentitySnapshot struct {
	OriginalPath string `json:"original_path"`
	ResolvedPath string `json:"resolved_path"`
	ForNew       bool   `json:"for_new"`
	OnNetworkFs  bool   `json:"on_network_fs"`
	IdentityHex  string `json:"identity_hex"`
}

// SnapshotPathIdentity builds the wire form of a captured identity for
// inclusion in a ResponseMessage.
func SnapshotPathIdentity(pi *pathid.PathIdentity) *PathIdentitySnapshot {
	if pi == nil {
		return nil
	}
	return &PathIdentitySnapshot{
		OriginalPath: pi.OriginalPath,
		ResolvedPath: pi.ResolvedPath,
		ForNew:       pi.ForNew,
		OnNetworkFs:  pi.OnNetworkFs,
		IdentityHex:  hex.EncodeToString(pi.Identity.Inode[:]),
	}
}
