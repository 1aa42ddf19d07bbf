package protectedfiles

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mfateev/approvalgate/internal/gatelog"
	"github.com/mfateev/approvalgate/internal/pathid"
)

// RefreshInterval is how stale the inode cache may get before a query
// triggers a lazy rebuild (spec §4.3: "30 s").
const RefreshInterval = 30 * time.Second

// maxParentWalk is how many parent directories above the working directory
// are scanned for protected-file candidates, in addition to the
// filesystem root.
const maxParentWalk = 3

type inodeKey struct {
	device uint64
	inode  [16]byte
}

// Cache is the process-wide protected-file store: the fixed pattern set,
// plus a lazily-refreshed inode cache that catches protected files
// reachable through a path the pattern set alone wouldn't recognize.
//
// Maps to: internal/execsession.Store's mutex-guarded-map-with-lifecycle
// idiom, adapted from session handles to protected-inode records.
type Cache struct {
	mu          sync.Mutex
	inodes      map[inodeKey]bool
	lastRefresh time.Time
	workDir     func() (string, error)
}

// New creates an empty Cache. The inode set is populated on first query or
// explicit ForceRefresh.
func New() *Cache {
	return &Cache{
		inodes:  make(map[inodeKey]bool),
		workDir: os.Getwd,
	}
}

// IsProtected implements spec §4.3's is_protected query: basename exact or
// prefix match, full-path glob match, or inode-cache hit. On normalization
// failure it falls back to a basename-only check (conservative
// over-protection, never under-protection).
func (c *Cache) IsProtected(path string) bool {
	c.ensureFresh()

	base := normalizeBasename(filepath.Base(path))
	if matchesBasename(base) {
		return true
	}

	normalized, err := normalizePath(path)
	if err != nil {
		gatelog.Debug("protectedfiles: normalize failed, basename-only fallback", map[string]any{"path": path, "err": err.Error()})
		return false
	}
	if matchesFullPathGlob(normalized) {
		return true
	}

	ident, err := statInode(path)
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inodes[ident]
}

// ForceRefresh rebuilds the inode cache unconditionally. spec §4.3 requires
// this to run immediately before processing any batch of tool calls, so
// files created mid-session are protected even before the refresh interval
// next elapses.
func (c *Cache) ForceRefresh() {
	c.refresh()
}

func (c *Cache) ensureFresh() {
	c.mu.Lock()
	stale := time.Since(c.lastRefresh) > RefreshInterval
	c.mu.Unlock()
	if stale {
		c.refresh()
	}
}

func (c *Cache) refresh() {
	dir, err := c.workDir()
	if err != nil {
		gatelog.Debug("protectedfiles: refresh could not get cwd", map[string]any{"err": err.Error()})
		return
	}

	candidates := make(map[inodeKey]bool)
	walkDir := dir
	for i := 0; i <= maxParentWalk; i++ {
		c.scanDir(walkDir, candidates)
		parent := filepath.Dir(walkDir)
		if parent == walkDir {
			break
		}
		walkDir = parent
	}
	c.scanDir(filepath.VolumeName(dir)+string(filepath.Separator), candidates)

	c.mu.Lock()
	c.inodes = candidates
	c.lastRefresh = time.Now()
	c.mu.Unlock()
}

func (c *Cache) scanDir(dir string, into map[inodeKey]bool) {
	for name := range exactBasenames {
		tryCandidate(dir, name, into)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		base := normalizeBasename(e.Name())
		if matchesBasename(base) {
			tryCandidate(dir, e.Name(), into)
		}
	}
}

func tryCandidate(dir, name string, into map[inodeKey]bool) {
	full := filepath.Join(dir, name)
	ident, err := statInode(full)
	if err != nil {
		return
	}
	into[ident] = true
}

func statInode(path string) (inodeKey, error) {
	id, err := pathid.Capture(path)
	if err != nil {
		return inodeKey{}, err
	}
	if id.ForNew {
		return inodeKey{}, os.ErrNotExist
	}
	return inodeKey{device: id.Identity.Device, inode: id.Identity.Inode}, nil
}
