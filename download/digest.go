package download

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Digest is the md5 of a file's contents, hex encoded. Two byte sequences
// with the same digest are considered identical.
type Digest string

func ComputeDigest(b []byte) Digest {
	sum := md5.Sum(b)
	return Digest(hex.EncodeToString(sum[:]))
}

// digestEntry is a cached digest along with the file attributes it was
// computed from.
type digestEntry struct {
	size    int64
	modTime time.Time
	digest  Digest
}

func (de *digestEntry) matches(info os.FileInfo) bool {
	return de.size == info.Size() && de.modTime.Equal(info.ModTime())
}

// digestIndex remembers the digest of every regular file in a directory,
// following symlinks. It is revalidated against a fresh directory listing on
// every lookup; only files that are new or whose size or mtime changed get
// reread.
type digestIndex struct {
	dir     string
	jobs    int  // Max files hashed in parallel.
	noCache bool // Rehash every file on every refresh.

	mtx     sync.Mutex // Protects entries while hashing in parallel.
	entries map[string]*digestEntry
}

func newDigestIndex(dir string, jobs int, noCache bool) *digestIndex {
	if jobs < 1 {
		jobs = 1
	}
	return &digestIndex{
		dir:     dir,
		jobs:    jobs,
		noCache: noCache,
		entries: map[string]*digestEntry{},
	}
}

// refresh brings the index in line with the directory's current contents.
func (di *digestIndex) refresh() error {
	des, err := os.ReadDir(di.dir)
	if err != nil {
		return &FilesystemError{Op: "list", Path: di.dir, Err: err}
	}

	present := make(map[string]struct{}, len(des))

	g := &errgroup.Group{}
	g.SetLimit(di.jobs)

	for _, de := range des {
		name := de.Name()
		path := filepath.Join(di.dir, name)

		var info os.FileInfo
		switch {
		case de.Type().IsRegular():
			info, err = de.Info()
		case de.Type()&os.ModeSymlink != 0:
			info, err = os.Stat(path)
		default:
			continue
		}
		if err != nil {
			// Removed between listing and stat, or a dangling link.
			if os.IsNotExist(err) {
				continue
			}
			g.Wait()
			return &FilesystemError{Op: "stat", Path: path, Err: err}
		}
		if !info.Mode().IsRegular() {
			continue
		}

		present[name] = struct{}{}

		di.mtx.Lock()
		cached := di.entries[name]
		di.mtx.Unlock()

		if !di.noCache && cached != nil && cached.matches(info) {
			continue
		}

		g.Go(func() error {
			b, err := os.ReadFile(path)
			if err != nil {
				return &FilesystemError{Op: "read", Path: path, Err: err}
			}

			log.Debugf("hashed %s", path)

			di.mtx.Lock()
			defer di.mtx.Unlock()
			di.entries[name] = &digestEntry{
				size:    info.Size(),
				modTime: info.ModTime(),
				digest:  ComputeDigest(b),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for name := range di.entries {
		if _, ok := present[name]; !ok {
			delete(di.entries, name)
		}
	}

	return nil
}

// find returns the name of a file whose digest equals d. It returns "" if
// there is none.
func (di *digestIndex) find(d Digest) (string, error) {
	if err := di.refresh(); err != nil {
		return "", err
	}

	for name, e := range di.entries {
		if e.digest == d {
			return name, nil
		}
	}
	return "", nil
}

// add records a file that was just written so that the next refresh does not
// need to reread it.
func (di *digestIndex) add(name string, d Digest) {
	info, err := os.Stat(filepath.Join(di.dir, name))
	if err != nil {
		return
	}

	di.mtx.Lock()
	defer di.mtx.Unlock()
	di.entries[name] = &digestEntry{
		size:    info.Size(),
		modTime: info.ModTime(),
		digest:  d,
	}
}
