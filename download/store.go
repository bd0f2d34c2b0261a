package download

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ccollins476ad/imgfetch/fileutil"
	log "github.com/sirupsen/logrus"
)

// FilesystemError indicates a failure to create, list, read, or write
// something in the destination directory.
type FilesystemError struct {
	Op   string // "mkdir", "list", "stat", "read", or "write"
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}

// Store saves fetched images into a single flat directory. It never
// overwrites or deletes a file.
type Store struct {
	destDir string // constant

	index *digestIndex
}

type StoreOptions struct {
	Jobs    int  // Max files hashed in parallel during a duplicate scan.
	NoCache bool // Rehash every file on every duplicate scan.
}

func NewStore(destDir string, opts StoreOptions) *Store {
	return &Store{
		destDir: destDir,
		index:   newDigestIndex(destDir, opts.Jobs, opts.NoCache),
	}
}

// Dir returns the store's destination directory.
func (s *Store) Dir() string {
	return s.destDir
}

// EnsureDir creates the destination directory and any missing parents. It is
// not an error if the directory already exists.
func (s *Store) EnsureDir() error {
	err := os.MkdirAll(s.destDir, 0755)
	if err != nil {
		return &FilesystemError{Op: "mkdir", Path: s.destDir, Err: err}
	}
	return nil
}

// FindDuplicate returns the name of a file in the destination directory whose
// contents are identical to b. It returns "" if there is no such file. Only
// regular files directly inside the directory, or symlinks to regular files,
// are considered.
func (s *Store) FindDuplicate(b []byte) (string, error) {
	return s.index.find(ComputeDigest(b))
}

// ResolveName returns a name based on filename that no entry in the
// destination directory currently uses.
func (s *Store) ResolveName(filename string) string {
	return fileutil.UniqueName(s.destDir, filename)
}

// SaveFile writes b to a new file with the given name in the destination
// directory and returns the full path of the file. It fails with an error
// wrapping fs.ErrExist if the name is already taken.
func (s *Store) SaveFile(filename string, b []byte) (string, error) {
	destPath := filepath.Join(s.destDir, filename)
	log.Debugf("writing %s (%d bytes)", destPath, len(b))

	f, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", &FilesystemError{Op: "write", Path: destPath, Err: err}
	}

	_, err = f.Write(b)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(destPath)
		return "", &FilesystemError{Op: "write", Path: destPath, Err: err}
	}

	s.index.add(filename, ComputeDigest(b))
	return destPath, nil
}

// SaveUnique saves b under filename, or under the first free variant of it
// (see ResolveName). A name claimed by someone else between resolution and
// creation is skipped over. It returns the name used and the full path.
func (s *Store) SaveUnique(filename string, b []byte) (string, string, error) {
	for {
		name := s.ResolveName(filename)
		path, err := s.SaveFile(name, b)
		if errors.Is(err, fs.ErrExist) {
			log.Debugf("lost race for %s; picking another name", name)
			continue
		}
		if err != nil {
			return "", "", err
		}
		return name, path, nil
	}
}
