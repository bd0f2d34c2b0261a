package download

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, b, 0644))
}

func TestComputeDigest(t *testing.T) {
	// md5("")
	assert.Equal(t, Digest("d41d8cd98f00b204e9800998ecf8427e"), ComputeDigest(nil))
	assert.Equal(t, ComputeDigest([]byte("abc")), ComputeDigest([]byte("abc")))
	assert.NotEqual(t, ComputeDigest([]byte("abc")), ComputeDigest([]byte("abd")))
}

func TestStore_EnsureDirIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	s := NewStore(dir, StoreOptions{})

	require.NoError(t, s.EnsureDir())
	require.NoError(t, s.EnsureDir())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestStore_EnsureDirFailure(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "file")
	writeFile(t, blocker, []byte("x"))

	s := NewStore(filepath.Join(blocker, "sub"), StoreOptions{})
	err := s.EnsureDir()
	require.Error(t, err)

	var fe *FilesystemError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "mkdir", fe.Op)
}

func TestStore_FindDuplicate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "one.jpg"), []byte("first image"))
	writeFile(t, filepath.Join(dir, "two.png"), []byte("second image"))

	s := NewStore(dir, StoreOptions{})

	dup, err := s.FindDuplicate([]byte("second image"))
	require.NoError(t, err)
	assert.Equal(t, "two.png", dup)

	dup, err = s.FindDuplicate([]byte("third image"))
	require.NoError(t, err)
	assert.Equal(t, "", dup)
}

func TestStore_FindDuplicateIgnoresSubdirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0755))
	writeFile(t, filepath.Join(sub, "deep.jpg"), []byte("nested image"))

	s := NewStore(dir, StoreOptions{})
	dup, err := s.FindDuplicate([]byte("nested image"))
	require.NoError(t, err)
	assert.Equal(t, "", dup)
}

func TestStore_FindDuplicateFollowsSymlinks(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()

	target := filepath.Join(outside, "original.jpg")
	writeFile(t, target, []byte("linked image"))
	require.NoError(t, os.Symlink(target, filepath.Join(dir, "link.jpg")))

	// Dangling links and links to directories are ignored.
	require.NoError(t, os.Symlink(filepath.Join(outside, "gone.jpg"), filepath.Join(dir, "dangling.jpg")))
	require.NoError(t, os.Symlink(outside, filepath.Join(dir, "dirlink")))

	s := NewStore(dir, StoreOptions{})
	dup, err := s.FindDuplicate([]byte("linked image"))
	require.NoError(t, err)
	assert.Equal(t, "link.jpg", dup)

	dup, err = s.FindDuplicate([]byte("something else"))
	require.NoError(t, err)
	assert.Equal(t, "", dup)
}

func TestStore_FindDuplicateMissingDir(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nope"), StoreOptions{})
	_, err := s.FindDuplicate([]byte("x"))

	var fe *FilesystemError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "list", fe.Op)
}

func TestStore_FindDuplicateSeesExternalChanges(t *testing.T) {
	for _, noCache := range []bool{false, true} {
		dir := t.TempDir()
		path := filepath.Join(dir, "a.jpg")
		writeFile(t, path, []byte("old content"))

		s := NewStore(dir, StoreOptions{NoCache: noCache})

		dup, err := s.FindDuplicate([]byte("old content"))
		require.NoError(t, err)
		assert.Equal(t, "a.jpg", dup, "noCache=%v", noCache)

		// Rewrite with different size and a different mtime.
		writeFile(t, path, []byte("new, longer content"))
		later := time.Now().Add(time.Hour)
		require.NoError(t, os.Chtimes(path, later, later))

		dup, err = s.FindDuplicate([]byte("old content"))
		require.NoError(t, err)
		assert.Equal(t, "", dup, "noCache=%v", noCache)

		dup, err = s.FindDuplicate([]byte("new, longer content"))
		require.NoError(t, err)
		assert.Equal(t, "a.jpg", dup, "noCache=%v", noCache)

		// Removed files no longer match.
		require.NoError(t, os.Remove(path))
		dup, err = s.FindDuplicate([]byte("new, longer content"))
		require.NoError(t, err)
		assert.Equal(t, "", dup, "noCache=%v", noCache)

		// Files added behind the store's back do.
		writeFile(t, filepath.Join(dir, "b.jpg"), []byte("external"))
		dup, err = s.FindDuplicate([]byte("external"))
		require.NoError(t, err)
		assert.Equal(t, "b.jpg", dup, "noCache=%v", noCache)
	}
}

func TestStore_FindDuplicateParallel(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		writeFile(t, filepath.Join(dir, name+".jpg"), []byte("content "+name))
	}

	s := NewStore(dir, StoreOptions{Jobs: 4})
	dup, err := s.FindDuplicate([]byte("content e"))
	require.NoError(t, err)
	assert.Equal(t, "e.jpg", dup)
	assert.Len(t, s.index.entries, 6)
}

func TestStore_SaveFile(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, StoreOptions{})

	content := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff}
	path, err := s.SaveFile("pic.png", content)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "pic.png"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, b)

	dup, err := s.FindDuplicate(content)
	require.NoError(t, err)
	assert.Equal(t, "pic.png", dup)
}

func TestStore_SaveFileNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "pic.png"), []byte("already here"))

	s := NewStore(dir, StoreOptions{})
	_, err := s.SaveFile("pic.png", []byte("new"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrExist), "err=%v", err)

	b, err := os.ReadFile(filepath.Join(dir, "pic.png"))
	require.NoError(t, err)
	assert.Equal(t, "already here", string(b))
}

func TestStore_SaveUnique(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "pic.png"), []byte("already here"))

	s := NewStore(dir, StoreOptions{})
	name, path, err := s.SaveUnique("pic.png", []byte("new"))
	require.NoError(t, err)
	assert.Equal(t, "pic_1.png", name)
	assert.Equal(t, filepath.Join(dir, "pic_1.png"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(b))
}

func TestStore_SaveFileFailure(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing"), StoreOptions{})
	_, err := s.SaveFile("pic.png", []byte("x"))

	var fe *FilesystemError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "write", fe.Op)
}

func TestStore_ResolveName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "photo.jpg"), []byte("1"))
	writeFile(t, filepath.Join(dir, "photo_1.jpg"), []byte("2"))

	s := NewStore(dir, StoreOptions{})
	assert.Equal(t, "photo_2.jpg", s.ResolveName("photo.jpg"))
	assert.Equal(t, "other.jpg", s.ResolveName("other.jpg"))
}
