package fileutil

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/flytam/filenamify"
)

// MaxNameLen is the longest filename, in bytes, that most filesystems accept.
const MaxNameLen = 255

// FileExists returns true if a file or directory with the given path exists.
func FileExists(filename string) bool {
	_, err := os.Lstat(filename)
	return err == nil
}

// SplitExt splits a filename into base and extension. The extension starts at
// the last dot and includes it. Leading dots do not start an extension, so
// ".profile" has no extension.
func SplitExt(filename string) (string, string) {
	i := strings.LastIndexByte(filename, '.')
	if i <= 0 || strings.TrimLeft(filename[:i], ".") == "" {
		return filename, ""
	}
	return filename[:i], filename[i:]
}

// joinName returns base+suffix+ext, shortening base as needed so that the
// result fits in MaxNameLen bytes. Base is only cut on a rune boundary.
func joinName(base string, suffix string, ext string) string {
	if len(base)+len(suffix)+len(ext) <= MaxNameLen {
		return base + suffix + ext
	}

	n := MaxNameLen - len(suffix) - len(ext)
	if n < 0 {
		n = 0
	}
	for n > 0 && !utf8.RuneStart(base[n]) {
		n--
	}
	return base[:n] + suffix + ext
}

// UniqueName returns filename if nothing in dir uses that name. Otherwise it
// inserts an increasing counter before the extension (photo_1.jpg,
// photo_2.jpg, ...) and returns the first unused result.
func UniqueName(dir string, filename string) string {
	if !FileExists(filepath.Join(dir, filename)) {
		return filename
	}

	base, ext := SplitExt(filename)
	for i := 1; ; i++ {
		candidate := joinName(base, fmt.Sprintf("_%d", i), ext)
		if !FileExists(filepath.Join(dir, candidate)) {
			return candidate
		}
	}
}

// unstorable reports whether name contains a character that is reserved in
// filenames on some common platform, or a control character.
func unstorable(name string) bool {
	for _, r := range name {
		if r < 0x20 || (r >= 0x7f && r <= 0x9f) || strings.ContainsRune(`<>:"/\|?*`, r) {
			return true
		}
	}
	return false
}

// URLFilename returns the last segment of the given url's path, with query
// and fragment stripped and percent-encoding decoded. It returns def if the
// url has no final segment (e.g., it ends in "/"). Segments that contain
// characters a filesystem can't store are passed through filenamify; all
// others are used as-is, apart from being cut down to MaxNameLen bytes.
func URLFilename(u string, def string) (string, error) {
	parsed, err := url.Parse(u)
	if err != nil {
		return "", err
	}

	p := parsed.EscapedPath()
	seg, err := url.PathUnescape(p[strings.LastIndexByte(p, '/')+1:])
	if err != nil {
		return "", err
	}
	if seg == "" || seg == "." || seg == ".." {
		return def, nil
	}

	if unstorable(seg) {
		// Replacement is a single byte, so the result never grows.
		seg, err = filenamify.Filenamify(seg, filenamify.Options{Replacement: "_", MaxLength: len(seg)})
		if err != nil {
			return "", err
		}
		if seg == "" {
			return def, nil
		}
	}

	base, ext := SplitExt(seg)
	return joinName(base, "", ext), nil
}
