// Package fetch implements the per-url pipeline: retrieve, check content
// type, check for duplicates, pick a name, write.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ccollins476ad/imgfetch/download"
	"github.com/ccollins476ad/imgfetch/fileutil"
	log "github.com/sirupsen/logrus"
)

// DefaultFilename is used for urls without a final path segment unless
// Config says otherwise.
const DefaultFilename = "downloaded_image.jpg"

const (
	ReasonNotImage  = "not an image"
	ReasonDuplicate = "duplicate"
)

type Status int

const (
	StatusSuccess Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is the outcome of fetching a single url.
type Result struct {
	URL    string
	Status Status

	// Reason is ReasonNotImage or ReasonDuplicate for skips, and the error
	// text for failures.
	Reason string
	Err    error // Non-nil iff Status == StatusFailed.

	Filename  string // Name of the saved file, relative to the store.
	SavedPath string // Full path of the saved file.
	Duplicate string // Name of the existing file matched on a duplicate skip.
}

func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// Config holds the settings the pipeline would otherwise take from globals.
type Config struct {
	Timeout         time.Duration // Per-request timeout; <= 0 means none.
	DefaultFilename string        // Used when the url has no final path segment.
}

// Fetcher downloads images into a download.Store. It is meant to be driven
// by a single goroutine; urls are handled one at a time.
type Fetcher struct {
	cfg Config
	s   *download.Store
	hc  *http.Client
}

func NewFetcher(cfg Config, s *download.Store, hc *http.Client) *Fetcher {
	if hc == nil {
		hc = &http.Client{}
	}
	if cfg.DefaultFilename == "" {
		cfg.DefaultFilename = DefaultFilename
	}
	return &Fetcher{
		cfg: cfg,
		s:   s,
		hc:  hc,
	}
}

func failed(u string, err error) Result {
	return Result{
		URL:    u,
		Status: StatusFailed,
		Reason: err.Error(),
		Err:    err,
	}
}

func skipped(u string, reason string) Result {
	return Result{
		URL:    u,
		Status: StatusSkipped,
		Reason: reason,
	}
}

// Fetch retrieves the image at url=u and saves it to the store unless the
// response is not an image or the store already holds identical content.
// It never panics; every problem is reported through the returned Result.
func (f *Fetcher) Fetch(ctx context.Context, u string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("recovered while fetching %s: %v", u, r)
			res = failed(u, fmt.Errorf("unexpected error: %v", r))
		}
	}()

	rsp, err := download.Get(ctx, f.hc, u, nil, f.cfg.Timeout)
	if err != nil {
		return failed(u, err)
	}

	if !strings.HasPrefix(rsp.ContentType, "image/") {
		log.Debugf("skipping %s: content-type=%q", u, rsp.ContentType)
		return skipped(u, ReasonNotImage)
	}

	err = f.s.EnsureDir()
	if err != nil {
		return failed(u, err)
	}

	dup, err := f.s.FindDuplicate(rsp.Body)
	if err != nil {
		return failed(u, err)
	}
	if dup != "" {
		log.Debugf("skipping %s: same content as %s", u, dup)
		r := skipped(u, ReasonDuplicate)
		r.Duplicate = dup
		return r
	}

	filename, err := fileutil.URLFilename(u, f.cfg.DefaultFilename)
	if err != nil {
		return failed(u, fmt.Errorf("failed to derive filename: %w", err))
	}

	filename, path, err := f.s.SaveUnique(filename, rsp.Body)
	if err != nil {
		return failed(u, err)
	}

	return Result{
		URL:       u,
		Status:    StatusSuccess,
		Filename:  filename,
		SavedPath: path,
	}
}
