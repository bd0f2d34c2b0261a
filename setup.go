package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ccollins476ad/imgfetch/fetch"
)

const (
	defaultDestDir = "Fetched_Images"
	defaultTimeout = 10 * time.Second
)

type Config struct {
	DestDir  string        // Directory to save images to.
	Timeout  time.Duration // Per-request timeout.
	URLFile  string        // Optional text file to extract urls from.
	URLs     []string      // Urls given on the command line.
	Jobs     int           // Max files hashed in parallel during a duplicate scan.
	NoCache  bool          // True to rehash the whole directory on every fetch.
	Verbose  bool          // True for verbose output.
	Filename string        // Name to use when a url has no final path segment.
}

func parseArgs(fs *flag.FlagSet, args []string) (*Config, error) {
	destDir := fs.String("d", defaultDestDir, "output directory")
	timeout := fs.Duration("t", defaultTimeout, "per-request timeout")
	urlFile := fs.String("f", "", "read urls from `file`")
	jobs := fs.Int("j", 1, "max files hashed in parallel during the duplicate scan")
	rescan := fs.Bool("rescan", false, "rehash every saved file on every fetch")
	verbose := fs.Bool("v", false, "verbose output")

	fs.Usage = func() { usage(fs) }
	err := fs.Parse(args)
	if err != nil {
		return nil, err
	}

	if *destDir == "" {
		return nil, fmt.Errorf("output directory must not be empty")
	}
	if *jobs < 1 {
		return nil, fmt.Errorf("invalid job count: %d", *jobs)
	}

	return &Config{
		DestDir:  *destDir,
		Timeout:  *timeout,
		URLFile:  *urlFile,
		URLs:     fs.Args(),
		Jobs:     *jobs,
		NoCache:  *rescan,
		Verbose:  *verbose,
		Filename: fetch.DefaultFilename,
	}, nil
}

func usage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: %s [option]... [url]...\n", filepath.Base(os.Args[0]))
	fmt.Fprintf(fs.Output(), "Downloads images into a local directory, skipping duplicates.\n")
	fmt.Fprintf(fs.Output(), "Prompts for urls if none are given.\n")
	fs.PrintDefaults()
}
