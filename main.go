package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/ccollins476ad/imgfetch/download"
	"github.com/ccollins476ad/imgfetch/fetch"
	log "github.com/sirupsen/logrus"
)

func printFatalError(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	cfg, err := parseArgs(fs, os.Args[1:])
	if err != nil {
		printFatalError(err)
		fs.Usage()
		os.Exit(1)
	}

	if cfg.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	interactive := len(cfg.URLs) == 0 && cfg.URLFile == ""
	if interactive {
		fmt.Println("Welcome to the Image Fetcher")
		fmt.Println("Collects images from the web without saving the same one twice")
		fmt.Println()
	}

	urls, err := collectURLs(cfg, os.Stdin, os.Stdout)
	if err != nil {
		printFatalError(err)
		os.Exit(2)
	}

	s := download.NewStore(cfg.DestDir, download.StoreOptions{
		Jobs:    cfg.Jobs,
		NoCache: cfg.NoCache,
	})
	f := fetch.NewFetcher(fetch.Config{
		Timeout:         cfg.Timeout,
		DefaultFilename: cfg.Filename,
	}, s, &http.Client{})

	sum := processURLs(context.Background(), f, os.Stdout, urls)

	fmt.Println()
	fmt.Println(summaryLine(s.Dir(), sum))
}
