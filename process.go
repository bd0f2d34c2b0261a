package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ccollins476ad/imgfetch/fetch"
	log "github.com/sirupsen/logrus"
	"mvdan.cc/xurls/v2"
)

const (
	glyphOK   = "✓"
	glyphFail = "✗"
)

// imageFetcher is implemented by *fetch.Fetcher.
type imageFetcher interface {
	Fetch(ctx context.Context, u string) fetch.Result
}

// Summary counts the outcomes of a batch.
type Summary struct {
	Saved   int
	Skipped int
	Failed  int
}

// promptURLs asks for urls on w and reads a single line of whitespace
// separated urls from r. A missing trailing newline is not an error.
func promptURLs(r io.Reader, w io.Writer) ([]string, error) {
	fmt.Fprint(w, "Please enter one or more image URLs (separated by spaces): ")

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	return strings.Fields(line), nil
}

// readURLFile returns every url found in the given text file, in order of
// appearance.
func readURLFile(filename string) ([]string, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	urls := xurls.Strict().FindAllString(string(b), -1)
	log.Debugf("found %d urls in %s", len(urls), filename)
	return urls, nil
}

// collectURLs gathers the urls to process: those named on the command line,
// then those in the url file. If neither source is configured, it prompts.
func collectURLs(cfg *Config, stdin io.Reader, stdout io.Writer) ([]string, error) {
	urls := append([]string(nil), cfg.URLs...)

	if cfg.URLFile != "" {
		fromFile, err := readURLFile(cfg.URLFile)
		if err != nil {
			return nil, err
		}
		urls = append(urls, fromFile...)
	}

	if len(cfg.URLs) == 0 && cfg.URLFile == "" {
		return promptURLs(stdin, stdout)
	}

	return urls, nil
}

func summaryLine(dir string, sum Summary) string {
	return fmt.Sprintf("Done: %d saved to %s, %d skipped, %d failed.", sum.Saved, dir, sum.Skipped, sum.Failed)
}

// report prints a status line for the given result.
func report(w io.Writer, res fetch.Result) {
	switch res.Status {
	case fetch.StatusSuccess:
		fmt.Fprintf(w, "%s Successfully fetched: %s\n", glyphOK, res.Filename)
		fmt.Fprintf(w, "%s Image saved to %s\n", glyphOK, res.SavedPath)

	case fetch.StatusSkipped:
		if res.Reason == fetch.ReasonDuplicate {
			fmt.Fprintf(w, "%s Duplicate detected, skipping: %s\n", glyphFail, res.URL)
		} else {
			fmt.Fprintf(w, "%s Skipped (%s): %s\n", glyphFail, res.Reason, res.URL)
		}

	default:
		fmt.Fprintf(w, "%s Failed to fetch %s: %s\n", glyphFail, res.URL, res.Reason)
	}
}

// processURLs fetches each url in order and reports the outcome. A failure
// never stops the batch.
func processURLs(ctx context.Context, f imageFetcher, w io.Writer, urls []string) Summary {
	var sum Summary

	for _, u := range urls {
		log.Debugf("processing url: %s", u)

		res := f.Fetch(ctx, u)
		switch res.Status {
		case fetch.StatusSuccess:
			sum.Saved++
		case fetch.StatusSkipped:
			sum.Skipped++
		default:
			sum.Failed++
			log.WithError(res.Err).Debugf("fetch failed: url=%s", u)
		}

		report(w, res)
	}

	return sum
}
