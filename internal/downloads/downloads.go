// Package downloads finds the artifact a portal download produced.
package downloads

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrNoDownload is returned when the directory holds no matching file at all.
var ErrNoDownload = errors.New("downloads: no file found")

// Finder locates downloaded files of one extension in a directory.
type Finder struct {
	Dir string
	// Ext is matched case-insensitively and includes the dot, e.g. ".pdf".
	Ext string
	// Timeout bounds how long Latest waits for a fresh file.
	Timeout time.Duration
	// Poll is the interval between directory scans.
	Poll time.Duration
}

// NewPDFFinder returns a Finder for PDF challans.
func NewPDFFinder(dir string, timeout, poll time.Duration) *Finder {
	return &Finder{Dir: dir, Ext: ".pdf", Timeout: timeout, Poll: poll}
}

type candidate struct {
	path    string
	modTime time.Time
}

// Newest returns the most recently modified matching file.
func (f *Finder) Newest() (string, time.Time, error) {
	c, err := f.scan(time.Time{})
	if err != nil {
		return "", time.Time{}, err
	}
	return c.path, c.modTime, nil
}

// Latest waits up to Timeout for a file modified at or after since. If none
// shows up it falls back to the newest file in the directory. Two runs
// sharing a directory can therefore pick up each other's files.
func (f *Finder) Latest(ctx context.Context, since time.Time) (string, error) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	poll := f.Poll
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var found candidate
	op := func() error {
		c, err := f.scan(since)
		if err != nil {
			return err
		}
		found = c
		return nil
	}
	err := backoff.Retry(op, backoff.WithContext(backoff.NewConstantBackOff(poll), waitCtx))
	if err == nil {
		return found.path, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	path, _, err := f.Newest()
	if err != nil {
		return "", err
	}
	return path, nil
}

// scan returns the newest complete file modified at or after since.
func (f *Finder) scan(since time.Time) (candidate, error) {
	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		return candidate{}, fmt.Errorf("read download directory: %w", err)
	}
	var best candidate
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), f.Ext) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		mod := info.ModTime()
		if mod.Before(since) {
			continue
		}
		if best.path == "" || mod.After(best.modTime) {
			best = candidate{path: filepath.Join(f.Dir, e.Name()), modTime: mod}
		}
	}
	if best.path == "" {
		return candidate{}, ErrNoDownload
	}
	return best, nil
}
