package interaction

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/challan-cli/internal/browser"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Dump lists the files written for one failure.
type Dump struct {
	Screenshot string
	HTML       string
}

// Dumper writes screenshot and page-source pairs for operators to inspect
// after a failed step. Nothing in the tool reads them back.
type Dumper struct {
	client  browser.Client
	dir     string
	enabled bool
	logger  *zap.Logger
}

// NewDumper returns a Dumper writing into dir. A disabled Dumper does nothing.
func NewDumper(client browser.Client, dir string, enabled bool, logger *zap.Logger) *Dumper {
	if dir == "" {
		dir = "."
	}
	return &Dumper{client: client, dir: dir, enabled: enabled, logger: logger.Named("diagnostics")}
}

// Capture writes <name>_error.png and <name>_error.html. Failures are logged
// and otherwise ignored; the returned Dump only names files that were written.
func (d *Dumper) Capture(ctx context.Context, name string) Dump {
	var out Dump
	if d == nil || !d.enabled {
		return out
	}
	if ctx.Err() != nil {
		return out
	}
	base := fileBase(name)
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		d.logger.Warn("Cannot create diagnostics directory.", zap.String("dir", d.dir), zap.Error(err))
		return out
	}

	if png, err := d.client.Screenshot(ctx); err != nil {
		d.logger.Warn("Screenshot failed.", zap.String("name", name), zap.Error(err))
	} else if path, err := d.write(base+"_error.png", png); err != nil {
		d.logger.Warn("Writing screenshot failed.", zap.Error(err))
	} else {
		out.Screenshot = path
	}

	if src, err := d.client.PageSource(ctx); err != nil {
		d.logger.Warn("Page source dump failed.", zap.String("name", name), zap.Error(err))
	} else if path, err := d.write(base+"_error.html", []byte(src)); err != nil {
		d.logger.Warn("Writing page source failed.", zap.Error(err))
	} else {
		out.HTML = path
	}

	d.logger.Info("Diagnostic dump captured.",
		zap.String("name", name),
		zap.String("screenshot", out.Screenshot),
		zap.String("html", out.HTML))
	return out
}

func (d *Dumper) write(file string, data []byte) (string, error) {
	path := filepath.Join(d.dir, file)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// fileBase turns a locator or step name into a safe file stem.
func fileBase(name string) string {
	s := strings.Trim(unsafeName.ReplaceAllString(strings.TrimSpace(name), "_"), "_")
	if s == "" {
		return "element"
	}
	return strings.ToLower(s)
}
