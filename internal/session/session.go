// Package session saves the portal's cookie jar to disk and loads it back into
// a browser so an authenticated session survives a page reload.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/challan-cli/internal/browser"
)

// ErrNoSession is returned by Restore when no cookie file exists.
var ErrNoSession = errors.New("session: no saved session")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Manager owns one cookie file.
type Manager struct {
	path   string
	logger *zap.Logger
	now    func() time.Time
}

// NewManager returns a Manager backed by path.
func NewManager(path string, logger *zap.Logger) *Manager {
	return &Manager{path: path, logger: logger.Named("session"), now: time.Now}
}

// Path returns the cookie file location.
func (m *Manager) Path() string { return m.path }

// Persist writes every cookie the browser holds. The file is replaced atomically.
func (m *Manager) Persist(ctx context.Context, client browser.Client) (int, error) {
	cookies, err := client.Cookies(ctx)
	if err != nil {
		return 0, fmt.Errorf("collect cookies: %w", err)
	}
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("encode cookies: %w", err)
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return 0, fmt.Errorf("create session directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return 0, fmt.Errorf("create temp cookie file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("write cookies: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("write cookies: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		return 0, fmt.Errorf("replace cookie file: %w", err)
	}

	m.logger.Info("Session cookies saved.", zap.Int("count", len(cookies)), zap.String("path", m.path))
	return len(cookies), nil
}

// Restore loads the saved cookies into the browser, skipping expired ones,
// then reloads the page so they take effect.
func (m *Manager) Restore(ctx context.Context, client browser.Client) (int, error) {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, ErrNoSession
	}
	if err != nil {
		return 0, fmt.Errorf("read cookie file: %w", err)
	}

	var saved []browser.Cookie
	if err := json.Unmarshal(data, &saved); err != nil {
		return 0, fmt.Errorf("decode cookie file %s: %w", m.path, err)
	}

	now := float64(m.now().Unix())
	live := saved[:0]
	for _, c := range saved {
		if !c.Session && c.Expires > 0 && c.Expires < now {
			continue
		}
		live = append(live, c)
	}
	if dropped := len(saved) - len(live); dropped > 0 {
		m.logger.Debug("Skipping expired cookies.", zap.Int("count", dropped))
	}

	if err := client.SetCookies(ctx, live); err != nil {
		return 0, fmt.Errorf("apply cookies: %w", err)
	}
	if err := client.Reload(ctx); err != nil {
		return len(live), fmt.Errorf("reload after restoring cookies: %w", err)
	}

	m.logger.Info("Session cookies restored.", zap.Int("count", len(live)))
	return len(live), nil
}
