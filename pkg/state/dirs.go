// Package state prepares the on-disk directories the service writes to.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Paths are the directories used by an instance. Empty entries are unused.
type Paths struct {
	WebhookLog string
	Audit      string
}

// PathsFor collects the directories named by a webhook log path and an
// audit directory.
func PathsFor(webhookLog, audit string) Paths {
	clean := func(p string) string {
		p = strings.TrimSpace(p)
		if p == "" {
			return ""
		}
		return filepath.Clean(p)
	}
	return Paths{WebhookLog: clean(webhookLog), Audit: clean(audit)}
}

// List returns the non-empty paths.
func (p Paths) List() []string {
	var out []string
	for _, s := range []string{p.WebhookLog, p.Audit} {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// EnsureStateDirs creates every path and checks it is a writable directory
// and not a symlink.
func EnsureStateDirs(p Paths) error {
	for _, path := range p.List() {
		if err := ensureDir(path); err != nil {
			return err
		}
	}
	return nil
}

func ensureDir(p string) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return fmt.Errorf("cannot create parent for %s: %w", p, err)
	}

	if fi, err := os.Lstat(p); err == nil {
		if fi.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("path is a symlink: %s", p)
		}
		if !fi.IsDir() {
			return fmt.Errorf("path exists and is not a directory: %s", p)
		}
	}

	if err := os.MkdirAll(p, 0o700); err != nil {
		return fmt.Errorf("cannot create path %s: %w", p, err)
	}

	tmp, err := os.CreateTemp(p, ".validate-*")
	if err != nil {
		return fmt.Errorf("path not writable: %s: %w", p, err)
	}
	tmp.Close()
	_ = os.Remove(tmp.Name())
	return nil
}
