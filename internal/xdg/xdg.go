// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

// Package xdg locates per-user Melodies files under the XDG Base Directory layout.
package xdg

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const (
	appName        = "melodies"
	configFileName = "config.yaml"
)

// ConfigDir returns the XDG config directory for melodies.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the user's config file when it exists, or "" when
// there is none.
func ConfigFile() (string, error) {
	path := filepath.Join(ConfigDir(), configFileName)
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", nil
	case err != nil:
		// unreadable is not the same as absent
		return "", oops.Code("CONFIG_LOOKUP_FAILED").With("path", path).Wrap(err)
	case info.IsDir():
		return "", oops.Code("CONFIG_LOOKUP_FAILED").With("path", path).Errorf("%s is a directory", path)
	}
	return path, nil
}
