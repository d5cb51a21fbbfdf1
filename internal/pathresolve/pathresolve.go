// Copyright (c) 2026 The minijail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pathresolve translates an in-jail path to its host-side path by
// honoring bind-mounts and chroot. Grounded on the original minijail
// library's minijail_get_path bind-list longest-prefix walk, rewritten
// as an iterative traversal rather than the original's linked-list
// recursion.
package pathresolve

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/juniocarl/minijail/internal/wire"
)

// ErrNotRepresentable is returned when the resolved target is neither a
// regular file nor a symlink, or when following symlinks does not
// terminate within maxLinks hops.
var ErrNotRepresentable = errors.New("pathresolve: not representable")

const maxLinks = 40

// Config is the subset of the jail configuration this resolver needs.
type Config struct {
	Chroot    string
	ChrootSet bool
	Chdir     string
	ChdirSet  bool
	Binds     []wire.Bind
}

// Resolve maps inJailPath to the host path that actually backs it,
// following the longest-destination-prefix bind entry and recursing
// through symlinks.
func Resolve(cfg Config, inJailPath string) (string, error) {
	abs := toAbsolute(cfg, inJailPath)

	for i := 0; ; i++ {
		if i >= maxLinks {
			return "", fmt.Errorf("pathresolve: %w: too many symlink hops resolving %q", ErrNotRepresentable, inJailPath)
		}

		host := rewrite(cfg, abs)

		fi, err := os.Lstat(host)
		if err != nil {
			return "", fmt.Errorf("pathresolve: lstat %s: %w", host, err)
		}

		switch {
		case fi.Mode().IsRegular():
			return host, nil
		case fi.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(host)
			if err != nil {
				return "", fmt.Errorf("pathresolve: readlink %s: %w", host, err)
			}
			if path.IsAbs(target) {
				abs = target
			} else {
				abs = path.Join(path.Dir(abs), target)
			}
		default:
			return "", fmt.Errorf("pathresolve: %s: %w", host, ErrNotRepresentable)
		}
	}
}

// toAbsolute makes p absolute relative to chdir (if set), else / (if
// chroot is active), else the process's current working directory.
func toAbsolute(cfg Config, p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	base := "/"
	switch {
	case cfg.ChdirSet:
		base = cfg.Chdir
	case cfg.ChrootSet:
		base = "/"
	default:
		if wd, err := os.Getwd(); err == nil {
			base = wd
		}
	}
	return path.Clean(path.Join(base, p))
}

// rewrite finds the bind entry whose destination is the longest prefix of
// abs, ties going to the earliest insertion, and rewrites abs onto that
// entry's source; falling back to the chroot directory (or /) if no bind
// matches.
func rewrite(cfg Config, abs string) string {
	bestIdx := -1
	bestLen := -1
	for i, b := range cfg.Binds {
		if !isPrefix(b.Dest, abs) {
			continue
		}
		if len(b.Dest) > bestLen {
			bestLen = len(b.Dest)
			bestIdx = i
		}
	}

	if bestIdx >= 0 {
		b := cfg.Binds[bestIdx]
		remainder := strings.TrimPrefix(abs, b.Dest)
		return path.Join(b.Source, remainder)
	}

	prefix := "/"
	if cfg.ChrootSet {
		prefix = cfg.Chroot
	}
	return path.Join(prefix, abs)
}

// isPrefix reports whether dest is a path-boundary-respecting prefix of
// abs: dest itself, or dest followed by "/".
func isPrefix(dest, abs string) bool {
	if dest == "/" {
		return true
	}
	if abs == dest {
		return true
	}
	return strings.HasPrefix(abs, dest+"/")
}
