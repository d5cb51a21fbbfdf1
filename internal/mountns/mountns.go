// Copyright (c) 2026 The minijail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mountns implements the bind & chroot engine: it
// applies bind mounts into a chroot prefix, remounts /proc read-only, and
// mounts an ephemeral /tmp and a minimal /dev. Grounded on this approach's
// internal/container/child/container.go furnishNamespaces, which performs
// the equivalent private-mount-namespace-then-pivot sequence for its own
// (differently shaped) root.
package mountns

import (
	"fmt"
	"os"

	"github.com/juniocarl/minijail/internal/wire"
	"golang.org/x/sys/unix"
)

// Config is the subset of the jail configuration this engine needs.
type Config struct {
	VFS          bool
	Chroot       string
	ChrootSet    bool
	Chdir        string
	MountTmp     bool
	ReadonlyProc bool
	Binds        []wire.Bind
}

// Apply runs the ordered mount-setup steps: marking the mount namespace
// slave (when VFS is set), applying binds, chroot, chdir, mounting an ephemeral /tmp and a
// minimal /dev, and remounting /proc read-only. Any failure here is
// fatal to the calling process: it is already partway through privilege
// transformation and must not proceed to execve.
func Apply(cfg Config) error {
	// Mark the new mount namespace MS_SLAVE before any bind mounts, so
	// changes made below (and later inside the jail) don't propagate
	// back to the host mount namespace, even though we're already in a
	// fresh one (defense in depth, matching the original's mount
	// propagation change before any further mount(2) calls).
	if cfg.VFS {
		if err := unix.Mount("", "/", "", unix.MS_SLAVE|unix.MS_REC, ""); err != nil {
			return fmt.Errorf("mountns: marking mount namespace slave: %w", err)
		}
	}

	if err := applyBinds(cfg.Chroot, cfg.Binds); err != nil {
		return err
	}

	if cfg.ChrootSet {
		if err := unix.Chroot(cfg.Chroot); err != nil {
			return fmt.Errorf("mountns: chroot %s: %w", cfg.Chroot, err)
		}
	}

	chdir := cfg.Chdir
	if chdir == "" {
		chdir = "/"
	}
	if err := unix.Chdir(chdir); err != nil {
		return fmt.Errorf("mountns: chdir %s: %w", chdir, err)
	}

	if cfg.MountTmp && cfg.ChrootSet {
		if err := unix.Mount("tmpfs", "/tmp", "tmpfs", 0, "size=128M,mode=777"); err != nil {
			return fmt.Errorf("mountns: mounting tmpfs at /tmp: %w", err)
		}
	}

	if cfg.VFS {
		if err := mountMinimalDev(); err != nil {
			return err
		}
	}

	if cfg.ReadonlyProc {
		if err := remountProcReadonly(); err != nil {
			return err
		}
	}

	return nil
}

// devNodes are the device files a minimal /dev needs to look usable to
// an unprivileged target: null/zero/full for I/O sinks, random/urandom
// for anything that reads entropy, and tty for a controlling terminal
// check.
var devNodes = []struct {
	name string
	mode uint32
	dev  int
}{
	{"null", unix.S_IFCHR | 0o666, mkdevNum(1, 3)},
	{"zero", unix.S_IFCHR | 0o666, mkdevNum(1, 5)},
	{"full", unix.S_IFCHR | 0o666, mkdevNum(1, 7)},
	{"random", unix.S_IFCHR | 0o666, mkdevNum(1, 8)},
	{"urandom", unix.S_IFCHR | 0o666, mkdevNum(1, 9)},
	{"tty", unix.S_IFCHR | 0o666, mkdevNum(5, 0)},
}

func mkdevNum(major, minor uint32) int {
	return int(unix.Mkdev(major, minor))
}

// mountMinimalDev mounts a small tmpfs at /dev and populates it with the
// handful of device nodes a sandboxed target commonly expects, mirroring
// the original's minimal /dev offering for namespace-vfs jails.
func mountMinimalDev() error {
	if err := os.MkdirAll("/dev", 0o755); err != nil {
		return fmt.Errorf("mountns: creating /dev mountpoint: %w", err)
	}
	if err := unix.Mount("tmpfs", "/dev", "tmpfs", unix.MS_NOSUID, "size=1M,mode=755"); err != nil {
		return fmt.Errorf("mountns: mounting tmpfs at /dev: %w", err)
	}
	for _, n := range devNodes {
		path := "/dev/" + n.name
		if err := unix.Mknod(path, n.mode, n.dev); err != nil {
			return fmt.Errorf("mountns: creating %s: %w", path, err)
		}
	}
	return nil
}

// applyBinds mounts each bind entry in insertion order (see DESIGN.md's
// Open Question decision 1: the first error aborts the remaining
// binds rather than being swallowed).
func applyBinds(chrootDir string, binds []wire.Bind) error {
	for _, b := range binds {
		target := chrootDir + b.Dest
		if err := unix.Mount(b.Source, target, "", unix.MS_BIND, ""); err != nil {
			return fmt.Errorf("mountns: bind %s -> %s: %w", b.Source, target, err)
		}
		if !b.Writable {
			if err := unix.Mount(b.Source, target, "", unix.MS_BIND|unix.MS_REMOUNT|unix.MS_RDONLY, ""); err != nil {
				return fmt.Errorf("mountns: remount %s readonly: %w", target, err)
			}
		}
	}
	return nil
}

// remountProcReadonly detaches the inherited /proc and mounts a fresh one
// nodev/noexec/nosuid/readonly. We hold a reference into the parent mount
// namespace via the inherited /proc mount; MS_REMOUNT on it would leak
// changes outward even inside our own fresh mount namespace, so we detach
// and mount fresh instead.
func remountProcReadonly() error {
	// Best-effort: a stale binfmt_misc mount under /proc/sys can pin the
	// old /proc mount and make the detach below fail on some hosts.
	_ = unix.Unmount("/proc/sys/fs/binfmt_misc", unix.MNT_DETACH)

	if err := unix.Unmount("/proc", unix.MNT_DETACH); err != nil {
		return fmt.Errorf("mountns: detaching inherited /proc: %w", err)
	}
	if err := os.MkdirAll("/proc", 0o555); err != nil {
		return fmt.Errorf("mountns: recreating /proc mountpoint: %w", err)
	}
	flags := uintptr(unix.MS_NODEV | unix.MS_NOEXEC | unix.MS_NOSUID | unix.MS_RDONLY)
	if err := unix.Mount("proc", "/proc", "proc", flags, ""); err != nil {
		return fmt.Errorf("mountns: mounting fresh /proc: %w", err)
	}
	return nil
}
