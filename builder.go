// Copyright (c) 2026 The minijail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package minijail implements the privilege-dropping pipeline of a Linux
// process sandbox: UID/GID drops, POSIX capability restriction, namespace
// creation, chroot with bind mounts, seccomp filtering, no_new_privs,
// resource limits, and execution-metadata collection.
//
// The package consumes a compiled seccomp-BPF filter program and an
// os/user-style credential lookup; it does not parse command lines, detect
// ELF linkage, or compile seccomp policy files — those remain the caller's
// job.
package minijail

import (
	"fmt"
	"os"
	"os/user"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// capLastCap is the highest capability number the running kernel supports,
// read once from /proc/sys/kernel/cap_last_cap.
var capLastCap = sync.OnceValue(func() int {
	b, err := os.ReadFile("/proc/sys/kernel/cap_last_cap")
	if err != nil {
		return 40 // conservative fallback covering all caps through 6.x kernels
	}
	n := 0
	for _, c := range strings.TrimSpace(string(b)) {
		if c < '0' || c > '9' {
			return 40
		}
		n = n*10 + int(c-'0')
	}
	return n
})

// Jail accumulates isolation requests into a configuration and can then
// launch a confined target. The zero value is not usable; construct one
// with New.
type Jail struct {
	mu     sync.Mutex
	cfg    *config
	frozen bool

	initPID int
}

// New returns an empty, mutable Jail.
func New() *Jail {
	return &Jail{cfg: &config{}}
}

func (j *Jail) mutate(op string, fn func(*config) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.frozen {
		return newErr(op, KindInvalidArgument, fmt.Errorf("jail already run"))
	}
	return fn(j.cfg)
}

// ChangeUID requests dropping to the given UID. Requesting UID 0 is
// rejected: a jail that "changes" to root changes nothing.
func (j *Jail) ChangeUID(uid uint32) error {
	return j.mutate("change_uid", func(c *config) error {
		if uid == 0 {
			return newErr("change_uid", KindInvalidArgument, fmt.Errorf("refusing to change to uid 0"))
		}
		c.uid = uid
		c.uidSet = true
		return nil
	})
}

// ChangeGID requests dropping to the given GID. Requesting GID 0 is
// rejected for the same reason as ChangeUID.
func (j *Jail) ChangeGID(gid uint32) error {
	return j.mutate("change_gid", func(c *config) error {
		if gid == 0 {
			return newErr("change_gid", KindInvalidArgument, fmt.Errorf("refusing to change to gid 0"))
		}
		c.gid = gid
		c.gidSet = true
		return nil
	})
}

// ChangeUser resolves name via the platform's user database, populating
// both the target UID and the user's primary GID, and remembers the name
// for a later InheritUsergroups call.
func (j *Jail) ChangeUser(name string) error {
	u, err := user.Lookup(name)
	if err != nil {
		return newErr("change_user", KindIOError, err)
	}
	var uid, gid uint32
	if _, err := fmt.Sscanf(u.Uid, "%d", &uid); err != nil {
		return newErr("change_user", KindIOError, err)
	}
	if _, err := fmt.Sscanf(u.Gid, "%d", &gid); err != nil {
		return newErr("change_user", KindIOError, err)
	}
	if uid == 0 {
		return newErr("change_user", KindInvalidArgument, fmt.Errorf("refusing to change to uid 0"))
	}
	return j.mutate("change_user", func(c *config) error {
		c.uid, c.uidSet = uid, true
		c.gid, c.gidSet = gid, true
		c.userName = name
		return nil
	})
}

// ChangeGroup resolves name to a GID via the platform group database.
func (j *Jail) ChangeGroup(name string) error {
	g, err := user.LookupGroup(name)
	if err != nil {
		return newErr("change_group", KindIOError, err)
	}
	var gid uint32
	if _, err := fmt.Sscanf(g.Gid, "%d", &gid); err != nil {
		return newErr("change_group", KindIOError, err)
	}
	if gid == 0 {
		return newErr("change_group", KindInvalidArgument, fmt.Errorf("refusing to change to gid 0"))
	}
	return j.mutate("change_group", func(c *config) error {
		c.gid, c.gidSet = gid, true
		return nil
	})
}

// UseSeccomp requests strict-mode seccomp: after this,
// only read, write, exit, and sigreturn remain callable.
func (j *Jail) UseSeccomp() error {
	return j.mutate("use_seccomp", func(c *config) error {
		c.seccompStrict = true
		return nil
	})
}

// NoNewPrivs requests the no_new_privs process bit.
func (j *Jail) NoNewPrivs() error {
	return j.mutate("no_new_privs", func(c *config) error {
		c.noNewPrivs = true
		return nil
	})
}

// UseSeccompFilter installs a pre-compiled BPF program produced by the
// external seccomp-BPF policy compiler. Program length is bounded by
// USHRT_MAX instructions.
func (j *Jail) UseSeccompFilter(prog []unix.SockFilter) error {
	return j.mutate("use_seccomp_filter", func(c *config) error {
		if len(prog) > 0xffff {
			return newErr("use_seccomp_filter", KindTooLarge, fmt.Errorf("filter has %d instructions", len(prog)))
		}
		c.filter = append([]unix.SockFilter(nil), prog...)
		c.filterLen = len(prog)
		c.seccompFilter = true
		return nil
	})
}

// LoadSeccompFilterFile reads a pre-compiled binary seccomp-BPF policy
// (an array of struct sock_filter) from path and installs it, saving the
// caller from hand-marshalling unix.SockFilter values.
func (j *Jail) LoadSeccompFilterFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return newErr("parse_seccomp_filters", KindIOError, err)
	}
	const instrSize = 8 // sizeof(struct sock_filter)
	if len(b)%instrSize != 0 {
		return newErr("parse_seccomp_filters", KindTruncatedInput, fmt.Errorf("%s: not a multiple of %d bytes", path, instrSize))
	}
	prog := make([]unix.SockFilter, len(b)/instrSize)
	for i := range prog {
		off := i * instrSize
		prog[i] = unix.SockFilter{
			Code: uint16(b[off]) | uint16(b[off+1])<<8,
			Jt:   b[off+2],
			Jf:   b[off+3],
			K:    uint32(b[off+4]) | uint32(b[off+5])<<8 | uint32(b[off+6])<<16 | uint32(b[off+7])<<24,
		}
	}
	return j.UseSeccompFilter(prog)
}

// LogSeccompFilterFailures requests a SIGSYS handler and a warning log
// line when the installed filter is exercised.
func (j *Jail) LogSeccompFilterFailures() error {
	return j.mutate("log_seccomp_filter_failures", func(c *config) error {
		c.logSeccompFilter = true
		return nil
	})
}

// UseCaps restricts the capability sets to mask (bit i = CAP_i). Rejected
// if mask carries a bit beyond the kernel's last-cap bound (invariant 5).
func (j *Jail) UseCaps(mask uint64) error {
	return j.mutate("use_caps", func(c *config) error {
		if last := capLastCap(); last < 63 && mask>>uint(last+1) != 0 {
			return newErr("use_caps", KindInvalidArgument, fmt.Errorf("mask exceeds kernel cap_last_cap=%d", last))
		}
		c.capMask = mask
		c.capsSet = true
		return nil
	})
}

// NamespaceVFS requests a mount namespace.
func (j *Jail) NamespaceVFS() error {
	return j.mutate("namespace_vfs", func(c *config) error {
		c.vfs = true
		return nil
	})
}

// NamespacePIDs requests a PID namespace. Implies NamespaceVFS and
// RemountReadonly.
func (j *Jail) NamespacePIDs() error {
	return j.mutate("namespace_pids", func(c *config) error {
		c.pids = true
		c.vfs = true
		c.readonlyProc = true
		return nil
	})
}

// NamespaceNet requests a network namespace.
func (j *Jail) NamespaceNet() error {
	return j.mutate("namespace_net", func(c *config) error {
		c.net = true
		return nil
	})
}

// RemountReadonly requests that /proc be detached and remounted read-only,
// nodev, and noexec once inside the mount namespace.
func (j *Jail) RemountReadonly() error {
	return j.mutate("remount_readonly", func(c *config) error {
		c.readonlyProc = true
		return nil
	})
}

// InheritUsergroups requests that the target's supplementary groups be
// populated from the group database entry for the previously resolved
// user (invariant 3: requires a prior ChangeUser call).
func (j *Jail) InheritUsergroups() error {
	return j.mutate("inherit_usergroups", func(c *config) error {
		if c.userName == "" {
			return newErr("inherit_usergroups", KindInvalidArgument, fmt.Errorf("requires change_user first"))
		}
		if c.supplementaryGIDsSet {
			return newErr("inherit_usergroups", KindInvalidArgument, fmt.Errorf("mutually exclusive with explicit supplementary gids"))
		}
		c.inheritUsergroups = true
		return nil
	})
}

// SetSupplementaryGIDs installs an explicit supplementary group list
// instead of inheriting one from the user database; mutually exclusive
// with InheritUsergroups.
func (j *Jail) SetSupplementaryGIDs(gids []uint32) error {
	return j.mutate("set_supplementary_gids", func(c *config) error {
		if c.inheritUsergroups {
			return newErr("set_supplementary_gids", KindInvalidArgument, fmt.Errorf("mutually exclusive with inherit_usergroups"))
		}
		c.supplementaryGIDs = append([]uint32(nil), gids...)
		c.supplementaryGIDsSet = true
		return nil
	})
}

// DisablePtrace sets PR_SET_DUMPABLE to 0 in the child so the target
// cannot be ptrace-attached to or have its /proc/<pid>/mem read.
func (j *Jail) DisablePtrace() error {
	return j.mutate("disable_ptrace", func(c *config) error {
		c.disablePtrace = true
		return nil
	})
}

// EnterChroot requests that the process chroot into dir before exec.
// Fails if a chroot was already requested.
func (j *Jail) EnterChroot(dir string) error {
	return j.mutate("enter_chroot", func(c *config) error {
		if c.chrootSet {
			return newErr("enter_chroot", KindInvalidArgument, fmt.Errorf("chroot already set"))
		}
		if dir == "" {
			return newErr("enter_chroot", KindInvalidArgument, fmt.Errorf("empty chroot dir"))
		}
		c.chroot = dir
		c.chrootSet = true
		return nil
	})
}

// MountTmp requests an ephemeral tmpfs at /tmp inside the chroot.
func (j *Jail) MountTmp() error {
	return j.mutate("mount_tmp", func(c *config) error {
		c.mountTmp = true
		return nil
	})
}

// ChrootChdir requests a chdir to dir after the chroot syscall. Requires
// EnterChroot to have been called first (invariant 1) and dir to be
// absolute.
func (j *Jail) ChrootChdir(dir string) error {
	return j.mutate("chroot_chdir", func(c *config) error {
		if !c.chrootSet {
			return newErr("chroot_chdir", KindInvalidArgument, fmt.Errorf("requires enter_chroot first"))
		}
		if !strings.HasPrefix(dir, "/") {
			return newErr("chroot_chdir", KindInvalidArgument, fmt.Errorf("chdir must be absolute: %q", dir))
		}
		c.chdir = dir
		c.chdirSet = true
		return nil
	})
}

// Bind appends a bind-mount directive. Implies NamespaceVFS (invariant 2).
// Insertion order is preserved.
func (j *Jail) Bind(src, dest string, writable bool) error {
	return j.mutate("bind", func(c *config) error {
		if dest == "" || !strings.HasPrefix(dest, "/") {
			return newErr("bind", KindInvalidArgument, fmt.Errorf("dest must be absolute: %q", dest))
		}
		c.binds = append(c.binds, BindMount{Source: src, Dest: dest, Writable: writable})
		c.vfs = true
		return nil
	})
}

// StackLimit sets RLIMIT_STACK in bytes.
func (j *Jail) StackLimit(bytes uint64) error {
	return j.mutate("stack_limit", func(c *config) error {
		c.stackBytes = bytes
		c.stackLimitSet = true
		return nil
	})
}

// TimeLimit sets a CPU time limit in milliseconds: applied
// as both RLIMIT_CPU and a finer-grained interval timer.
func (j *Jail) TimeLimit(ms uint64) error {
	return j.mutate("time_limit", func(c *config) error {
		c.timeLimitMS = ms
		c.timeLimitSet = true
		return nil
	})
}

// OutputLimit sets RLIMIT_FSIZE in bytes and disables core dumps.
func (j *Jail) OutputLimit(bytes uint64) error {
	return j.mutate("output_limit", func(c *config) error {
		c.outputBytes = bytes
		c.outputLimitSet = true
		return nil
	})
}

// MemoryLimit sets RLIMIT_AS in bytes.
func (j *Jail) MemoryLimit(bytes uint64) error {
	return j.mutate("memory_limit", func(c *config) error {
		c.memoryBytes = bytes
		c.memoryLimitSet = true
		return nil
	})
}

// MetaFile opens path for writing execution metadata.
func (j *Jail) MetaFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return newErr("meta_file", KindIOError, err)
	}
	f.Close()
	return j.mutate("meta_file", func(c *config) error {
		c.metaFilePath = path
		c.metaFileSet = true
		return nil
	})
}

// CloseOpenFDsExcept marks fds that must survive close_open_fds, the
// fd-hygiene pass run just before exec. The list is honored by Enter.
// Run and its variants do not carry it to the re-executed child, which
// inherits only stdio and the config pipe; the pass there closes every
// descriptor above stderr.
func (j *Jail) CloseOpenFDsExcept(keep ...uintptr) error {
	return j.mutate("close_open_fds", func(c *config) error {
		c.keepFDs = append(c.keepFDs, keep...)
		return nil
	})
}

// AddHook registers fn for the given pipeline event. Only HookPreExecve
// hooks are run: by Run and its variants in the parent just before the
// child is started, and by Enter in-process before the pipeline. Hooks
// registered for the other events are stored but never run.
func (j *Jail) AddHook(event HookEvent, fn func() error) error {
	return j.mutate("add_hook", func(c *config) error {
		c.hooks = append(c.hooks, hook{event: event, fn: fn})
		return nil
	})
}

// Destroy releases the Jail's resources. After Destroy the Jail must not
// be used again.
func (j *Jail) Destroy() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cfg = nil
	j.frozen = true
}

// Size returns the number of bytes internal/wire.Marshal would produce for
// the Jail's current configuration.
func (j *Jail) Size() (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cfg == nil {
		return 0, newErr("size", KindInvalidArgument, fmt.Errorf("jail destroyed"))
	}
	return wireSize(j.cfg), nil
}
