// Copyright (c) 2026 The minijail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package minijail

import "golang.org/x/sys/unix"

// BindMount is one directive to bind-mount a host path onto a path inside
// the chroot, optionally read-only. See "Bind entry ordering":
// insertion order is preserved and is significant for longest-prefix
// resolution (internal/pathresolve).
type BindMount struct {
	Source   string
	Dest     string
	Writable bool
}

// HookEvent names a point in the ordering contract at which
// an embedder-supplied hook may run, mirroring the add_hook mechanism of
// the original minijail library.
type HookEvent int

const (
	HookPreDropCaps HookEvent = iota
	HookPreExecve
	HookPreChroot
	HookPreSetuid
)

type hook struct {
	event HookEvent
	fn    func() error
}

// config is the aggregate configuration record backing a Jail.
// It is mutated only through Jail's builder methods while privileges are
// held, frozen once Run/RunStatic/Enter is called, and (on the dynamic
// path) marshalled across the config pipe by internal/wire.
type config struct {
	// Flags
	uidSet               bool
	gidSet               bool
	capsSet              bool
	vfs                  bool
	pids                 bool
	net                  bool
	seccompStrict        bool
	readonlyProc         bool
	inheritUsergroups    bool
	noNewPrivs           bool
	seccompFilter        bool
	logSeccompFilter     bool
	chrootSet            bool
	mountTmp             bool
	chdirSet             bool
	disablePtrace        bool
	stackLimitSet        bool
	timeLimitSet         bool
	outputLimitSet       bool
	memoryLimitSet       bool
	metaFileSet          bool
	supplementaryGIDsSet bool

	// Scalars
	uid          uint32
	gid          uint32
	supGIDBase   uint32
	capMask      uint64
	filterLen    int

	// Owned strings
	userName string
	chroot   string
	chdir    string

	// Compiled filter program, produced by the external seccomp-BPF
	// compiler collaborator.
	filter []unix.SockFilter

	// Ordered bind entries.
	binds []BindMount

	// Explicit supplementary GIDs (original's set_supplementary_gids,
	// mutually exclusive with inheritUsergroups).
	supplementaryGIDs []uint32

	// Resource limits.
	stackBytes  uint64
	timeLimitMS uint64
	memoryBytes uint64
	outputBytes uint64

	// Metadata output.
	metaFilePath string

	// fds to keep open across close_open_fds (original supplement).
	keepFDs []uintptr

	hooks []hook
}

// clone returns a deep copy suitable for handing to the driver, so that
// the caller's Jail can be mutated again (or destroyed) independently of
// an in-flight Run.
func (c *config) clone() *config {
	n := *c
	if c.filter != nil {
		n.filter = append([]unix.SockFilter(nil), c.filter...)
	}
	if c.binds != nil {
		n.binds = append([]BindMount(nil), c.binds...)
	}
	if c.supplementaryGIDs != nil {
		n.supplementaryGIDs = append([]uint32(nil), c.supplementaryGIDs...)
	}
	if c.keepFDs != nil {
		n.keepFDs = append([]uintptr(nil), c.keepFDs...)
	}
	if c.hooks != nil {
		n.hooks = append([]hook(nil), c.hooks...)
	}
	return &n
}

// runHooks invokes every hook registered for the given event, in
// registration order, stopping at the first error.
func (c *config) runHooks(event HookEvent) error {
	for _, h := range c.hooks {
		if h.event != event {
			continue
		}
		if err := h.fn(); err != nil {
			return err
		}
	}
	return nil
}
