// Copyright (c) 2026 The minijail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package seccomp implements the seccomp engine:
// no_new_privs, the optional SIGSYS handler for filter-failure logging,
// and both seccomp-BPF filter mode and strict mode. Grounded on the
// prctl usage pattern in internal/container/child/container.go
// (PR_SET_PDEATHSIG, PR_CAP_AMBIENT), generalized to the SECCOMP prctls.
package seccomp

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"unsafe"

	"golang.org/x/sys/unix"
)

// SetNoNewPrivs sets the no_new_privs process bit.
func SetNoNewPrivs() error {
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("seccomp: PR_SET_NO_NEW_PRIVS: %w", err)
	}
	return nil
}

// InstallSigsysHandler arms a SIGSYS handler for filter-failure logging and
// logs a warning that it did so. The external SIGSYS audit
// log tailer collaborator is expected to do the actual policy-violation
// reporting; this handler exists only so the process doesn't die silently
// with a bare core dump before the tailer catches up.
func InstallSigsysHandler(log *slog.Logger) {
	log.Warn("seccomp filter installed with failure logging enabled")
	c := make(chan os.Signal, 1)
	signal.Notify(c, unix.SIGSYS)
	go func() {
		for range c {
			log.Warn("seccomp: illegal syscall (SIGSYS)")
		}
	}()
}

// InstallFilter installs prog in seccomp-BPF filter mode.
func InstallFilter(prog []unix.SockFilter) error {
	fprog := unix.SockFprog{
		Len:    uint16(len(prog)),
		Filter: &prog[0],
	}
	if err := unix.Prctl(unix.PR_SET_SECCOMP, unix.SECCOMP_MODE_FILTER, uintptr(unsafe.Pointer(&fprog)), 0, 0); err != nil {
		return fmt.Errorf("seccomp: PR_SET_SECCOMP filter mode: %w", err)
	}
	return nil
}

// InstallStrict installs strict-mode seccomp: only read, write, exit, and
// sigreturn remain callable. Must run last of all in the pipeline, after
// rlimits and chdir/chroot complete, because it forbids nearly
// everything else.
func InstallStrict() error {
	if err := unix.Prctl(unix.PR_SET_SECCOMP, unix.SECCOMP_MODE_STRICT, 0, 0, 0); err != nil {
		return fmt.Errorf("seccomp: PR_SET_SECCOMP strict mode: %w", err)
	}
	return nil
}
