// Copyright (c) 2026 The minijail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rlimit implements the resource limiter: CPU/AS
// /FSIZE/STACK rlimits plus an interval timer for finer-grained CPU
// enforcement than RLIMIT_CPU alone provides. Grounded on this approach's
// setrlimit helper in internal/container/child/container.go.
package rlimit

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Config is the subset of the jail configuration this engine needs.
type Config struct {
	StackLimitSet  bool
	StackBytes     uint64
	TimeLimitSet   bool
	TimeLimitMS    uint64
	OutputLimitSet bool
	OutputBytes    uint64
	MemoryLimitSet bool
	MemoryBytes    uint64
}

// Apply sets the requested rlimits and arms the CPU interval timer, in an
// order that does not matter to each other (they are independent limits)
// but must all complete before the "static target" path's execve per
// ordering contract.
func Apply(cfg Config) error {
	if cfg.MemoryLimitSet {
		if err := setrlimit(unix.RLIMIT_AS, cfg.MemoryBytes); err != nil {
			return fmt.Errorf("rlimit: RLIMIT_AS: %w", err)
		}
	}
	if cfg.OutputLimitSet {
		if err := setrlimit(unix.RLIMIT_FSIZE, cfg.OutputBytes); err != nil {
			return fmt.Errorf("rlimit: RLIMIT_FSIZE: %w", err)
		}
		if err := setrlimit(unix.RLIMIT_CORE, 0); err != nil {
			return fmt.Errorf("rlimit: RLIMIT_CORE: %w", err)
		}
	}
	if cfg.StackLimitSet {
		if err := setrlimit(unix.RLIMIT_STACK, cfg.StackBytes); err != nil {
			return fmt.Errorf("rlimit: RLIMIT_STACK: %w", err)
		}
	}
	if cfg.TimeLimitSet {
		softSecs := (cfg.TimeLimitMS + 999) / 1000
		rlim := &unix.Rlimit{Cur: softSecs, Max: softSecs + 1}
		if err := unix.Setrlimit(unix.RLIMIT_CPU, rlim); err != nil {
			return fmt.Errorf("rlimit: RLIMIT_CPU: %w", err)
		}
		if err := armIntervalTimer(cfg.TimeLimitMS); err != nil {
			return fmt.Errorf("rlimit: arming interval timer: %w", err)
		}
	}
	return nil
}

func setrlimit(resource int, value uint64) error {
	rlim := &unix.Rlimit{Cur: value, Max: value}
	return unix.Setrlimit(resource, rlim)
}

// armIntervalTimer arms ITIMER_VIRTUAL at ms milliseconds, a finer-grained
// stop than the second-granularity RLIMIT_CPU.
func armIntervalTimer(ms uint64) error {
	usec := ms * 1000
	it := unix.Itimerval{
		Value: unix.Timeval{
			Sec:  int64(usec / 1e6),
			Usec: int64(usec % 1e6),
		},
	}
	_, err := unix.Setitimer(unix.ItimerVirtual, it)
	return err
}
