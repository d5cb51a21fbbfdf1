// Copyright (c) 2026 The minijail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package supervisor implements the init supervisor: it
// runs only as the outer process of a PID-namespace clone, reaps every
// descendant, enforces the wall-clock timeout, and classifies the root
// child's exit for the caller's wait.
//
// Grounded on the internal/container/parent.go Wait exit-status
// classification and internal/error/runtime/runtimeerror.go's
// Error{Define,Subsys,Text} plus ExecutorError/ProcessError classifiers,
// which play the analogous role of turning a raw wait4 status into a
// typed outcome.
package supervisor

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sys/unix"
)

// ErrJail and ErrInit are the distinguished exit statuses shared with
// run.go's non-PID-namespaced Wait path. This package's own reap loop
// always reports a signaled root child as ErrInit, matching the
// PID-namespace init's collapsing of any abnormal termination; ErrJail
// is exposed here only so both wait paths agree on the same constant.
const (
	ErrJail = 253
	ErrInit = 254
)

// Config carries what the supervisor needs beyond the child it spawns.
type Config struct {
	TimeLimitSet bool
	TimeLimitMS  uint64

	MetaFileSet  bool
	MetaFilePath string
}

// Outcome is the classified result of the root child's termination.
type Outcome struct {
	Signal int // -1 if the process exited rather than being signaled
	Status int
}

// Run spawns the root child via spawn, reaps every descendant, enforces
// the wall-clock timeout, classifies the root child's exit, writes
// metadata if requested, and returns the status this process should
// _exit with. It never returns an error: any internal failure is folded
// into ErrInit, since errors in the init supervisor are reported via
// exit status and metadata only.
func Run(cfg Config, log *slog.Logger, spawn func() (int, error)) int {
	start := time.Now()

	rootPID, err := spawn()
	if err != nil {
		log.Error("supervisor: spawning root child failed", "err", err)
		return ErrInit
	}

	overrideCh := make(chan int, 1)
	if cfg.TimeLimitSet {
		armWallClock(cfg.TimeLimitMS, rootPID, overrideCh, log)
	}

	termCh := make(chan os.Signal, 1)
	signal.Notify(termCh, unix.SIGTERM)
	go func() {
		<-termCh
		os.Exit(ErrInit)
	}()

	outcome := reap(rootPID, overrideCh, log)

	elapsed := time.Since(start)
	if cfg.MetaFileSet {
		writeMetadata(cfg.MetaFilePath, elapsed, outcome, log)
	}

	if outcome.Signal == int(unix.SIGSYS) {
		log.Warn("supervisor: illegal syscall (SIGSYS) in root child")
	}

	return outcome.Status
}

// armWallClock arms a timer that, on expiry, records SIGXCPU as the
// override signal and kills the root child's entire process group. Go's
// runtime delivers signals through a channel rather than a raw
// asynchronous handler, so unlike the original C implementation there is
// no async-signal-safety constraint here; a plain timer goroutine plays
// the same role as the original's SIGALRM handler.
func armWallClock(ms uint64, rootPID int, overrideCh chan<- int, log *slog.Logger) {
	secs := (ms + 1999) / 1000
	timer := time.NewTimer(time.Duration(secs) * time.Second)
	go func() {
		<-timer.C
		log.Warn("supervisor: wall-clock limit exceeded, killing root child")
		overrideCh <- int(unix.SIGXCPU)
		_ = unix.Kill(-rootPID, unix.SIGKILL)
	}()
}

// reap waits for every descendant via wait4, remembering the status of
// rootPID, until no children remain (ECHILD).
func reap(rootPID int, overrideCh <-chan int, log *slog.Logger) Outcome {
	var (
		rootStatus unix.WaitStatus
		rootSeen   bool
	)
	for {
		var ws unix.WaitStatus
		var ru unix.Rusage
		pid, err := unix.Wait4(-1, &ws, 0, &ru)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			break
		}
		if pid == rootPID {
			rootStatus = ws
			rootSeen = true
		}
	}

	select {
	case sig := <-overrideCh:
		return Outcome{Signal: sig, Status: ErrInit}
	default:
	}

	switch {
	case !rootSeen:
		return Outcome{Signal: -1, Status: ErrInit}
	case rootStatus.Exited():
		return Outcome{Signal: -1, Status: rootStatus.ExitStatus()}
	case rootStatus.Signaled():
		return Outcome{Signal: int(rootStatus.Signal()), Status: ErrInit}
	default:
		return Outcome{Signal: -1, Status: ErrInit}
	}
}

// writeMetadata emits the line-oriented metadata format: time, time-wall,
// mem, and either signal or status.
func writeMetadata(path string, elapsed time.Duration, outcome Outcome, log *slog.Logger) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		log.Warn("supervisor: opening metadata file failed", "path", path, "err", err)
		return
	}
	defer f.Close()

	var ru unix.Rusage
	unix.Getrusage(unix.RUSAGE_CHILDREN, &ru)

	userMicros := ru.Utime.Sec*1_000_000 + int64(ru.Utime.Usec)
	fmt.Fprintf(f, "time:%d\n", userMicros)
	fmt.Fprintf(f, "time-wall:%d\n", elapsed.Microseconds())
	fmt.Fprintf(f, "mem:%d\n", ru.Maxrss*1024)
	if outcome.Signal >= 0 {
		fmt.Fprintf(f, "signal:%d\n", outcome.Signal)
	} else {
		fmt.Fprintf(f, "status:%d\n", outcome.Status)
	}
}
