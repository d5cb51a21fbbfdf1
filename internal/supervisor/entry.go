// Copyright (c) 2026 The minijail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package supervisor

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"

	"github.com/juniocarl/minijail/internal/child"
	"github.com/juniocarl/minijail/internal/wire"
)

// RoleInit is the EnvRole value this package answers to: the outer
// process of a PID-namespace clone, which becomes PID-namespace init.
const RoleInit = "init"

func init() {
	if os.Getenv(child.EnvRole) != RoleInit {
		return
	}
	status := bootstrapAndRun()
	os.Exit(status)
}

// bootstrapAndRun reads the marshalled configuration this process
// inherited, forks the grandchild that actually execve's the target, and
// runs the reap/timeout/metadata loop.
func bootstrapAndRun() int {
	log := slog.Default()

	fdStr := os.Getenv(child.EnvConfigFD)
	fd, err := strconv.Atoi(fdStr)
	if err != nil {
		log.Error("supervisor: bad config fd", "value", fdStr, "err", err)
		return ErrInit
	}
	pipe := os.NewFile(uintptr(fd), "minijail-config")
	rec, err := wire.Unmarshal(pipe)
	pipe.Close()
	if err != nil {
		log.Error("supervisor: unmarshal config", "err", err)
		return ErrInit
	}
	if len(os.Args) < 2 {
		log.Error("supervisor: missing target in argv")
		return ErrInit
	}

	selfExe, err := os.Executable()
	if err != nil {
		log.Error("supervisor: resolving self executable", "err", err)
		return ErrInit
	}

	cfg := Config{
		TimeLimitSet: rec.TimeLimitSet, TimeLimitMS: rec.TimeLimitMS,
		MetaFileSet: rec.MetaFileSet, MetaFilePath: rec.MetaFilePath,
	}

	spawn := func() (int, error) {
		r, w, err := os.Pipe()
		if err != nil {
			return 0, fmt.Errorf("creating grandchild config pipe: %w", err)
		}
		defer r.Close()

		if _, err := wire.Marshal(w, rec); err != nil {
			w.Close()
			return 0, fmt.Errorf("marshalling config for grandchild: %w", err)
		}
		w.Close()

		cmd := exec.Command(selfExe, os.Args[1:]...)
		cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
		cmd.ExtraFiles = []*os.File{r}
		cmd.Env = append(os.Environ(),
			child.EnvRole+"="+child.RoleChild,
			fmt.Sprintf("%s=3", child.EnvConfigFD),
		)
		if err := cmd.Start(); err != nil {
			return 0, fmt.Errorf("starting grandchild: %w", err)
		}
		return cmd.Process.Pid, nil
	}

	return Run(cfg, log, spawn)
}
