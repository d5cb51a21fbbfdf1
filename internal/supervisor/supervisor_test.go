// Copyright (c) 2026 The minijail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package supervisor

import (
	"log/slog"
	"os/exec"
	"testing"
)

func TestRunClassifiesNormalExit(t *testing.T) {
	log := slog.Default()
	spawn := func() (int, error) {
		cmd := exec.Command("/bin/sh", "-c", "exit 7")
		if err := cmd.Start(); err != nil {
			return 0, err
		}
		return cmd.Process.Pid, nil
	}
	status := Run(Config{}, log, spawn)
	if status != 7 {
		t.Fatalf("Run() = %d, want 7", status)
	}
}

func TestRunReportsSpawnFailureAsErrInit(t *testing.T) {
	log := slog.Default()
	spawn := func() (int, error) { return 0, errSpawn }
	status := Run(Config{}, log, spawn)
	if status != ErrInit {
		t.Fatalf("Run() = %d, want ErrInit", status)
	}
}

type spawnErr string

func (e spawnErr) Error() string { return string(e) }

var errSpawn = spawnErr("spawn failed")
