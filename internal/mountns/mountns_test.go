// Copyright (c) 2026 The minijail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mountns

import (
	"os"
	"testing"
)

func TestApplyRequiresPrivilege(t *testing.T) {
	if os.Getenv("MINIJAIL_TEST_PRIVILEGED") == "" {
		t.Skip("requires CAP_SYS_ADMIN in a private mount namespace; set MINIJAIL_TEST_PRIVILEGED=1")
	}
	dir := t.TempDir()
	cfg := Config{Chroot: dir, ChrootSet: true}
	if err := Apply(cfg); err != nil {
		t.Fatalf("Apply: %v", err)
	}
}

func TestApplyWithVFSMountsMinimalDev(t *testing.T) {
	if os.Getenv("MINIJAIL_TEST_PRIVILEGED") == "" {
		t.Skip("requires CAP_SYS_ADMIN in a private mount namespace; set MINIJAIL_TEST_PRIVILEGED=1")
	}
	dir := t.TempDir()
	cfg := Config{VFS: true, Chroot: dir, ChrootSet: true}
	if err := Apply(cfg); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for _, name := range []string{"null", "zero", "full", "random", "urandom", "tty"} {
		if _, err := os.Stat("/dev/" + name); err != nil {
			t.Errorf("/dev/%s: %v", name, err)
		}
	}
}
