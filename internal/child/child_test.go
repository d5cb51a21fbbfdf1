// Copyright (c) 2026 The minijail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package child

import (
	"testing"

	"github.com/juniocarl/minijail/internal/wire"
)

func TestFromRecordMapsKeepCapsAcrossSetuid(t *testing.T) {
	cases := []struct {
		name   string
		rec    wire.Record
		wantKC bool
	}{
		{"caps only", wire.Record{CapsSet: true}, false},
		{"caps and uid", wire.Record{CapsSet: true, UIDSet: true}, true},
		{"caps and gid", wire.Record{CapsSet: true, GIDSet: true}, true},
		{"uid only", wire.Record{UIDSet: true}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := FromRecord(&c.rec, "/bin/true", []string{"/bin/true"}, nil)
			if cfg.Priv.KeepCapsAcrossSetuid != c.wantKC {
				t.Fatalf("KeepCapsAcrossSetuid = %v, want %v", cfg.Priv.KeepCapsAcrossSetuid, c.wantKC)
			}
		})
	}
}

func TestFromRecordCarriesTargetAndArgv(t *testing.T) {
	rec := wire.Record{}
	cfg := FromRecord(&rec, "/bin/echo", []string{"/bin/echo", "hi"}, []string{"FOO=bar"})
	if cfg.Target != "/bin/echo" {
		t.Fatalf("Target = %q, want /bin/echo", cfg.Target)
	}
	if len(cfg.Argv) != 2 || cfg.Argv[1] != "hi" {
		t.Fatalf("Argv = %v, want [/bin/echo hi]", cfg.Argv)
	}
	if len(cfg.Env) != 1 || cfg.Env[0] != "FOO=bar" {
		t.Fatalf("Env = %v, want [FOO=bar]", cfg.Env)
	}
}

func TestFromRecordMapsMountAndRlimitConfig(t *testing.T) {
	rec := wire.Record{
		ChrootSet: true, Chroot: "/srv/j",
		MountTmp: true, ReadonlyProc: true,
		StackLimitSet: true, StackBytes: 1 << 20,
	}
	cfg := FromRecord(&rec, "/bin/true", nil, nil)
	if !cfg.Mount.ChrootSet || cfg.Mount.Chroot != "/srv/j" {
		t.Fatalf("Mount config mismatch: %+v", cfg.Mount)
	}
	if !cfg.Mount.MountTmp || !cfg.Mount.ReadonlyProc {
		t.Fatalf("Mount flags mismatch: %+v", cfg.Mount)
	}
	if !cfg.Rlimit.StackLimitSet || cfg.Rlimit.StackBytes != 1<<20 {
		t.Fatalf("Rlimit config mismatch: %+v", cfg.Rlimit)
	}
}
