// Copyright (c) 2026 The minijail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package minijail

import (
	"errors"
	"testing"
)

func TestChangeUIDZeroRejected(t *testing.T) {
	j := New()
	if err := j.ChangeUID(0); !errors.Is(err, KindInvalidArgument) {
		t.Fatalf("ChangeUID(0) = %v, want KindInvalidArgument", err)
	}
}

func TestChangeGIDZeroRejected(t *testing.T) {
	j := New()
	if err := j.ChangeGID(0); !errors.Is(err, KindInvalidArgument) {
		t.Fatalf("ChangeGID(0) = %v, want KindInvalidArgument", err)
	}
}

func TestChrootChdirRequiresEnterChrootFirst(t *testing.T) {
	j := New()
	if err := j.ChrootChdir("/bin"); !errors.Is(err, KindInvalidArgument) {
		t.Fatalf("ChrootChdir without EnterChroot = %v, want KindInvalidArgument", err)
	}
}

func TestEnterChrootTwiceRejected(t *testing.T) {
	j := New()
	if err := j.EnterChroot("/srv/j"); err != nil {
		t.Fatalf("first EnterChroot: %v", err)
	}
	if err := j.EnterChroot("/srv/k"); !errors.Is(err, KindInvalidArgument) {
		t.Fatalf("second EnterChroot = %v, want KindInvalidArgument", err)
	}
}

func TestInheritUsergroupsRequiresChangeUser(t *testing.T) {
	j := New()
	if err := j.InheritUsergroups(); !errors.Is(err, KindInvalidArgument) {
		t.Fatalf("InheritUsergroups without ChangeUser = %v, want KindInvalidArgument", err)
	}
}

func TestInheritUsergroupsAndSupplementaryGIDsMutuallyExclusive(t *testing.T) {
	j := New()
	if err := j.SetSupplementaryGIDs([]uint32{100}); err != nil {
		t.Fatalf("SetSupplementaryGIDs: %v", err)
	}
	j.cfg.userName = "nobody" // simulate a prior ChangeUser without a real lookup
	if err := j.InheritUsergroups(); !errors.Is(err, KindInvalidArgument) {
		t.Fatalf("InheritUsergroups after SetSupplementaryGIDs = %v, want KindInvalidArgument", err)
	}
}

func TestBindImpliesVFS(t *testing.T) {
	j := New()
	if err := j.Bind("/lib", "/lib", false); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if !j.cfg.vfs {
		t.Fatal("Bind did not set the VFS namespace flag")
	}
}

func TestNamespacePIDsImpliesVFSAndReadonlyProc(t *testing.T) {
	j := New()
	if err := j.NamespacePIDs(); err != nil {
		t.Fatalf("NamespacePIDs: %v", err)
	}
	if !j.cfg.vfs || !j.cfg.readonlyProc {
		t.Fatalf("NamespacePIDs left vfs=%v readonlyProc=%v, want both true", j.cfg.vfs, j.cfg.readonlyProc)
	}
}

func TestUseCapsRejectsBitsBeyondLastCap(t *testing.T) {
	j := New()
	last := capLastCap()
	if last >= 63 {
		t.Skip("kernel cap_last_cap leaves no bit to test out-of-range")
	}
	mask := uint64(1) << uint(last+1)
	if err := j.UseCaps(mask); !errors.Is(err, KindInvalidArgument) {
		t.Fatalf("UseCaps(out-of-range) = %v, want KindInvalidArgument", err)
	}
}

func TestMutationAfterRunRejected(t *testing.T) {
	j := New()
	j.frozen = true
	if err := j.ChangeUID(1000); !errors.Is(err, KindInvalidArgument) {
		t.Fatalf("ChangeUID after freeze = %v, want KindInvalidArgument", err)
	}
}
