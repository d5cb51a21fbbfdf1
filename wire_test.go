// Copyright (c) 2026 The minijail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package minijail

import "testing"

func TestConfigWireRoundTrip(t *testing.T) {
	j := New()
	if err := j.EnterChroot("/srv/j"); err != nil {
		t.Fatalf("EnterChroot: %v", err)
	}
	if err := j.ChrootChdir("/bin"); err != nil {
		t.Fatalf("ChrootChdir: %v", err)
	}
	if err := j.Bind("/lib", "/lib", false); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if err := j.ChangeUID(1000); err != nil {
		t.Fatalf("ChangeUID: %v", err)
	}

	rec := j.cfg.toWireRecord()
	back := fromWireRecord(rec)

	if back.chroot != "/srv/j" || back.chdir != "/bin" {
		t.Fatalf("chroot/chdir mismatch after round trip: %+v", back)
	}
	if len(back.binds) != 1 || back.binds[0].Source != "/lib" || back.binds[0].Dest != "/lib" {
		t.Fatalf("binds mismatch after round trip: %v", back.binds)
	}
	if back.uid != 1000 || !back.uidSet {
		t.Fatalf("uid mismatch after round trip: %+v", back)
	}
}

func TestWireSizeMatchesConfig(t *testing.T) {
	j := New()
	if err := j.EnterChroot("/srv/j"); err != nil {
		t.Fatalf("EnterChroot: %v", err)
	}
	n, err := j.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if n != wireSize(j.cfg) {
		t.Fatalf("Size() = %d, wireSize = %d", n, wireSize(j.cfg))
	}
}

func TestSizeOnDestroyedJailFails(t *testing.T) {
	j := New()
	j.Destroy()
	if _, err := j.Size(); err == nil {
		t.Fatal("Size on destroyed jail: expected error, got nil")
	}
}
