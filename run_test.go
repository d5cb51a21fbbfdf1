// Copyright (c) 2026 The minijail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package minijail

import (
	"os"
	"testing"
)

func TestRunUnconfinedTrueExitsZero(t *testing.T) {
	if os.Getenv("MINIJAIL_TEST_PRIVILEGED") == "" {
		t.Skip("requires CAP_SYS_ADMIN for the self-exec dispatch; set MINIJAIL_TEST_PRIVILEGED=1")
	}
	j := New()
	defer j.Destroy()
	if err := j.Run("/bin/true", []string{"/bin/true"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	status, err := j.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if status != 0 {
		t.Fatalf("Wait() = %d, want 0", status)
	}
}

func TestRunTwiceRejected(t *testing.T) {
	j := New()
	j.frozen = true
	if err := j.Run("/bin/true", nil); err == nil {
		t.Fatal("Run on a frozen jail: expected error, got nil")
	}
}

func TestRunOnDestroyedJailRejected(t *testing.T) {
	j := New()
	j.Destroy()
	if err := j.Run("/bin/true", nil); err == nil {
		t.Fatal("Run on a destroyed jail: expected error, got nil")
	}
}

func TestRunStaticRejectsCaps(t *testing.T) {
	j := New()
	if err := j.UseCaps(1); err != nil {
		t.Fatalf("UseCaps: %v", err)
	}
	if err := j.RunStatic("/bin/true", nil); err == nil {
		t.Fatal("RunStatic with caps requested: expected error, got nil")
	}
}

func TestWaitBeforeRunRejected(t *testing.T) {
	j := New()
	if _, err := j.Wait(); err == nil {
		t.Fatal("Wait before Run: expected error, got nil")
	}
}

func TestKillBeforeRunRejected(t *testing.T) {
	j := New()
	if err := j.Kill(); err == nil {
		t.Fatal("Kill before Run: expected error, got nil")
	}
}

func TestEnterRejectsPIDNamespace(t *testing.T) {
	j := New()
	if err := j.NamespacePIDs(); err != nil {
		t.Fatalf("NamespacePIDs: %v", err)
	}
	if err := j.Enter("/bin/true", nil); err == nil {
		t.Fatal("Enter with a PID namespace requested: expected error, got nil")
	}
}
