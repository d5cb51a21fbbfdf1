// Copyright (c) 2026 The minijail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rlimit

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestApplyNoLimitsRequestedIsNoop(t *testing.T) {
	if err := Apply(Config{}); err != nil {
		t.Fatalf("Apply(zero Config): %v", err)
	}
}

func TestApplyStackLimit(t *testing.T) {
	const want = 8 << 20
	if err := Apply(Config{StackLimitSet: true, StackBytes: want}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_STACK, &rlim); err != nil {
		t.Fatalf("Getrlimit: %v", err)
	}
	if rlim.Cur != want {
		t.Fatalf("RLIMIT_STACK.Cur = %d, want %d", rlim.Cur, want)
	}
}
