// Copyright (c) 2026 The minijail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package minijail

import "testing"

func TestConfigCloneIsIndependent(t *testing.T) {
	c := &config{binds: []BindMount{{Source: "/a", Dest: "/b"}}}
	n := c.clone()
	n.binds[0].Source = "/changed"
	if c.binds[0].Source != "/a" {
		t.Fatalf("clone shares backing array: original mutated to %q", c.binds[0].Source)
	}
}

func TestRunHooksStopsAtFirstError(t *testing.T) {
	var ran []int
	c := &config{}
	c.hooks = []hook{
		{event: HookPreExecve, fn: func() error { ran = append(ran, 1); return nil }},
		{event: HookPreExecve, fn: func() error { ran = append(ran, 2); return errFake }},
		{event: HookPreExecve, fn: func() error { ran = append(ran, 3); return nil }},
	}
	if err := c.runHooks(HookPreExecve); err != errFake {
		t.Fatalf("runHooks: got %v, want errFake", err)
	}
	if len(ran) != 2 {
		t.Fatalf("runHooks ran hooks %v, want exactly the first two", ran)
	}
}

func TestRunHooksSkipsOtherEvents(t *testing.T) {
	var ran bool
	c := &config{
		hooks: []hook{
			{event: HookPreChroot, fn: func() error { ran = true; return nil }},
		},
	}
	if err := c.runHooks(HookPreExecve); err != nil {
		t.Fatalf("runHooks: %v", err)
	}
	if ran {
		t.Fatal("runHooks invoked a hook registered for a different event")
	}
}

var errFake = fakeErr("boom")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }
