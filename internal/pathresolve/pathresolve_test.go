// Copyright (c) 2026 The minijail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pathresolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/juniocarl/minijail/internal/wire"
)

func TestResolveLongestPrefixMatch(t *testing.T) {
	root := t.TempDir()

	a := filepath.Join(root, "a")
	ab := filepath.Join(root, "ab")
	if err := os.MkdirAll(a, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(ab, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(a, "y"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ab, "z"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Config{
		Binds: []wire.Bind{
			{Source: a, Dest: "/x"},
			{Source: ab, Dest: "/xy"},
		},
	}

	got, err := Resolve(cfg, "/xy/z")
	if err != nil {
		t.Fatalf("resolve /xy/z: %v", err)
	}
	if want := filepath.Join(ab, "z"); got != want {
		t.Fatalf("resolve /xy/z = %q, want %q", got, want)
	}

	got, err = Resolve(cfg, "/x/y")
	if err != nil {
		t.Fatalf("resolve /x/y: %v", err)
	}
	if want := filepath.Join(a, "y"); got != want {
		t.Fatalf("resolve /x/y = %q, want %q", got, want)
	}
}

func TestResolveFollowsSymlink(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "real")
	if err := os.WriteFile(target, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(root, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	cfg := Config{
		Binds: []wire.Bind{{Source: root, Dest: "/r"}},
	}
	got, err := Resolve(cfg, "/r/link")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != target {
		t.Fatalf("resolve /r/link = %q, want %q", got, target)
	}
}

func TestResolveNotRepresentable(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "dir")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := Config{
		Binds: []wire.Bind{{Source: root, Dest: "/r"}},
	}
	if _, err := Resolve(cfg, "/r/dir"); err == nil {
		t.Fatal("resolve of a directory: expected error, got nil")
	}
}
