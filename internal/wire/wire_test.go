// Copyright (c) 2026 The minijail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"golang.org/x/sys/unix"
)

func sampleRecord() *Record {
	return &Record{
		ChrootSet: true,
		Chroot:    "/srv/j",
		ChdirSet:  true,
		Chdir:     "/bin",
		VFS:       true,
		Binds: []Bind{
			{Source: "/lib", Dest: "/lib", Writable: false},
		},
		UIDSet: true,
		UID:    1000,
		GIDSet: true,
		GID:    1000,
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	r := sampleRecord()

	var buf bytes.Buffer
	n, err := Marshal(&buf, r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if n != buf.Len() {
		t.Fatalf("Marshal returned %d, wrote %d", n, buf.Len())
	}

	got, err := Unmarshal(&buf)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got.Chroot != r.Chroot || got.Chdir != r.Chdir {
		t.Fatalf("chroot/chdir mismatch: got %+v", got)
	}
	if !reflect.DeepEqual(got.Binds, r.Binds) {
		t.Fatalf("binds mismatch: got %v want %v", got.Binds, r.Binds)
	}
	if got.UID != r.UID || got.GID != r.GID || !got.UIDSet || !got.GIDSet {
		t.Fatalf("uid/gid mismatch: got %+v", got)
	}
}

func TestSizeMatchesMarshalledLength(t *testing.T) {
	r := sampleRecord()
	want := Size(r)

	var buf bytes.Buffer
	if _, err := Marshal(&buf, r); err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if buf.Len() != want {
		t.Fatalf("Size() = %d, Marshal wrote %d", want, buf.Len())
	}
}

func TestUnmarshalTruncatedInput(t *testing.T) {
	r := sampleRecord()
	var buf bytes.Buffer
	if _, err := Marshal(&buf, r); err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	full := buf.Bytes()

	for _, cut := range []int{0, 4, 8, len(full) / 2, len(full) - 1} {
		_, err := Unmarshal(bytes.NewReader(full[:cut]))
		if err == nil {
			t.Fatalf("Unmarshal(%d bytes): expected error, got nil", cut)
		}
		if !errors.Is(err, ErrTruncated) {
			t.Fatalf("Unmarshal(%d bytes): got %v, want ErrTruncated", cut, err)
		}
	}
}

func TestMarshalFilterTooLarge(t *testing.T) {
	r := &Record{
		SeccompFilter: true,
		Filter:        make([]unix.SockFilter, 0x10000),
	}
	var buf bytes.Buffer
	if _, err := Marshal(&buf, r); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Marshal: got %v, want ErrTooLarge", err)
	}
}

func TestUnmarshalFilterRoundTrip(t *testing.T) {
	r := &Record{
		SeccompFilter: true,
		Filter: []unix.SockFilter{
			{Code: 0x06, Jt: 0, Jf: 0, K: 0x7fff0000},
			{Code: 0x15, Jt: 1, Jf: 0, K: 42},
		},
	}
	var buf bytes.Buffer
	if _, err := Marshal(&buf, r); err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(&buf)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got.Filter, r.Filter) {
		t.Fatalf("filter mismatch: got %v want %v", got.Filter, r.Filter)
	}
}
