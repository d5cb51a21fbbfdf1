// Copyright (c) 2026 The minijail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wire implements the marshal codec: it serializes
// a Record — a flat, schema-driven view of the jail configuration — into a
// length-prefixed byte stream that can cross a pipe between the parent
// process and its freshly cloned child, and reconstructs a Record from
// such a stream.
//
// The wire struct mirrors the technique used elsewhere for process
// image metadata: it lays out a fixed C-compatible struct and pushes it
// through encoding/binary rather than casting memory directly.
// Decode-side error handling is flattened with import.name/pan, the same
// panic/recover "zone" pattern used to avoid a staircase of "if err !=
// nil" checks across a dozen sequential reads.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/sys/unix"
	"import.name/pan"
)

var z = new(pan.Zone)

func must[T any](x T, err error) T {
	z.Check(err)
	return x
}

func check(err error) { z.Check(err) }

// ErrTruncated, ErrNoTerminator, and ErrTooLarge classify the decode
// failures Unmarshal can produce.
var (
	ErrTruncated    = fmt.Errorf("wire: truncated input")
	ErrNoTerminator = fmt.Errorf("wire: string missing NUL terminator")
	ErrTooLarge     = fmt.Errorf("wire: value too large")
)

// Bind is a single bind-mount directive as carried on the wire.
type Bind struct {
	Source   string
	Dest     string
	Writable bool
}

// Record is the flat, schema-driven view of a jail configuration that
// crosses the config pipe. Every field here corresponds 1:1 to a field or
// flag on the jail's configuration; there is deliberately no pointer
// aliasing with the caller's configuration object, so the child's
// Unmarshal result owns everything it holds.
type Record struct {
	UIDSet, GIDSet, CapsSet                     bool
	VFS, Pids, Net                              bool
	SeccompStrict, ReadonlyProc                 bool
	InheritUsergroups, NoNewPrivs               bool
	SeccompFilter, LogSeccompFilter             bool
	ChrootSet, MountTmp, ChdirSet               bool
	DisablePtrace                               bool
	StackLimitSet, TimeLimitSet                 bool
	OutputLimitSet, MemoryLimitSet, MetaFileSet bool
	SupplementaryGIDsSet                        bool

	UID, GID, SupGIDBase uint32
	CapMask              uint64

	UserName string
	Chroot   string
	Chdir    string

	Filter []unix.SockFilter

	Binds []Bind

	SupplementaryGIDs []uint32

	StackBytes, TimeLimitMS, MemoryBytes, OutputBytes uint64

	MetaFilePath string
}

// header is the fixed-size, binary.Write-compatible portion of the wire
// format: "[8-byte size][record header][user?]...". Presence booleans for
// the owned strings and the filter act only as decode-time instructions —
// they are not treated as semantic flags on their own.
type header struct {
	Flags     [22]uint8
	HasUser   uint8
	HasChroot uint8
	HasChdir  uint8
	HasFilter uint8
	_         [4]uint8

	UID, GID, SupGIDBase                         uint32
	CapMask                                       uint64
	FilterLen                                     uint32
	BindCount                                     uint32
	SupplementaryGIDCount                         uint32
	StackBytes, TimeLimitMS, MemoryBytes, OutputBytes uint64
}

const (
	fUIDSet = iota
	fGIDSet
	fCapsSet
	fVFS
	fPids
	fNet
	fSeccompStrict
	fReadonlyProc
	fInheritUsergroups
	fNoNewPrivs
	fSeccompFilter
	fLogSeccompFilter
	fChrootSet
	fMountTmp
	fChdirSet
	fDisablePtrace
	fStackLimitSet
	fTimeLimitSet
	fOutputLimitSet
	fMemoryLimitSet
	fMetaFileSet
	fSupplementaryGIDsSet
)

func b2u(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func (r *Record) toHeader() header {
	var h header
	h.Flags[fUIDSet] = b2u(r.UIDSet)
	h.Flags[fGIDSet] = b2u(r.GIDSet)
	h.Flags[fCapsSet] = b2u(r.CapsSet)
	h.Flags[fVFS] = b2u(r.VFS)
	h.Flags[fPids] = b2u(r.Pids)
	h.Flags[fNet] = b2u(r.Net)
	h.Flags[fSeccompStrict] = b2u(r.SeccompStrict)
	h.Flags[fReadonlyProc] = b2u(r.ReadonlyProc)
	h.Flags[fInheritUsergroups] = b2u(r.InheritUsergroups)
	h.Flags[fNoNewPrivs] = b2u(r.NoNewPrivs)
	h.Flags[fSeccompFilter] = b2u(r.SeccompFilter)
	h.Flags[fLogSeccompFilter] = b2u(r.LogSeccompFilter)
	h.Flags[fChrootSet] = b2u(r.ChrootSet)
	h.Flags[fMountTmp] = b2u(r.MountTmp)
	h.Flags[fChdirSet] = b2u(r.ChdirSet)
	h.Flags[fDisablePtrace] = b2u(r.DisablePtrace)
	h.Flags[fStackLimitSet] = b2u(r.StackLimitSet)
	h.Flags[fTimeLimitSet] = b2u(r.TimeLimitSet)
	h.Flags[fOutputLimitSet] = b2u(r.OutputLimitSet)
	h.Flags[fMemoryLimitSet] = b2u(r.MemoryLimitSet)
	h.Flags[fMetaFileSet] = b2u(r.MetaFileSet)
	h.Flags[fSupplementaryGIDsSet] = b2u(r.SupplementaryGIDsSet)

	h.HasUser = b2u(r.UserName != "")
	h.HasChroot = b2u(r.ChrootSet)
	h.HasChdir = b2u(r.ChdirSet)
	h.HasFilter = b2u(r.SeccompFilter && len(r.Filter) > 0)

	h.UID, h.GID, h.SupGIDBase = r.UID, r.GID, r.SupGIDBase
	h.CapMask = r.CapMask
	h.FilterLen = uint32(len(r.Filter))
	h.BindCount = uint32(len(r.Binds))
	h.SupplementaryGIDCount = uint32(len(r.SupplementaryGIDs))
	h.StackBytes, h.TimeLimitMS = r.StackBytes, r.TimeLimitMS
	h.MemoryBytes, h.OutputBytes = r.MemoryBytes, r.OutputBytes
	return h
}

func (h *header) apply(r *Record) {
	r.UIDSet = h.Flags[fUIDSet] != 0
	r.GIDSet = h.Flags[fGIDSet] != 0
	r.CapsSet = h.Flags[fCapsSet] != 0
	r.VFS = h.Flags[fVFS] != 0
	r.Pids = h.Flags[fPids] != 0
	r.Net = h.Flags[fNet] != 0
	r.SeccompStrict = h.Flags[fSeccompStrict] != 0
	r.ReadonlyProc = h.Flags[fReadonlyProc] != 0
	r.InheritUsergroups = h.Flags[fInheritUsergroups] != 0
	r.NoNewPrivs = h.Flags[fNoNewPrivs] != 0
	r.SeccompFilter = h.Flags[fSeccompFilter] != 0
	r.LogSeccompFilter = h.Flags[fLogSeccompFilter] != 0
	r.ChrootSet = h.Flags[fChrootSet] != 0
	r.MountTmp = h.Flags[fMountTmp] != 0
	r.ChdirSet = h.Flags[fChdirSet] != 0
	r.DisablePtrace = h.Flags[fDisablePtrace] != 0
	r.StackLimitSet = h.Flags[fStackLimitSet] != 0
	r.TimeLimitSet = h.Flags[fTimeLimitSet] != 0
	r.OutputLimitSet = h.Flags[fOutputLimitSet] != 0
	r.MemoryLimitSet = h.Flags[fMemoryLimitSet] != 0
	r.MetaFileSet = h.Flags[fMetaFileSet] != 0
	r.SupplementaryGIDsSet = h.Flags[fSupplementaryGIDsSet] != 0

	r.UID, r.GID, r.SupGIDBase = h.UID, h.GID, h.SupGIDBase
	r.CapMask = h.CapMask
	r.StackBytes, r.TimeLimitMS = h.StackBytes, h.TimeLimitMS
	r.MemoryBytes, r.OutputBytes = h.MemoryBytes, h.OutputBytes
}

func putString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
}

func sockFilterBytes(f unix.SockFilter) [8]byte {
	var b [8]byte
	binary.LittleEndian.PutUint16(b[0:2], f.Code)
	b[2] = f.Jt
	b[3] = f.Jf
	binary.LittleEndian.PutUint32(b[4:8], f.K)
	return b
}

func sockFilterFromBytes(b []byte) unix.SockFilter {
	return unix.SockFilter{
		Code: binary.LittleEndian.Uint16(b[0:2]),
		Jt:   b[2],
		Jf:   b[3],
		K:    binary.LittleEndian.Uint32(b[4:8]),
	}
}

// Size returns the exact number of bytes Marshal will write for r,
// including the 8-byte length prefix.
func Size(r *Record) int {
	n := 8 + binary.Size(header{})
	if r.UserName != "" {
		n += len(r.UserName) + 1
	}
	if r.ChrootSet {
		n += len(r.Chroot) + 1
	}
	if r.ChdirSet {
		n += len(r.Chdir) + 1
	}
	if r.SeccompFilter {
		n += len(r.Filter) * 8
	}
	for _, b := range r.Binds {
		n += len(b.Source) + 1 + len(b.Dest) + 1 + 4
	}
	n += len(r.SupplementaryGIDs) * 4
	if r.MetaFileSet {
		n += len(r.MetaFilePath) + 1
	}
	return n
}

// Marshal writes the length-prefixed wire form of r to w. It either
// completes fully or returns an error without having written a partial
// record's length prefix followed by a truncated body: the whole record
// is built in memory first, then written in one Write call.
func Marshal(w io.Writer, r *Record) (int, error) {
	if len(r.Filter) > 0xffff {
		return 0, ErrTooLarge
	}

	body := new(bytes.Buffer)
	h := r.toHeader()
	if err := binary.Write(body, binary.LittleEndian, &h); err != nil {
		return 0, err
	}
	if r.UserName != "" {
		putString(body, r.UserName)
	}
	if r.ChrootSet {
		putString(body, r.Chroot)
	}
	if r.ChdirSet {
		putString(body, r.Chdir)
	}
	if r.SeccompFilter {
		for _, f := range r.Filter {
			fb := sockFilterBytes(f)
			body.Write(fb[:])
		}
	}
	for _, bind := range r.Binds {
		putString(body, bind.Source)
		putString(body, bind.Dest)
		var wb [4]byte
		binary.LittleEndian.PutUint32(wb[:], b2u32(bind.Writable))
		body.Write(wb[:])
	}
	for _, gid := range r.SupplementaryGIDs {
		var gb [4]byte
		binary.LittleEndian.PutUint32(gb[:], gid)
		body.Write(gb[:])
	}
	if r.MetaFileSet {
		putString(body, r.MetaFilePath)
	}

	out := new(bytes.Buffer)
	out.Grow(8 + body.Len())
	var sizeBuf [8]byte
	binary.LittleEndian.PutUint64(sizeBuf[:], uint64(8+body.Len()))
	out.Write(sizeBuf[:])
	out.Write(body.Bytes())

	n, err := w.Write(out.Bytes())
	return n, err
}

func b2u32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// readFull reads exactly len(buf) bytes, panicking with ErrTruncated (via
// the pan zone) on a short read instead of returning an error, so the
// dozen sequential reads below don't need their own "if err != nil"
// checks.
func readFull(r io.Reader, buf []byte) {
	if _, e := io.ReadFull(r, buf); e != nil {
		if e == io.ErrUnexpectedEOF || e == io.EOF {
			z.Check(ErrTruncated)
		}
		z.Check(e)
	}
}

// Unmarshal reads one length-prefixed record from r. It either succeeds
// completely or returns an error with no partial Record retained.
func Unmarshal(r io.Reader) (*Record, error) {
	var rec *Record
	err := z.Recover(func() {
		var sizeBuf [8]byte
		readFull(r, sizeBuf[:])
		total := binary.LittleEndian.Uint64(sizeBuf[:])
		if total < 8 {
			z.Check(ErrTruncated)
		}

		body := make([]byte, total-8)
		readFull(r, body)

		br := bytes.NewReader(body)

		var h header
		check(binary.Read(br, binary.LittleEndian, &h))
		if h.FilterLen > 0xffff {
			z.Check(ErrTooLarge)
		}

		rec = new(Record)
		h.apply(rec)

		if h.HasUser != 0 {
			rec.UserName = must(readCString(br))
		}
		if h.HasChroot != 0 {
			rec.Chroot = must(readCString(br))
			rec.ChrootSet = true
		}
		if h.HasChdir != 0 {
			rec.Chdir = must(readCString(br))
			rec.ChdirSet = true
		}
		if h.HasFilter != 0 {
			fb := make([]byte, int(h.FilterLen)*8)
			readFull(br, fb)
			rec.Filter = make([]unix.SockFilter, h.FilterLen)
			for i := range rec.Filter {
				rec.Filter[i] = sockFilterFromBytes(fb[i*8 : i*8+8])
			}
		}

		rec.Binds = make([]Bind, h.BindCount)
		for i := range rec.Binds {
			src := must(readCString(br))
			dst := must(readCString(br))
			var wb [4]byte
			readFull(br, wb[:])
			rec.Binds[i] = Bind{Source: src, Dest: dst, Writable: binary.LittleEndian.Uint32(wb[:]) != 0}
		}

		rec.SupplementaryGIDs = make([]uint32, h.SupplementaryGIDCount)
		for i := range rec.SupplementaryGIDs {
			var gb [4]byte
			readFull(br, gb[:])
			rec.SupplementaryGIDs[i] = binary.LittleEndian.Uint32(gb[:])
		}

		if rec.MetaFileSet {
			rec.MetaFilePath = must(readCString(br))
		}
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// readCString reads bytes up to and including a NUL terminator, returning
// the string without the terminator. Fails with ErrNoTerminator if the
// reader is exhausted first.
func readCString(r *bytes.Reader) (string, error) {
	var buf bytes.Buffer
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", ErrNoTerminator
		}
		if b == 0 {
			return buf.String(), nil
		}
		buf.WriteByte(b)
	}
}
