// Copyright (c) 2026 The minijail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package minijail

import "github.com/juniocarl/minijail/internal/wire"

// Parent-only flags stay with the parent when a config crosses the pipe:
// none currently, since every flag in config governs child-side behavior.
// This function exists as the single place that rule lives.
func stripParentOnly(r *wire.Record) {}

func (c *config) toWireRecord() *wire.Record {
	r := &wire.Record{
		UIDSet: c.uidSet, GIDSet: c.gidSet, CapsSet: c.capsSet,
		VFS: c.vfs, Pids: c.pids, Net: c.net,
		SeccompStrict: c.seccompStrict, ReadonlyProc: c.readonlyProc,
		InheritUsergroups: c.inheritUsergroups, NoNewPrivs: c.noNewPrivs,
		SeccompFilter: c.seccompFilter, LogSeccompFilter: c.logSeccompFilter,
		ChrootSet: c.chrootSet, MountTmp: c.mountTmp, ChdirSet: c.chdirSet,
		DisablePtrace:         c.disablePtrace,
		StackLimitSet:         c.stackLimitSet,
		TimeLimitSet:          c.timeLimitSet,
		OutputLimitSet:        c.outputLimitSet,
		MemoryLimitSet:        c.memoryLimitSet,
		MetaFileSet:           c.metaFileSet,
		SupplementaryGIDsSet:  c.supplementaryGIDsSet,
		UID:                   c.uid,
		GID:                   c.gid,
		SupGIDBase:            c.supGIDBase,
		CapMask:               c.capMask,
		UserName:              c.userName,
		Chroot:                c.chroot,
		Chdir:                 c.chdir,
		Filter:                c.filter,
		StackBytes:            c.stackBytes,
		TimeLimitMS:           c.timeLimitMS,
		MemoryBytes:           c.memoryBytes,
		OutputBytes:           c.outputBytes,
		MetaFilePath:          c.metaFilePath,
		SupplementaryGIDs:     c.supplementaryGIDs,
	}
	for _, b := range c.binds {
		r.Binds = append(r.Binds, wire.Bind{Source: b.Source, Dest: b.Dest, Writable: b.Writable})
	}
	stripParentOnly(r)
	return r
}

func fromWireRecord(r *wire.Record) *config {
	c := &config{
		uidSet: r.UIDSet, gidSet: r.GIDSet, capsSet: r.CapsSet,
		vfs: r.VFS, pids: r.Pids, net: r.Net,
		seccompStrict: r.SeccompStrict, readonlyProc: r.ReadonlyProc,
		inheritUsergroups: r.InheritUsergroups, noNewPrivs: r.NoNewPrivs,
		seccompFilter: r.SeccompFilter, logSeccompFilter: r.LogSeccompFilter,
		chrootSet: r.ChrootSet, mountTmp: r.MountTmp, chdirSet: r.ChdirSet,
		disablePtrace:        r.DisablePtrace,
		stackLimitSet:        r.StackLimitSet,
		timeLimitSet:         r.TimeLimitSet,
		outputLimitSet:       r.OutputLimitSet,
		memoryLimitSet:       r.MemoryLimitSet,
		metaFileSet:          r.MetaFileSet,
		supplementaryGIDsSet: r.SupplementaryGIDsSet,
		uid:                  r.UID,
		gid:                  r.GID,
		supGIDBase:           r.SupGIDBase,
		capMask:              r.CapMask,
		userName:             r.UserName,
		chroot:               r.Chroot,
		chdir:                r.Chdir,
		filter:               r.Filter,
		filterLen:            len(r.Filter),
		stackBytes:           r.StackBytes,
		timeLimitMS:          r.TimeLimitMS,
		memoryBytes:          r.MemoryBytes,
		outputBytes:          r.OutputBytes,
		metaFilePath:         r.MetaFilePath,
		supplementaryGIDs:    r.SupplementaryGIDs,
	}
	for _, b := range r.Binds {
		c.binds = append(c.binds, BindMount{Source: b.Source, Dest: b.Dest, Writable: b.Writable})
	}
	return c
}

func wireSize(c *config) int {
	return wire.Size(c.toWireRecord())
}
