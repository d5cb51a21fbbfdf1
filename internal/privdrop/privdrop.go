// Copyright (c) 2026 The minijail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package privdrop implements the credential/capability engine:
// UID/GID/supplementary-group drops and capability-set shaping.
// Grounded on internal/sys/caps.go (cap.NewSet().SetProc(),
// cap.ResetAmbient()) for the capability mechanism, and on
// internal/container/child/container.go's setCred for the credential
// ordering (real/effective/saved id's set together, groups cleared or
// populated before the id change).
package privdrop

import (
	"fmt"
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"
	"kernel.org/pub/linux/libs/security/libcap/cap"
)

// Config is the subset of the jail configuration this engine needs.
type Config struct {
	UIDSet, GIDSet       bool
	UID, GID             uint32
	InheritUsergroups    bool
	UserName             string
	SupplementaryGIDsSet bool
	SupplementaryGIDs    []uint32

	CapsSet bool
	CapMask uint64

	// KeepCapsAcrossSetuid requests SECURE_KEEP_CAPS + locked securebits
	// before the UID change, so capabilities survive it.
	KeepCapsAcrossSetuid bool
}

// DropUGID drops real/effective/saved UID and GID and shapes the
// supplementary group list, gids before uids, groups before both.
func DropUGID(cfg Config) error {
	switch {
	case cfg.InheritUsergroups:
		if err := initgroups(cfg.UserName, cfg.GID); err != nil {
			return fmt.Errorf("privdrop: initgroups(%s): %w", cfg.UserName, err)
		}
	case cfg.SupplementaryGIDsSet:
		ids := make([]int, len(cfg.SupplementaryGIDs))
		for i, g := range cfg.SupplementaryGIDs {
			ids[i] = int(g)
		}
		if err := unix.Setgroups(ids); err != nil {
			return fmt.Errorf("privdrop: setgroups: %w", err)
		}
	case cfg.UIDSet || cfg.GIDSet:
		if err := unix.Setgroups(nil); err != nil {
			return fmt.Errorf("privdrop: clearing supplementary groups: %w", err)
		}
	}

	if cfg.GIDSet {
		if err := unix.Setresgid(int(cfg.GID), int(cfg.GID), int(cfg.GID)); err != nil {
			return fmt.Errorf("privdrop: setresgid(%d): %w", cfg.GID, err)
		}
	}
	if cfg.UIDSet {
		if err := unix.Setresuid(int(cfg.UID), int(cfg.UID), int(cfg.UID)); err != nil {
			return fmt.Errorf("privdrop: setresuid(%d): %w", cfg.UID, err)
		}
	}
	return nil
}

// EnableKeepCapsAndSecurebits arms SECURE_KEEP_CAPS and locks all
// securebits, so that a subsequent Setresuid away from UID 0 does not
// wipe the process's effective capability set before DropCaps runs.
func EnableKeepCapsAndSecurebits() error {
	if err := unix.Prctl(unix.PR_SET_KEEPCAPS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("privdrop: PR_SET_KEEPCAPS: %w", err)
	}
	const secureAllBitsAndLocks = unix.SECBIT_KEEP_CAPS |
		unix.SECBIT_KEEP_CAPS_LOCKED |
		unix.SECBIT_NO_SETUID_FIXUP |
		unix.SECBIT_NO_SETUID_FIXUP_LOCKED |
		unix.SECBIT_NOROOT |
		unix.SECBIT_NOROOT_LOCKED
	if err := unix.Prctl(unix.PR_SET_SECUREBITS, secureAllBitsAndLocks, 0, 0, 0); err != nil {
		return fmt.Errorf("privdrop: PR_SET_SECUREBITS: %w", err)
	}
	return nil
}

// DropCaps shapes the effective/permitted/inheritable capability sets to
// cfg.CapMask and shrinks the bounding set to match. CAP_SETPCAP is kept
// in all three sets while the bounding set is being shrunk (it is
// required to drop other bounding bits at all) and removed afterward
// unless the caller explicitly asked for it.
func DropCaps(cfg Config) error {
	set := cap.NewSet()

	explicitSetpcap := cfg.CapMask&(1<<uint(unix.CAP_SETPCAP)) != 0

	last := int(cap.MaxBits())
	for i := 0; i < last; i++ {
		v := cap.Value(i)
		if v == cap.SETPCAP || cfg.CapMask&(1<<uint(i)) != 0 {
			if err := set.SetFlag(cap.Effective, true, v); err != nil {
				return fmt.Errorf("privdrop: setting effective cap %d: %w", i, err)
			}
			if err := set.SetFlag(cap.Permitted, true, v); err != nil {
				return fmt.Errorf("privdrop: setting permitted cap %d: %w", i, err)
			}
			if err := set.SetFlag(cap.Inheritable, true, v); err != nil {
				return fmt.Errorf("privdrop: setting inheritable cap %d: %w", i, err)
			}
		}
	}
	if err := set.SetProc(); err != nil {
		return fmt.Errorf("privdrop: committing capability sets: %w", err)
	}

	for i := 0; i < last; i++ {
		if cfg.CapMask&(1<<uint(i)) != 0 {
			continue
		}
		if err := cap.DropBound(cap.Value(i)); err != nil {
			return fmt.Errorf("privdrop: dropping bounding cap %d: %w", i, err)
		}
	}

	if !explicitSetpcap {
		set2 := cap.NewSet()
		last2 := int(cap.MaxBits())
		for i := 0; i < last2; i++ {
			v := cap.Value(i)
			if cfg.CapMask&(1<<uint(i)) != 0 {
				set2.SetFlag(cap.Effective, true, v)
				set2.SetFlag(cap.Permitted, true, v)
				set2.SetFlag(cap.Inheritable, true, v)
			}
		}
		if err := set2.SetProc(); err != nil {
			return fmt.Errorf("privdrop: removing implicit CAP_SETPCAP: %w", err)
		}
	}

	return nil
}

// ThreadCapsetZero clears every capability set on the calling thread.
// Called unconditionally just before execve whenever use_caps wasn't
// requested, similar to the pattern used by a capset_linux.go
// threadCapsetZero helper.
func ThreadCapsetZero() error {
	hdr := unix.CapUserHeader{Version: unix.LINUX_CAPABILITY_VERSION_3}
	var data [2]unix.CapUserData
	if err := unix.Capset(&hdr, &data[0]); err != nil {
		return fmt.Errorf("privdrop: clearing all capabilities: %w", err)
	}
	return nil
}

func initgroups(username string, gid uint32) error {
	u, err := user.Lookup(username)
	if err != nil {
		return err
	}
	gids, err := u.GroupIds()
	if err != nil {
		return err
	}
	ids := make([]int, 0, len(gids)+1)
	seenBase := false
	for _, s := range gids {
		g, err := strconv.Atoi(s)
		if err != nil {
			continue
		}
		if uint32(g) == gid {
			seenBase = true
		}
		ids = append(ids, g)
	}
	if !seenBase {
		ids = append(ids, int(gid))
	}
	return unix.Setgroups(ids)
}
