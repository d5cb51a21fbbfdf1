// Copyright (c) 2026 The minijail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package minijail

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/juniocarl/minijail/internal/child"
	"github.com/juniocarl/minijail/internal/pathresolve"
	"github.com/juniocarl/minijail/internal/supervisor"
	"github.com/juniocarl/minijail/internal/wire"
	"golang.org/x/sys/unix"
)

// Importing internal/child and internal/supervisor for their side-effecting
// init() functions is the point: each answers to its own MINIJAIL_ROLE value
// and, when re-executed as that role, never returns to this file's callers.
var (
	_ = child.RoleChild
	_ = supervisor.RoleInit
)

// Run launches target under the jail's accumulated configuration.
// argv[0] conventionally names the target itself. Freezes the Jail;
// subsequent mutation attempts fail.
func (j *Jail) Run(target string, argv []string) error {
	return j.run(target, argv, nil)
}

// RunStatic is the static-target counterpart of Run: capability requests
// are rejected at entry, since the original reserves cap dropping for the
// dynamically-linked path where a preload shim can complete it after
// execve.
func (j *Jail) RunStatic(target string, argv []string) error {
	j.mu.Lock()
	capsRequested := j.cfg != nil && j.cfg.capsSet
	j.mu.Unlock()
	if capsRequested {
		return newErr("run_static", KindInvalidArgument, fmt.Errorf("capabilities are not supported on the static-target path"))
	}
	return j.run(target, argv, nil)
}

// RunPid is Run plus returning the PID the caller should wait/kill on.
func (j *Jail) RunPid(target string, argv []string) (int, error) {
	if err := j.run(target, argv, nil); err != nil {
		return 0, err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.initPID, nil
}

// RunPidPipes is RunPid plus redirecting the target's stdio through
// caller-owned pipes, returning the parent-side ends.
func (j *Jail) RunPidPipes(target string, argv []string) (pid int, stdin, stdout, stderr *os.File, err error) {
	stdio := &stdioPipes{}
	if err := j.run(target, argv, stdio); err != nil {
		return 0, nil, nil, nil, err
	}
	j.mu.Lock()
	pid = j.initPID
	j.mu.Unlock()
	return pid, stdio.parentStdin, stdio.parentStdout, stdio.parentStderr, nil
}

type stdioPipes struct {
	parentStdin, parentStdout, parentStderr *os.File
	childStdin, childStdout, childStderr    *os.File
}

func (j *Jail) run(target string, argv []string, stdio *stdioPipes) error {
	j.mu.Lock()
	if j.frozen {
		j.mu.Unlock()
		return newErr("run", KindInvalidArgument, fmt.Errorf("jail already run"))
	}
	if j.cfg == nil {
		j.mu.Unlock()
		return newErr("run", KindInvalidArgument, fmt.Errorf("jail destroyed"))
	}
	cfg := j.cfg.clone()
	j.frozen = true
	j.mu.Unlock()

	if err := cfg.runHooks(HookPreExecve); err != nil {
		return newErr("run", KindInvalidArgument, err)
	}

	selfExe, err := os.Executable()
	if err != nil {
		return newErr("run", KindIOError, err)
	}

	configR, configW, err := os.Pipe()
	if err != nil {
		return newErr("run", KindIOError, err)
	}
	defer configR.Close()

	rec := cfg.toWireRecord()

	cmd := exec.Command(selfExe, append([]string{target}, argv...)...)
	role := child.RoleChild
	if cfg.pids {
		role = supervisor.RoleInit
	}
	cmd.Env = append(os.Environ(),
		child.EnvRole+"="+role,
		fmt.Sprintf("%s=3", child.EnvConfigFD),
	)
	cmd.ExtraFiles = []*os.File{configR}

	if stdio != nil {
		if err := wireStdio(cmd, stdio); err != nil {
			return newErr("run", KindIOError, err)
		}
	} else {
		cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	}

	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: cloneFlags(cfg),
		Pdeathsig:  syscall.SIGKILL,
	}

	if err := cmd.Start(); err != nil {
		configW.Close()
		return newErr("run", KindKernelRefused, err)
	}

	if _, err := wire.Marshal(configW, rec); err != nil {
		configW.Close()
		_ = cmd.Process.Kill()
		return newErr("run", KindIOError, err)
	}
	configW.Close()

	j.mu.Lock()
	j.initPID = cmd.Process.Pid
	j.mu.Unlock()

	if stdio != nil {
		stdio.childStdin.Close()
		stdio.childStdout.Close()
		stdio.childStderr.Close()
	}

	return nil
}

func wireStdio(cmd *exec.Cmd, stdio *stdioPipes) error {
	inR, inW, err := os.Pipe()
	if err != nil {
		return err
	}
	outR, outW, err := os.Pipe()
	if err != nil {
		return err
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		return err
	}
	cmd.Stdin, cmd.Stdout, cmd.Stderr = inR, outW, errW
	stdio.parentStdin, stdio.parentStdout, stdio.parentStderr = inW, outR, errR
	stdio.childStdin, stdio.childStdout, stdio.childStderr = inR, outW, errW
	return nil
}

func cloneFlags(c *config) uintptr {
	var flags uintptr
	if c.vfs {
		flags |= unix.CLONE_NEWNS
	}
	if c.pids {
		flags |= unix.CLONE_NEWPID
	}
	if c.net {
		flags |= unix.CLONE_NEWNET
	}
	return flags
}

// Wait blocks until the jail's initPID has exited and returns the
// classified exit status: the target's own code, 128+N for a
// non-SIGSYS signal, ErrJail for SIGSYS, or ErrInit for an init-layer
// failure. Waits exactly once, without signaling.
func (j *Jail) Wait() (int, error) {
	j.mu.Lock()
	pid := j.initPID
	j.mu.Unlock()
	if pid == 0 {
		return 0, newErr("wait", KindInvalidArgument, fmt.Errorf("jail has not run"))
	}

	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		return 0, newErr("wait", KindKernelRefused, err)
	}

	switch {
	case ws.Exited():
		return ws.ExitStatus(), nil
	case ws.Signaled():
		sig := int(ws.Signal())
		if sig == int(unix.SIGSYS) {
			return supervisor.ErrJail, nil
		}
		return 128 + sig, nil
	default:
		return supervisor.ErrInit, nil
	}
}

// Kill sends SIGTERM to the jail's initPID and waits once.
func (j *Jail) Kill() error {
	j.mu.Lock()
	pid := j.initPID
	j.mu.Unlock()
	if pid == 0 {
		return newErr("kill", KindInvalidArgument, fmt.Errorf("jail has not run"))
	}
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		return newErr("kill", KindKernelRefused, err)
	}
	var ws unix.WaitStatus
	unix.Wait4(pid, &ws, 0, nil)
	return nil
}

// Enter transforms the calling process itself in place instead of
// forking: it runs the ordering contract and then execve's, so it never
// returns on success. Rejects a configuration that requested a PID
// namespace, preserving the original's "enter is the non-forking entry
// and must not be combined with PID-namespacing" contract (see
// DESIGN.md decision 3).
func (j *Jail) Enter(target string, argv []string) error {
	j.mu.Lock()
	if j.frozen {
		j.mu.Unlock()
		return newErr("enter", KindInvalidArgument, fmt.Errorf("jail already run"))
	}
	if j.cfg == nil {
		j.mu.Unlock()
		return newErr("enter", KindInvalidArgument, fmt.Errorf("jail destroyed"))
	}
	if j.cfg.pids {
		j.mu.Unlock()
		return newErr("enter", KindInvalidArgument, fmt.Errorf("enter cannot be combined with a pid namespace"))
	}
	cfg := j.cfg.clone()
	j.frozen = true
	j.mu.Unlock()

	if err := cfg.runHooks(HookPreExecve); err != nil {
		return newErr("enter", KindInvalidArgument, err)
	}

	rec := cfg.toWireRecord()
	cc := child.FromRecord(rec, target, argv, os.Environ())
	cc.KeepFDs = cfg.keepFDs
	if err := child.RunPipeline(cc, defaultLogger()); err != nil {
		return newErr("enter", KindKernelRefused, err)
	}
	return nil
}

// FromFD reconstructs a Jail's frozen configuration from a marshalled
// record read off fd.
func FromFD(fd uintptr) (*Jail, error) {
	f := os.NewFile(fd, "minijail-config")
	rec, err := wire.Unmarshal(f)
	if err != nil {
		return nil, newErr("from_fd", KindIOError, err)
	}
	return &Jail{cfg: fromWireRecord(rec), frozen: true}, nil
}

// ToFD marshals the jail's current configuration to fd.
func (j *Jail) ToFD(fd uintptr) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cfg == nil {
		return newErr("to_fd", KindInvalidArgument, fmt.Errorf("jail destroyed"))
	}
	f := os.NewFile(fd, "minijail-config")
	if _, err := wire.Marshal(f, j.cfg.toWireRecord()); err != nil {
		return newErr("to_fd", KindIOError, err)
	}
	return nil
}

// GetPath resolves an in-jail path to its host-side path by honoring the
// jail's bind-mounts and chroot.
func (j *Jail) GetPath(inJailPath string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cfg == nil {
		return "", newErr("get_path", KindInvalidArgument, fmt.Errorf("jail destroyed"))
	}
	binds := make([]wire.Bind, len(j.cfg.binds))
	for i, b := range j.cfg.binds {
		binds[i] = wire.Bind{Source: b.Source, Dest: b.Dest, Writable: b.Writable}
	}
	host, err := pathresolve.Resolve(pathresolve.Config{
		Chroot: j.cfg.chroot, ChrootSet: j.cfg.chrootSet,
		Chdir: j.cfg.chdir, ChdirSet: j.cfg.chdirSet,
		Binds: binds,
	}, inJailPath)
	if err != nil {
		return "", newErr("get_path", KindInvalidArgument, err)
	}
	return host, nil
}
