// Copyright (c) 2026 The minijail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package minijail

import (
	"log/slog"
	"sync/atomic"
	"time"

	"import.name/sjournal"
)

// pkgLogger backs defaultLogger; swapped by UseJournalLogging much like
// an internal/logging.Init(journal bool) helper swaps a package-level
// logger between a text handler and a journald one.
var pkgLogger atomic.Pointer[slog.Logger]

func defaultLogger() *slog.Logger {
	if l := pkgLogger.Load(); l != nil {
		return l
	}
	return slog.Default()
}

// UseJournalLogging switches the logger that Enter hands to the child
// pipeline (seccomp filter-failure warnings) to a journald-backed
// handler, for embedders that run under systemd. Processes started by Run
// and its variants, including the init supervisor, log through
// slog.Default instead.
func UseJournalLogging() error {
	h, err := sjournal.NewHandler(&sjournal.HandlerOptions{
		Delimiter:  sjournal.ColonDelimiter,
		TimeFormat: time.RFC3339Nano,
	})
	if err != nil {
		return newErr("use_journal_logging", KindIOError, err)
	}
	pkgLogger.Store(slog.New(h))
	return nil
}
