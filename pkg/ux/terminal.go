// Copyright (C) 2025 Dillema AI (dev@dillema.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

// plainMode disables styling, icons, and animations. It is resolved once
// on first use: piped output, dumb terminals, and NO_COLOR all force
// plain output so scripts get stable text.
var (
	plainOnce sync.Once
	plain     bool
)

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// PlainMode reports whether output should be unstyled plain text.
func PlainMode() bool {
	plainOnce.Do(func() {
		if _, ok := os.LookupEnv("NO_COLOR"); ok {
			plain = true
			return
		}
		if os.Getenv("TERM") == "dumb" {
			plain = true
			return
		}
		plain = !IsTerminal()
	})
	return plain
}

// SetPlainMode overrides auto-detection. Used by the --plain flag and by
// tests that need deterministic output.
func SetPlainMode(v bool) {
	plainOnce.Do(func() {})
	plain = v
}
