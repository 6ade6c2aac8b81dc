// Copyright (C) 2025 Dillema AI (dev@dillema.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/dillema-ai/dillema/pkg/ux"
)

// minRayVersion is the oldest framework release the Serve LLM deploy
// path is known to work against. Older clusters still get the delegated
// call, plus a warning.
const minRayVersion = "v2.30.0"

// ErrRayNotFound indicates neither a ray binary nor a python interpreter
// that could run `python -m ray` was found on PATH.
var ErrRayNotFound = errors.New("ray executable not found on PATH (and no python fallback)")

// lookPath is swappable for tests.
var lookPath = exec.LookPath

// rayCommand is the resolved invocation of the framework's CLI. When the
// ray entrypoint is not on PATH the module form `python -m ray` is used,
// which works inside bare virtualenvs.
type rayCommand struct {
	// Name is the executable to run ("ray", "python3", ...).
	Name string

	// Prefix holds arguments that precede the ray subcommand
	// (["-m", "ray"] for the python fallback, nil otherwise).
	Prefix []string
}

// Argv prepends the resolved prefix to the delegated arguments.
func (rc rayCommand) Argv(args ...string) []string {
	if len(rc.Prefix) == 0 {
		return args
	}
	out := make([]string, 0, len(rc.Prefix)+len(args))
	out = append(out, rc.Prefix...)
	out = append(out, args...)
	return out
}

// String renders the invocation for error messages.
func (rc rayCommand) String() string {
	if len(rc.Prefix) == 0 {
		return rc.Name
	}
	return rc.Name + " " + strings.Join(rc.Prefix, " ")
}

// resolveRayCommand finds the framework CLI on this machine.
func resolveRayCommand() (rayCommand, error) {
	if path, err := lookPath("ray"); err == nil {
		return rayCommand{Name: path}, nil
	}
	for _, python := range []string{"python3", "python"} {
		if path, err := lookPath(python); err == nil {
			return rayCommand{Name: path, Prefix: []string{"-m", "ray"}}, nil
		}
	}
	return rayCommand{}, ErrRayNotFound
}

// rayVersion asks the resolved CLI for its version. Output looks like
// "ray, version 2.34.0".
func rayVersion(ctx context.Context, pm ProcessManager, rc rayCommand) (string, error) {
	out, err := pm.Run(ctx, rc.Name, rc.Argv("--version")...)
	if err != nil {
		return "", err
	}
	return parseRayVersion(string(out))
}

func parseRayVersion(output string) (string, error) {
	fields := strings.Fields(strings.TrimSpace(output))
	if len(fields) == 0 {
		return "", fmt.Errorf("empty version output")
	}
	raw := strings.TrimPrefix(fields[len(fields)-1], "v")
	v := "v" + raw
	if !semver.IsValid(v) {
		return "", fmt.Errorf("unparseable version output %q", output)
	}
	return v, nil
}

// warnIfOldRay prints a warning when the installed framework is older
// than minRayVersion. Best effort only: resolution or parse failures are
// silent, and nothing here ever fails the command.
func warnIfOldRay(ctx context.Context, pm ProcessManager, rc rayCommand) {
	v, err := rayVersion(ctx, pm, rc)
	if err != nil {
		return
	}
	if semver.Compare(v, minRayVersion) < 0 {
		ux.Warning(fmt.Sprintf("installed ray %s is older than the supported minimum %s; deploy may not work",
			strings.TrimPrefix(v, "v"), strings.TrimPrefix(minRayVersion, "v")))
	}
}
