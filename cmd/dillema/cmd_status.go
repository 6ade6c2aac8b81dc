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
	"fmt"

	"github.com/spf13/cobra"
)

// runStatus delegates the status query and prints the framework's own
// report verbatim. The framework owns cluster introspection; nothing is
// parsed or reformatted here.
func runStatus(cmd *cobra.Command, args []string) error {
	rc, err := resolveRayCommand()
	if err != nil {
		return err
	}

	delegated := []string{"status"}
	if statusVerbose {
		delegated = append(delegated, "--verbose")
	}

	out, err := procManager.Run(cmd.Context(), rc.Name, rc.Argv(delegated...)...)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}
