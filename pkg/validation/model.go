// Copyright (C) 2025 Dillema AI (dev@dillema.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// modelSourcePattern matches model sources: hub repository IDs
// (org/Model-Name) and filesystem paths (/models/llama-3).
var modelSourcePattern = regexp.MustCompile(`^[A-Za-z0-9/][A-Za-z0-9._/-]*$`)

// maxModelSourceLen bounds model sources. Hub repo IDs are short; even
// deeply nested local paths fit comfortably.
const maxModelSourceLen = 256

// ValidateModelSource validates a model source before it is embedded in a
// deployment config. The source is either a hub repository ID or a local
// path; either way it must be free of whitespace and shell metacharacters.
//
// Returns an error describing the first violation found.
func ValidateModelSource(source string) error {
	if source == "" {
		return fmt.Errorf("model source cannot be empty")
	}

	if len(source) > maxModelSourceLen {
		return fmt.Errorf("model source too long (%d chars, max %d)", len(source), maxModelSourceLen)
	}

	if strings.Contains(source, "..") {
		return fmt.Errorf("model source cannot contain %q", "..")
	}

	if !modelSourcePattern.MatchString(source) {
		return fmt.Errorf("invalid model source: %q (allowed: alphanumerics, dots, underscores, hyphens, slashes)", source)
	}
	return nil
}

// ValidateServedModelName validates a served-model name. The name becomes a
// path component of the OpenAI-compatible API, so it is stricter than a
// model source: no slashes.
func ValidateServedModelName(name string) error {
	if name == "" {
		return fmt.Errorf("model name cannot be empty")
	}

	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("model name cannot contain path separators: %q", name)
	}

	if !modelSourcePattern.MatchString(name) {
		return fmt.Errorf("invalid model name: %q", name)
	}
	return nil
}
