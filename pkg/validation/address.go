// Copyright (C) 2025 Dillema AI (dev@dillema.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for values that
// reach subprocess argument vectors or URLs.
//
// Everything the CLI forwards to the cluster framework (worker addresses,
// HTTP endpoints, interface names, model sources) comes from user input.
// Validating here keeps shell metacharacters and malformed hosts out of
// the delegated calls.
package validation

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

// ClientScheme is the URI scheme the cluster framework uses for client
// connections to a head node.
const ClientScheme = "ray://"

// ifacePattern matches Linux network interface names.
// Max length 15 characters (IFNAMSIZ minus the NUL terminator).
var ifacePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,14}$`)

// SanitizeWorkerAddress normalizes a head-node address pasted by the user.
//
// Shells commonly leave quotes on copied ray:// URLs, so surrounding
// single and double quotes are stripped before validation. The returned
// address preserves whatever scheme the user supplied; the framework's
// join routine accepts both ray://HOST:PORT and bare HOST:PORT forms.
//
// Example:
//
//	addr, err := validation.SanitizeWorkerAddress(`"ray://10.0.0.5:6379"`)
//	// addr == "ray://10.0.0.5:6379"
func SanitizeWorkerAddress(address string) (string, error) {
	cleaned := strings.TrimSpace(address)
	cleaned = strings.Trim(cleaned, `"`)
	cleaned = strings.Trim(cleaned, `'`)

	if err := ValidateWorkerAddress(cleaned); err != nil {
		return "", err
	}
	return cleaned, nil
}

// ValidateWorkerAddress validates a head-node address of the form
// [ray://]HOST:PORT.
func ValidateWorkerAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	hostPort := strings.TrimPrefix(address, ClientScheme)
	if strings.Contains(hostPort, "://") {
		return fmt.Errorf("unsupported address scheme in %q (expected %sHOST:PORT)", address, ClientScheme)
	}

	return validateHostPort(hostPort, address)
}

// ValidateEndpoint validates a serving endpoint of the form HOST:PORT.
func ValidateEndpoint(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}
	return validateHostPort(endpoint, endpoint)
}

// SplitEndpoint validates and splits a HOST:PORT endpoint.
// Returns the host and the numeric port.
func SplitEndpoint(endpoint string) (string, int, error) {
	if err := ValidateEndpoint(endpoint); err != nil {
		return "", 0, err
	}

	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		return "", 0, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid endpoint port %q: %w", portStr, err)
	}
	return host, port, nil
}

// ValidateInterfaceName validates a network interface name (eth0, ens5,
// bond0.100). These are exported into the deployment environment, so the
// character set is restricted to what Linux itself allows.
func ValidateInterfaceName(name string) error {
	if name == "" {
		return fmt.Errorf("interface name cannot be empty")
	}

	if !ifacePattern.MatchString(name) {
		return fmt.Errorf("invalid interface name: %q (must be 1-15 alphanumeric chars, dots, underscores, or hyphens)", name)
	}
	return nil
}

// validateHostPort checks a bare HOST:PORT string. The original argument is
// carried for error messages so the user sees what they typed.
func validateHostPort(hostPort, original string) error {
	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		return fmt.Errorf("invalid address %q: expected HOST:PORT", original)
	}
	if host == "" {
		return fmt.Errorf("invalid address %q: host cannot be empty", original)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid address %q: port must be 1-65535", original)
	}
	return nil
}
