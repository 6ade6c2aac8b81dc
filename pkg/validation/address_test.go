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
	"testing"
)

func TestSanitizeWorkerAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    string
		wantErr bool
	}{
		// Valid addresses
		{"bare host port", "10.0.0.5:6379", "10.0.0.5:6379", false},
		{"client scheme", "ray://10.0.0.5:10001", "ray://10.0.0.5:10001", false},
		{"hostname", "ray://head.cluster.local:10001", "ray://head.cluster.local:10001", false},
		{"double quoted", `"ray://10.0.0.5:10001"`, "ray://10.0.0.5:10001", false},
		{"single quoted", `'ray://10.0.0.5:10001'`, "ray://10.0.0.5:10001", false},
		{"surrounding spaces", "  ray://10.0.0.5:10001  ", "ray://10.0.0.5:10001", false},
		{"nested quotes", `"'10.0.0.5:6379'"`, "10.0.0.5:6379", false},

		// Invalid addresses
		{"empty", "", "", true},
		{"quotes only", `""`, "", true},
		{"missing port", "ray://10.0.0.5", "", true},
		{"port zero", "10.0.0.5:0", "", true},
		{"port too large", "10.0.0.5:70000", "", true},
		{"wrong scheme", "http://10.0.0.5:6379", "", true},
		{"shell injection", "10.0.0.5:6379; rm -rf /", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeWorkerAddress(tt.address)
			if (err != nil) != tt.wantErr {
				t.Errorf("SanitizeWorkerAddress(%q) error = %v, wantErr %v", tt.address, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("SanitizeWorkerAddress(%q) = %q, want %q", tt.address, got, tt.want)
			}
		})
	}
}

func TestValidateEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		wantErr  bool
	}{
		{"any host", "0.0.0.0:8000", false},
		{"localhost", "127.0.0.1:8000", false},
		{"hostname", "serve.internal:8000", false},
		{"empty", "", true},
		{"missing port", "0.0.0.0", true},
		{"missing host", ":8000", true},
		{"non numeric port", "0.0.0.0:http", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEndpoint(tt.endpoint)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEndpoint(%q) error = %v, wantErr %v", tt.endpoint, err, tt.wantErr)
			}
		})
	}
}

func TestSplitEndpoint(t *testing.T) {
	host, port, err := SplitEndpoint("0.0.0.0:8000")
	if err != nil {
		t.Fatalf("SplitEndpoint returned error: %v", err)
	}
	if host != "0.0.0.0" {
		t.Errorf("host = %q, want %q", host, "0.0.0.0")
	}
	if port != 8000 {
		t.Errorf("port = %d, want %d", port, 8000)
	}

	if _, _, err := SplitEndpoint("no-port"); err == nil {
		t.Error("expected error for endpoint without port")
	}
}

func TestValidateInterfaceName(t *testing.T) {
	tests := []struct {
		name    string
		iface   string
		wantErr bool
	}{
		{"classic", "eth0", false},
		{"predictable", "ens5", false},
		{"vlan", "bond0.100", false},
		{"infiniband", "ib0", false},
		{"empty", "", true},
		{"too long", "verylonginterface", true},
		{"leading hyphen", "-eth0", true},
		{"spaces", "eth 0", true},
		{"injection", "eth0;reboot", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInterfaceName(tt.iface)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateInterfaceName(%q) error = %v, wantErr %v", tt.iface, err, tt.wantErr)
			}
		})
	}
}
