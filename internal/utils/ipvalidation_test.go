package utils

import (
	"net/http/httptest"
	"testing"
)

func TestIsTrustedProxyIP(t *testing.T) {
	trusted := "127.0.0.1,10.0.0.0/8,192.168.0.0/16"

	tests := []struct {
		ip   string
		want bool
	}{
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"192.168.5.1", true},
		{"8.8.8.8", false},
		{"172.16.0.1", false},
		{"not-an-ip", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsTrustedProxyIP(tt.ip, trusted); got != tt.want {
			t.Errorf("IsTrustedProxyIP(%q) = %v, want %v", tt.ip, got, tt.want)
		}
	}
}

func TestExtractIP(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"192.168.1.1:8080", "192.168.1.1"},
		{"192.168.1.1", "192.168.1.1"},
		{"[::1]:8080", "::1"},
	}
	for _, tt := range tests {
		if got := ExtractIP(tt.addr); got != tt.want {
			t.Errorf("ExtractIP(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestGetClientIPWithTrust(t *testing.T) {
	trusted := "10.0.0.0/8"

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		mode       string
		want       string
	}{
		{"no headers", "203.0.113.1:1234", "", "", "auto", "203.0.113.1"},
		{"untrusted peer ignores xff", "203.0.113.1:1234", "198.51.100.7", "", "auto", "203.0.113.1"},
		{"trusted peer honors xff", "10.0.0.5:1234", "198.51.100.7", "", "auto", "198.51.100.7"},
		{"xff chain takes first", "10.0.0.5:1234", "198.51.100.7, 10.0.0.5", "", "auto", "198.51.100.7"},
		{"trusted peer falls back to xri", "10.0.0.5:1234", "", "198.51.100.9", "auto", "198.51.100.9"},
		{"mode false never trusts", "10.0.0.5:1234", "198.51.100.7", "", "false", "10.0.0.5"},
		{"mode true always trusts", "203.0.113.1:1234", "198.51.100.7", "", "true", "198.51.100.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}

			if got := GetClientIPWithTrust(r, tt.mode, trusted); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
