package clientip_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/devicekit/pkg/clientip"
)

func TestGetIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "direct connection",
			remoteAddr: "203.0.113.7:51234",
			want:       "203.0.113.7",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "203.0.113.7",
			want:       "203.0.113.7",
		},
		{
			name:       "cloudflare header wins",
			remoteAddr: "10.0.0.1:443",
			headers: map[string]string{
				"CF-Connecting-IP": "198.51.100.9",
				"X-Forwarded-For":  "192.0.2.1",
			},
			want: "198.51.100.9",
		},
		{
			name:       "digitalocean beats forwarded-for",
			remoteAddr: "10.0.0.1:443",
			headers: map[string]string{
				"DO-Connecting-IP": "198.51.100.10",
				"X-Forwarded-For":  "192.0.2.1",
			},
			want: "198.51.100.10",
		},
		{
			name:       "forwarded-for chain takes leftmost",
			remoteAddr: "10.0.0.1:443",
			headers:    map[string]string{"X-Forwarded-For": "192.0.2.1, 10.0.0.2, 10.0.0.3"},
			want:       "192.0.2.1",
		},
		{
			name:       "real-ip fallback",
			remoteAddr: "10.0.0.1:443",
			headers:    map[string]string{"X-Real-IP": "192.0.2.44"},
			want:       "192.0.2.44",
		},
		{
			name:       "malformed header falls through to remote addr",
			remoteAddr: "203.0.113.7:51234",
			headers:    map[string]string{"X-Forwarded-For": "not-an-ip"},
			want:       "203.0.113.7",
		},
		{
			name:       "unspecified address is rejected",
			remoteAddr: "203.0.113.7:51234",
			headers:    map[string]string{"X-Forwarded-For": "0.0.0.0"},
			want:       "203.0.113.7",
		},
		{
			name:       "ipv6 remote addr",
			remoteAddr: "[2001:db8::1]:443",
			want:       "2001:db8::1",
		},
		{
			name:       "whitespace around header value",
			remoteAddr: "10.0.0.1:443",
			headers:    map[string]string{"X-Forwarded-For": " 192.0.2.1 , 10.0.0.2"},
			want:       "192.0.2.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientip.GetIP(r))
		})
	}
}
