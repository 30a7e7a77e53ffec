package server

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name          string
		appURL        string
		isDevelopment bool
		origin        string
		want          bool
	}{
		{
			name:   "empty origin allowed for non-browser clients",
			appURL: "https://relay.example.com",
			origin: "",
			want:   true,
		},
		{
			name:   "app origin allowed",
			appURL: "https://relay.example.com",
			origin: "https://relay.example.com",
			want:   true,
		},
		{
			name:   "foreign origin rejected",
			appURL: "https://relay.example.com",
			origin: "https://evil.example.com",
			want:   false,
		},
		{
			name:          "localhost allowed in development",
			appURL:        "https://relay.example.com",
			isDevelopment: true,
			origin:        "http://localhost:3000",
			want:          true,
		},
		{
			name:          "loopback IP allowed in development",
			appURL:        "https://relay.example.com",
			isDevelopment: true,
			origin:        "http://127.0.0.1:8080",
			want:          true,
		},
		{
			name:   "localhost rejected in production",
			appURL: "https://relay.example.com",
			origin: "http://localhost:3000",
			want:   false,
		},
		{
			name:   "unparseable app URL falls back to rejecting browsers",
			appURL: "://not-a-url",
			origin: "https://relay.example.com",
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := NewCheckOrigin(tt.appURL, tt.isDevelopment)
			req := httptest.NewRequest("GET", "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, check(req))
		})
	}
}
