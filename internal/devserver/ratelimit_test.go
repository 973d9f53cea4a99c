package devserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestThrottleSweepDropsIdleBuckets(t *testing.T) {
	th := newThrottle(1.0, 2)
	if !th.permit("10.0.0.1") {
		t.Fatal("first request should be permitted")
	}

	// Age the bucket past staleAfter and reopen the sweep window.
	th.mu.Lock()
	th.buckets["10.0.0.1"].seen = time.Now().Add(-time.Hour)
	th.lastSweep = time.Now().Add(-time.Hour)
	th.mu.Unlock()

	th.permit("10.0.0.2")

	th.mu.Lock()
	_, kept := th.buckets["10.0.0.1"]
	n := len(th.buckets)
	th.mu.Unlock()
	if kept {
		t.Error("idle bucket survived the sweep")
	}
	if n != 1 {
		t.Errorf("buckets = %d, want only the active caller", n)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "192.0.2.1:4444",
			want:       "192.0.2.1",
		},
		{
			name:       "proxy headers ignored when untrusted",
			remoteAddr: "192.0.2.1:4444",
			headers:    map[string]string{"X-Real-IP": "203.0.113.9"},
			want:       "192.0.2.1",
		},
		{
			name:       "x-real-ip wins when trusted",
			trustProxy: true,
			remoteAddr: "192.0.2.1:4444",
			headers:    map[string]string{"X-Real-IP": "203.0.113.9"},
			want:       "203.0.113.9",
		},
		{
			name:       "first forwarded entry",
			trustProxy: true,
			remoteAddr: "192.0.2.1:4444",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.9, 198.51.100.2"},
			want:       "203.0.113.9",
		},
		{
			name:       "garbage header falls back to remote addr",
			trustProxy: true,
			remoteAddr: "192.0.2.1:4444",
			headers:    map[string]string{"X-Real-IP": "not-an-ip"},
			want:       "192.0.2.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req, tt.trustProxy); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
