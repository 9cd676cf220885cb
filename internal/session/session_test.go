package session

import (
	"testing"
	"time"
)

func TestSessionStatusAt(t *testing.T) {
	now := time.Now()
	margin := 30 * time.Second

	tests := []struct {
		name string
		sess *Session
		want AuthStatus
	}{
		{
			name: "nil session",
			sess: nil,
			want: StatusUnauthenticated,
		},
		{
			name: "empty access token",
			sess: &Session{},
			want: StatusUnauthenticated,
		},
		{
			name: "fresh token",
			sess: &Session{AccessToken: "a", ExpiresAt: now.Add(time.Hour)},
			want: StatusValid,
		},
		{
			name: "no expiry reported",
			sess: &Session{AccessToken: "a"},
			want: StatusValid,
		},
		{
			name: "inside safety margin",
			sess: &Session{AccessToken: "a", ExpiresAt: now.Add(10 * time.Second)},
			want: StatusExpiringSoon,
		},
		{
			name: "inside margin without refresh token",
			sess: &Session{AccessToken: "a", ExpiresAt: now.Add(10 * time.Second)},
			want: StatusExpiringSoon,
		},
		{
			name: "expired with usable refresh token",
			sess: &Session{
				AccessToken:      "a",
				RefreshToken:     "r",
				ExpiresAt:        now.Add(-time.Minute),
				RefreshExpiresAt: now.Add(time.Hour),
			},
			want: StatusExpiredRefreshable,
		},
		{
			name: "expired with refresh token of unknown lifetime",
			sess: &Session{
				AccessToken:  "a",
				RefreshToken: "r",
				ExpiresAt:    now.Add(-time.Minute),
			},
			want: StatusExpiredRefreshable,
		},
		{
			name: "expired without refresh token",
			sess: &Session{AccessToken: "a", ExpiresAt: now.Add(-time.Minute)},
			want: StatusExpiredUnrefreshable,
		},
		{
			name: "expired with expired refresh token",
			sess: &Session{
				AccessToken:      "a",
				RefreshToken:     "r",
				ExpiresAt:        now.Add(-2 * time.Hour),
				RefreshExpiresAt: now.Add(-time.Hour),
			},
			want: StatusExpiredUnrefreshable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sess.statusAt(now, margin); got != tt.want {
				t.Errorf("statusAt() = %v, want %v", got, tt.want)
			}
		})
	}
}
