package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinPath(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		paths   []string
		want    string
		wantErr bool
	}{
		{
			name:  "api path",
			base:  "https://api.spotify.com/v1",
			paths: []string{"/me"},
			want:  "https://api.spotify.com/v1/me",
		},
		{
			name:  "nested",
			base:  "https://api.spotify.com/v1/",
			paths: []string{"me", "player", "devices"},
			want:  "https://api.spotify.com/v1/me/player/devices",
		},
		{
			name:  "trailing slash preserved",
			base:  "https://example.com",
			paths: []string{"api", "v1/"},
			want:  "https://example.com/api/v1/",
		},
		{
			name:    "invalid base",
			base:    "://bad",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JoinPath(tt.base, tt.paths...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOrigin(t *testing.T) {
	got, err := Origin("http://localhost:5173/some/page?x=1")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5173", got)

	got, err = Origin("HTTPS://Songify.Example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://songify.example.com", got)

	_, err = Origin("ftp://example.com")
	assert.Error(t, err)

	_, err = Origin("not a url")
	assert.Error(t, err)
}

func TestCallbackURL(t *testing.T) {
	got, err := CallbackURL("http://localhost:5173")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5173/callback", got)

	got, err = CallbackURL("https://example.com/app/")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/app/callback", got)
}
