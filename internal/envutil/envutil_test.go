package envutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Environment
	}{
		{"production", Production},
		{"PROD", Production},
		{" production ", Production},
		{"test", Test},
		{"development", Development},
		{"", Development},
		{"staging", Production},
		{"developmnet", Production},
		{"dev", Production},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.in))
		})
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("NODE_ENV", "")
	t.Setenv("SONGIFY_ENV", "production")
	assert.True(t, FromEnv().IsProduction())

	t.Setenv("NODE_ENV", "development")
	assert.True(t, FromEnv().IsDev())
	assert.False(t, FromEnv().IsProduction())

	t.Setenv("NODE_ENV", "staging")
	assert.False(t, FromEnv().IsDev())
	assert.True(t, FromEnv().IsProduction())
}
