package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:5000", "ws://localhost:5000/ws?userId=u1"},
		{"https://market.example.com", "wss://market.example.com/ws?userId=u1"},
		{"https://market.example.com/api/", "wss://market.example.com/ws?userId=u1"},
		{"wss://rt.example.com", "wss://rt.example.com/ws?userId=u1"},
	}
	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got, err := BuildURL(tt.base, "u1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildURLEscapesUserID(t *testing.T) {
	got, err := BuildURL("http://h", "a b&c")
	require.NoError(t, err)
	assert.Equal(t, "ws://h/ws?userId=a+b%26c", got)
}

func TestBuildURLRequiresHost(t *testing.T) {
	_, err := BuildURL("not a url", "u1")
	assert.Error(t, err)
}
