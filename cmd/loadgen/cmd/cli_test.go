package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClientCounts(t *testing.T) {
	tests := []struct {
		name     string
		flag     string
		fallback int
		want     []int
		wantErr  bool
	}{
		{"empty uses fallback", "", 4, []int{4}, false},
		{"single value", "8", 1, []int{8}, false},
		{"sweep", "1,2,4,8", 1, []int{1, 2, 4, 8}, false},
		{"spaces tolerated", "1, 2, 4", 1, []int{1, 2, 4}, false},
		{"zero rejected", "0", 1, nil, true},
		{"negative rejected", "-2", 1, nil, true},
		{"garbage rejected", "1,two,3", 1, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseClientCounts(tt.flag, tt.fallback)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
