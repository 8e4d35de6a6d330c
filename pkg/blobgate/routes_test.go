package blobgate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeBucketName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"simple", "simple"},
		{"Mixed-Case", "mixed-case"},
		{"with spaces here", "with-spaces-here"},
		{"under_score", "under-score"},
		{"dots.are.kept", "dots.are.kept"},
		{"--edge-dashes--", "edge-dashes"},
		{"  padded  ", "padded"},
		{"Ünïcode!", "n-code"},
		{"!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeBucketName(tt.in))
		})
	}
}
