package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSpan(t *testing.T) {
	cases := []struct {
		name  string
		from  uint64
		to    uint64
		width uint64
		want  []blockSpan
	}{
		{
			name: "even cut", from: 100, to: 105, width: 2,
			want: []blockSpan{{100, 101}, {102, 103}, {104, 105}},
		},
		{
			name: "short tail", from: 0, to: 6, width: 3,
			want: []blockSpan{{0, 2}, {3, 5}, {6, 6}},
		},
		{
			name: "single block", from: 5, to: 5, width: 10,
			want: []blockSpan{{5, 5}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := splitSpan(tc.from, tc.to, tc.width)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSplitSpanInvalid(t *testing.T) {
	_, err := splitSpan(10, 9, 1)
	require.Error(t, err)

	_, err = splitSpan(1, 10, 0)
	require.Error(t, err)
}
