package console

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseNodeRef(t *testing.T) {
	tests := []struct {
		name  string
		ref   NodeRef
		valid bool
	}{
		{"tvc/3f2a9c01", NodeRef{Type: "tvc", ID: "3f2a9c01"}, true},
		{"tvc/", NodeRef{Type: "tvc"}, false},
		{"tvc", NodeRef{}, false},
		{"a/b/c", NodeRef{}, false},
	}
	for _, test := range tests {
		ref, err := ParseNodeRef(test.name)
		if !test.valid {
			require.Error(t, err, test.name)
			continue
		}
		require.NoError(t, err, test.name)
		require.Equal(t, test.ref, ref)
		require.Equal(t, test.name, ref.Name())
	}
}
