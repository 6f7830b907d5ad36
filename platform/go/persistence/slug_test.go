package persistence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeSlug(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"simple", "acme", "acme", false},
		{"hyphenated", "acme-market", "acme-market", false},
		{"uppercase folded", "Acme-Market", "acme-market", false},
		{"surrounding space", "  acme  ", "acme", false},
		{"digits", "store-42", "store-42", false},
		{"empty", "", "", true},
		{"only spaces", "   ", "", true},
		{"inner space", "acme market", "", true},
		{"underscore", "acme_market", "", true},
		{"leading hyphen", "-acme", "", true},
		{"trailing hyphen", "acme-", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeSlug(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestSplitStatements(t *testing.T) {
	asset := `
CREATE TABLE a (id BIGINT);

CREATE INDEX a_idx ON a (id);
`
	stmts := SplitStatements(asset)
	require.Len(t, stmts, 2)
	require.Equal(t, "CREATE TABLE a (id BIGINT)", stmts[0])
	require.Equal(t, "CREATE INDEX a_idx ON a (id)", stmts[1])

	require.Empty(t, SplitStatements("  ;\n;  "))
}
