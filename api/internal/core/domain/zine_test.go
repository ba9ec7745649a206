package domain_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zinevault/zinevault/api/internal/core/domain"
)

func TestZineContent_ValidateNames(t *testing.T) {
	tests := []struct {
		name    string
		content domain.ZineContent
		wantErr bool
	}{
		{"single file", domain.ZineContent{{Name: "index.html", Content: "hi"}}, false},
		{"long name", domain.ZineContent{{Name: strings.Repeat("a", 1024), Content: "hi"}}, false},
		{"name at the archive limit", domain.ZineContent{{Name: strings.Repeat("a", domain.MaxFileNameBytes)}}, false},
		{"name past the archive limit", domain.ZineContent{{Name: strings.Repeat("a", domain.MaxFileNameBytes+1)}}, true},
		{"empty", domain.ZineContent{}, true},
		{"empty name", domain.ZineContent{{Name: "", Content: "x"}}, true},
		{"duplicate", domain.ZineContent{{Name: "a"}, {Name: "a"}}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.content.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestZineContent_JSONKeepsOrder(t *testing.T) {
	var c domain.ZineContent
	require.NoError(t, json.Unmarshal([]byte(`{"z.txt": "1", "a.txt": "2"}`), &c))
	require.Len(t, c, 2)
	assert.Equal(t, "z.txt", c[0].Name)

	out, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t, `{"z.txt":"1","a.txt":"2"}`, string(out))

	err = json.Unmarshal([]byte(`{"a": "1", "a": "2"}`), &c)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
