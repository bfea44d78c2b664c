package sharing

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/mediagate/pkg/storage"
)

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode(CharsetInvite, 8)
	require.NoError(t, err)
	assert.Len(t, code, 8)
	for _, c := range code {
		assert.True(t, strings.ContainsRune(CharsetInvite, c), "unexpected %q", c)
	}

	_, err = GenerateCode("", 8)
	assert.Error(t, err)
	_, err = GenerateCode(CharsetToken, 0)
	assert.Error(t, err)
}

func TestInviteCharsetIsUnambiguous(t *testing.T) {
	for _, c := range "01OIL" {
		assert.False(t, strings.ContainsRune(CharsetInvite, c), "%q should be excluded", c)
	}
}

func TestIssueUniqueRetriesOnCollision(t *testing.T) {
	ctx := context.Background()
	seen := 0
	spec := codeSpec{
		charset:     "AB",
		length:      4,
		maxAttempts: 5,
		exists: func(ctx context.Context, code string) (bool, error) {
			seen++
			return seen == 1, nil
		},
	}
	inserts := 0
	code, err := issueUnique(ctx, spec, func(code string) error {
		inserts++
		if inserts == 1 {
			return storage.ErrDuplicate
		}
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, code, 4)
	assert.Equal(t, 3, seen, "pre-check hit, then insert race, then success")
	assert.Equal(t, 2, inserts)
}

func TestIssueUniqueGivesUp(t *testing.T) {
	spec := codeSpec{
		charset:     "A",
		length:      1,
		maxAttempts: 3,
		exists:      func(ctx context.Context, code string) (bool, error) { return true, nil },
	}
	_, err := issueUnique(context.Background(), spec, func(string) error {
		t.Fatal("insert should not be called for taken codes")
		return nil
	})
	assert.ErrorIs(t, err, ErrCodeSpaceExhausted)
}

func TestIssueUniqueStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	spec := codeSpec{
		charset:     CharsetToken,
		length:      16,
		maxAttempts: 3,
		exists:      func(ctx context.Context, code string) (bool, error) { return false, nil },
	}
	_, err := issueUnique(context.Background(), spec, func(string) error { return boom })
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = issueUnique(ctx, spec, func(string) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
