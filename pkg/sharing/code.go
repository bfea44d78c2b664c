package sharing

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/platinummonkey/mediagate/pkg/apperr"
	"github.com/platinummonkey/mediagate/pkg/storage"
)

// Charsets for generated codes
const (
	// CharsetInvite omits characters that are easy to misread: 0/O, 1/I/L
	CharsetInvite = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	CharsetToken  = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var ErrCodeSpaceExhausted = errors.New("could not generate a unique code")

// GenerateCode returns length characters drawn uniformly from charset
func GenerateCode(charset string, length int) (string, error) {
	if charset == "" || length <= 0 {
		return "", apperr.Invalid("code needs a charset and a positive length")
	}
	max := big.NewInt(int64(len(charset)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		buf[i] = charset[n.Int64()]
	}
	return string(buf), nil
}

// codeSpec describes one code namespace
type codeSpec struct {
	charset     string
	length      int
	maxAttempts int
	exists      func(ctx context.Context, code string) (bool, error)
}

// issueUnique generates codes until insert accepts one. insert must return an
// error wrapping storage.ErrDuplicate when the code is already taken.
func issueUnique(ctx context.Context, spec codeSpec, insert func(code string) error) (string, error) {
	for attempt := 0; attempt < spec.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code, err := GenerateCode(spec.charset, spec.length)
		if err != nil {
			return "", err
		}
		taken, err := spec.exists(ctx, code)
		if err != nil {
			return "", err
		}
		if taken {
			continue
		}
		err = insert(code)
		if errors.Is(err, storage.ErrDuplicate) {
			continue
		}
		if err != nil {
			return "", err
		}
		return code, nil
	}
	return "", fmt.Errorf("%w after %d attempts", ErrCodeSpaceExhausted, spec.maxAttempts)
}
