package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrHashing is returned when a digest could not be produced. It never means
// a password mismatch.
var ErrHashing = errors.New("password hashing failed")

var compareHashAndPassword = bcrypt.CompareHashAndPassword

// Hasher produces and checks self-salted bcrypt digests.
type Hasher struct {
	cost int
	// dummy is checked when no account matches a login.
	dummy string
}

func NewHasher(cost int) (*Hasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("no-such-account"), cost)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHashing, err)
	}
	return &Hasher{cost: cost, dummy: string(dummy)}, nil
}

type hashResult struct {
	digest []byte
	err    error
}

// Hash runs bcrypt off the calling goroutine so a cancelled request stops
// waiting for it.
func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	done := make(chan hashResult, 1)
	go func() {
		digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
		done <- hashResult{digest: digest, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		if res.err != nil {
			return "", fmt.Errorf("%w: %v", ErrHashing, res.err)
		}
		return string(res.digest), nil
	}
}

// Verify reports whether plaintext matches digest. Malformed digests and
// cancellation both report false.
func (h *Hasher) Verify(ctx context.Context, plaintext, digest string) bool {
	done := make(chan error, 1)
	go func() {
		done <- compareHashAndPassword([]byte(digest), []byte(plaintext))
	}()

	select {
	case <-ctx.Done():
		return false
	case err := <-done:
		return err == nil
	}
}
