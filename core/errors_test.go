package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	err := NotFound("locate branch", "branch %s", "main")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrBackend)
	assert.Equal(t, "locate branch: not found: branch main", err.Error())
}

func TestBackendErrorUnwraps(t *testing.T) {
	cause := errors.New("disk on fire")
	err := fmt.Errorf("failed to commit: %w", Backend("create commit", cause))

	assert.ErrorIs(t, err, ErrBackend)
	assert.ErrorIs(t, err, cause)

	var coreErr *Error
	assert.True(t, errors.As(err, &coreErr))
	assert.Equal(t, "create commit", coreErr.Op)
}

func TestDetachedHead(t *testing.T) {
	c, _ := ParseCommitHash("0123456789abcdef0123456789abcdef01234567")
	err := DetachedHead("current branch", c)

	assert.ErrorIs(t, err, ErrDetachedHead)
	assert.Contains(t, err.Error(), "0123456")
}
