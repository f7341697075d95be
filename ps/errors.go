package ps

import (
	"errors"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"

	"github.com/nickyhof/GovernanceDB/core"
)

// translate maps a go-git error onto the error kinds of core.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotInitialized):
		return core.Wrap(core.ErrInvalidRepository, op, err)
	case errors.Is(err, plumbing.ErrReferenceNotFound),
		errors.Is(err, plumbing.ErrObjectNotFound),
		errors.Is(err, git.ErrRemoteNotFound),
		errors.Is(err, git.ErrTagNotFound):
		return core.Wrap(core.ErrNotFound, op, err)
	case errors.Is(err, git.ErrRemoteExists),
		errors.Is(err, git.ErrTagExists):
		return core.Wrap(core.ErrAlreadyExists, op, err)
	default:
		var e *core.Error
		if errors.As(err, &e) {
			return err
		}
		return core.Backend(op, err)
	}
}

func toPlumbing(c core.CommitHash) plumbing.Hash {
	return plumbing.NewHash(c.String())
}

func fromPlumbing(h plumbing.Hash) core.CommitHash {
	c, _ := core.ParseCommitHash(h.String())
	return c
}
