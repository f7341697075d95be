package GovernanceDB

import (
	"errors"
	"io"

	"github.com/nickyhof/GovernanceDB/core"
	"github.com/nickyhof/GovernanceDB/kv"
)

// Instance pairs the commit graph of a governance repository with the
// key-value state derived from it.
type Instance struct {
	Repository core.Repository
	State      kv.Storage
}

func Open(repo core.Repository, state kv.Storage) *Instance {
	return &Instance{
		Repository: repo,
		State:      state,
	}
}

// Apply runs fn against the state as one batch. The checkpoint is committed
// when fn succeeds; otherwise the state is reverted to it.
func (instance *Instance) Apply(fn func(kv.Storage) error) error {
	if err := fn(instance.State); err != nil {
		if revertErr := instance.State.RevertToLatestCheckpoint(); revertErr != nil {
			return errors.Join(err, revertErr)
		}
		return err
	}
	return instance.State.CommitCheckpoint()
}

// Record stores a governance decision as a semantic commit on HEAD.
func (instance *Instance) Record(commit core.SemanticCommit) (core.CommitHash, error) {
	return instance.Repository.CreateSemanticCommit(commit)
}

// Close releases the repository and the state if they hold resources.
func (instance *Instance) Close() error {
	var errs []error
	for _, c := range []any{instance.Repository, instance.State} {
		if closer, ok := c.(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
	}
	return errors.Join(errs...)
}
