package main

import (
	"github.com/spf13/cobra"

	"github.com/nickyhof/GovernanceDB/core"
	"github.com/nickyhof/GovernanceDB/kv"
)

func newStateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Export and import the checkpoint of a state store",
		Long: `Export and import the checkpoint of the badger state store in --state-dir.

Snapshot URLs may be local paths, file://, s3://bucket/key or, for import
only, http(s):// URLs. S3 credentials come from the --s3-* flags or the
default AWS credential chain.`,
	}

	flags := cmd.PersistentFlags()
	flags.String("state-dir", "state", "badger state directory")
	flags.String("s3-region", "", "S3 region")
	flags.String("s3-endpoint", "", "S3 endpoint for S3 compatible stores")
	flags.String("s3-access-key", "", "S3 access key")
	flags.String("s3-secret-key", "", "S3 secret key")
	_ = a.v.BindPFlags(flags)

	cmd.AddCommand(&cobra.Command{
		Use:   "export <url>",
		Short: "Write the checkpoint of the state store to a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := kv.OpenBadgerStore(a.v.GetString("state-dir"), a.storeOptions()...)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := kv.Export(commandContext(cmd), store, args[0], a.s3Config()); err != nil {
				return err
			}
			a.printf("exported to %s\n", args[0])
			return nil
		},
	}, &cobra.Command{
		Use:   "import <url>",
		Short: "Load a snapshot into an empty state store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := kv.Import(commandContext(cmd), args[0], a.s3Config(), a.storeOptions()...)
			if err != nil {
				return err
			}

			store, err := kv.OpenBadgerStore(a.v.GetString("state-dir"), a.storeOptions()...)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := load(store, snapshot)
			if err != nil {
				return err
			}
			a.printf("imported %d entries from %s\n", n, args[0])
			return nil
		},
	})
	return cmd
}

func (a *app) s3Config() *kv.S3Config {
	cfg := &kv.S3Config{
		AccessKey: a.v.GetString("s3-access-key"),
		SecretKey: a.v.GetString("s3-secret-key"),
		Region:    a.v.GetString("s3-region"),
		Endpoint:  a.v.GetString("s3-endpoint"),
	}
	if *cfg == (kv.S3Config{}) {
		return nil
	}
	return cfg
}

// load copies the checkpoint of src into dst and checkpoints it. dst must
// not hold any checkpointed data. Uncommitted changes in dst are discarded
// first so they never end up in the imported checkpoint.
func load(dst *kv.BadgerStore, src kv.CheckpointReader) (int, error) {
	const op = "import state"
	if err := dst.RevertToLatestCheckpoint(); err != nil {
		return 0, err
	}
	empty := true
	err := dst.ForEachCheckpoint(func(core.Hash256, []byte) error {
		empty = false
		return nil
	})
	if err != nil {
		return 0, err
	}
	if !empty {
		return 0, core.AlreadyExists(op, "state store already holds data")
	}

	n := 0
	err = src.ForEachCheckpoint(func(key core.Hash256, value []byte) error {
		n++
		return dst.InsertOrUpdate(key, value)
	})
	if err != nil {
		if revertErr := dst.RevertToLatestCheckpoint(); revertErr != nil {
			return 0, revertErr
		}
		return 0, err
	}
	return n, dst.CommitCheckpoint()
}
