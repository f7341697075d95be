package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nickyhof/GovernanceDB/core"
	"github.com/nickyhof/GovernanceDB/dlogger"
	"github.com/nickyhof/GovernanceDB/kv"
	"github.com/nickyhof/GovernanceDB/ps"
)

// Version is set at build time via -ldflags
var Version = "dev"

// app holds what every command needs: the configuration and where to print.
type app struct {
	v   *viper.Viper
	out io.Writer
	log *zap.Logger
}

func main() {
	cmd := newRootCmd(viper.New(), os.Stdout)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper, out io.Writer) *cobra.Command {
	a := &app{v: v, out: out, log: zap.NewNop()}

	cmd := &cobra.Command{
		Use:   "govdb",
		Short: "Manage a GovernanceDB repository",
		Long: `govdb manages the git repository that holds the governance history of a chain.

Every flag can also be set with a GOVDB_ environment variable (for example
GOVDB_DIR or GOVDB_LOG_LEVEL) or in a config file passed with --config.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initConfig()
		},
	}
	cmd.SetOut(out)

	flags := cmd.PersistentFlags()
	flags.String("config", "", "config file (yaml, json or toml)")
	flags.String("dir", ".", "repository directory")
	flags.String("log-level", "none", "log level (debug, info, warn, error or none)")
	flags.String("name", "governancedb", "author name of new commits")
	flags.String("email", "governancedb@localhost", "author email of new commits")
	flags.String("auth-type", string(ps.AuthTypeNone), "remote authentication (none, token, basic or ssh)")
	flags.String("auth-token", "", "token for token authentication")
	flags.String("auth-username", "", "username for basic authentication")
	flags.String("auth-password", "", "password for basic authentication")
	flags.String("auth-key", "", "private key for ssh authentication")
	flags.String("auth-passphrase", "", "passphrase of the ssh key")
	_ = v.BindPFlags(flags)

	cmd.AddCommand(
		newInitCmd(a),
		newBranchCmd(a),
		newTagCmd(a),
		newCheckoutCmd(a),
		newCommitCmd(a),
		newSemanticCmd(a),
		newShowCmd(a),
		newHeadCmd(a),
		newInitialCmd(a),
		newAncestorsCmd(a),
		newDescendantsCmd(a),
		newChildrenCmd(a),
		newMergeBaseCmd(a),
		newGCCmd(a),
		newRemoteCmd(a),
		newStateCmd(a),
	)
	return cmd
}

// initConfig reads the environment and the config file, then builds the logger.
func (a *app) initConfig() error {
	a.v.SetEnvPrefix("GOVDB")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if file := a.v.GetString("config"); file != "" {
		a.v.SetConfigFile(file)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", file, err)
		}
	}

	log, err := dlogger.GetLogger(a.v.GetString("log-level"))
	if err != nil {
		return err
	}
	a.log = log
	return nil
}

func (a *app) repoOptions() []ps.Option {
	opts := []ps.Option{
		ps.WithLogger(a.log),
		ps.WithIdentity(core.Identity{
			Name:  a.v.GetString("name"),
			Email: a.v.GetString("email"),
		}),
	}
	if authType := a.v.GetString("auth-type"); authType != "" && authType != string(ps.AuthTypeNone) {
		opts = append(opts, ps.WithAuth(&ps.RemoteAuth{
			Type:       ps.AuthType(authType),
			Token:      a.v.GetString("auth-token"),
			Username:   a.v.GetString("auth-username"),
			Password:   a.v.GetString("auth-password"),
			KeyPath:    a.v.GetString("auth-key"),
			Passphrase: a.v.GetString("auth-passphrase"),
		}))
	}
	return opts
}

// withRepo opens the configured repository for the duration of fn.
func (a *app) withRepo(fn func(repo *ps.Persistence) error) error {
	repo, err := ps.Open(a.v.GetString("dir"), a.repoOptions()...)
	if err != nil {
		return err
	}
	defer repo.Close()
	return fn(repo)
}

func (a *app) storeOptions() []kv.Option {
	return []kv.Option{kv.WithLogger(a.log), kv.WithSyncWrites(true)}
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) printLines(lines []string) {
	for _, line := range lines {
		fmt.Fprintln(a.out, line)
	}
}

func (a *app) printHashes(hashes []core.CommitHash) {
	for _, h := range hashes {
		fmt.Fprintln(a.out, h)
	}
}

// resolve accepts a commit hash, a branch or a tag, in that order.
func resolve(repo core.RepositoryReader, name string) (core.CommitHash, error) {
	if h, err := core.ParseCommitHash(name); err == nil {
		return h, nil
	}
	if h, err := repo.LocateBranch(name); err == nil {
		return h, nil
	}
	if h, err := repo.LocateTag(name); err == nil {
		return h, nil
	}
	return core.ZeroCommitHash, core.NotFound("resolve", "no commit, branch or tag named %s", name)
}
