package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nickyhof/GovernanceDB/dlogger"
	"github.com/nickyhof/GovernanceDB/ps"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "govdb-server",
		Short: "Serve read-only queries on a GovernanceDB repository",
		Long: `govdb-server answers line delimited JSON queries on the commit graph of a
repository, one request per line, one response per line.

Every flag can also be set with a GOVDB_SERVER_ environment variable (for
example GOVDB_SERVER_JWT_SECRET) or in a config file passed with --config.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := initConfig(v); err != nil {
				return err
			}
			return run(v)
		},
	}

	flags := cmd.Flags()
	flags.String("config", "", "config file (yaml, json or toml)")
	flags.String("dir", ".", "repository directory")
	flags.String("addr", ":7070", "address to listen on")
	flags.String("log-level", dlogger.LogLevelInfo, "log level (debug, info, warn, error or none)")
	flags.String("tls-cert", "", "TLS certificate file")
	flags.String("tls-key", "", "TLS private key file")
	flags.String("jwt-secret", "", "shared secret of HS256/384/512 tokens, enables authentication")
	flags.String("jwt-issuer", "", "required iss claim")
	flags.String("jwt-audience", "", "required aud claim")
	flags.String("jwt-name-claim", "name", "claim holding the user's name")
	flags.String("jwt-email-claim", "email", "claim holding the user's email")
	_ = v.BindPFlags(flags)
	return cmd
}

func initConfig(v *viper.Viper) error {
	v.SetEnvPrefix("GOVDB_SERVER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", file, err)
		}
	}
	return nil
}

// authConfig returns nil unless a JWT secret is configured.
func authConfig(v *viper.Viper) *AuthConfig {
	secret := v.GetString("jwt-secret")
	if secret == "" {
		return nil
	}
	return &AuthConfig{
		Enabled:    true,
		JWTSecret:  secret,
		Issuer:     v.GetString("jwt-issuer"),
		Audience:   v.GetString("jwt-audience"),
		NameClaim:  v.GetString("jwt-name-claim"),
		EmailClaim: v.GetString("jwt-email-claim"),
	}
}

func run(v *viper.Viper) error {
	log, err := dlogger.GetLogger(v.GetString("log-level"))
	if err != nil {
		return err
	}
	defer log.Sync()

	repo, err := ps.Open(v.GetString("dir"), ps.WithLogger(log))
	if err != nil {
		return err
	}
	defer repo.Close()

	server := NewServer(repo, WithLogger(log), WithAuth(authConfig(v)))
	addr := v.GetString("addr")
	cert, key := v.GetString("tls-cert"), v.GetString("tls-key")
	switch {
	case cert != "" && key != "":
		err = server.StartTLS(addr, cert, key)
	case cert != "" || key != "":
		return fmt.Errorf("--tls-cert and --tls-key must be set together")
	default:
		err = server.Start(addr)
	}
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	log.Info("shutting down", zap.Stringer("signal", sig))
	return server.Stop()
}
