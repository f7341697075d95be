package ps

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/config"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/transport"
	"github.com/go-git/go-git/v6/plumbing/transport/http"
	"github.com/go-git/go-git/v6/plumbing/transport/ssh"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nickyhof/GovernanceDB/core"
)

// AuthType defines the type of authentication
type AuthType string

const (
	AuthTypeNone  AuthType = "none"
	AuthTypeToken AuthType = "token"
	AuthTypeSSH   AuthType = "ssh"
	AuthTypeBasic AuthType = "basic"
)

// RemoteAuth holds authentication configuration for remote operations
type RemoteAuth struct {
	Type       AuthType
	Token      string // For token auth
	KeyPath    string // For SSH key auth
	Passphrase string // For SSH key with passphrase
	Username   string // For basic auth
	Password   string // For basic auth
}

// getAuthMethod converts RemoteAuth to go-git's AuthMethod
func (auth *RemoteAuth) getAuthMethod() (transport.AuthMethod, error) {
	if auth == nil {
		return nil, nil
	}

	switch auth.Type {
	case AuthTypeNone, "":
		return nil, nil

	case AuthTypeToken:
		// any non-empty username works with tokens
		return &http.BasicAuth{
			Username: "git",
			Password: auth.Token,
		}, nil

	case AuthTypeSSH:
		keyPath := auth.KeyPath
		if keyPath == "" {
			home, _ := os.UserHomeDir()
			keyPath = filepath.Join(home, ".ssh", "id_rsa")
		}
		return ssh.NewPublicKeysFromFile("git", keyPath, auth.Passphrase)

	case AuthTypeBasic:
		return &http.BasicAuth{
			Username: auth.Username,
			Password: auth.Password,
		}, nil

	default:
		return nil, fmt.Errorf("unknown auth type: %s", auth.Type)
	}
}

// AddRemote adds a named remote to the repository
func (p *Persistence) AddRemote(name, url string) error {
	const op = "add remote"
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureInitialized(); err != nil {
		return translate(op, err)
	}

	_, err := p.repo.CreateRemote(&config.RemoteConfig{
		Name: name,
		URLs: []string{url},
	})
	if errors.Is(err, git.ErrRemoteExists) {
		return core.AlreadyExists(op, "remote %s", name)
	}
	if err != nil {
		if errors.Is(err, config.ErrRemoteConfigEmptyName) || errors.Is(err, config.ErrRemoteConfigEmptyURL) {
			return core.InvalidArgument(op, "%v", err)
		}
		return translate(op, err)
	}
	p.log.Debug("remote added", zap.String("remote", name), zap.String("url", url))
	return nil
}

// RemoveRemote removes a remote and its remote tracking branches
func (p *Persistence) RemoveRemote(name string) error {
	const op = "remove remote"
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureInitialized(); err != nil {
		return translate(op, err)
	}

	if err := p.repo.DeleteRemote(name); err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return core.NotFound(op, "remote %s", name)
		}
		return translate(op, err)
	}

	refs, err := p.repo.References()
	if err != nil {
		return translate(op, err)
	}
	prefix := "refs/remotes/" + name + "/"
	var stale []plumbing.ReferenceName
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if strings.HasPrefix(ref.Name().String(), prefix) {
			stale = append(stale, ref.Name())
		}
		return nil
	})
	if err != nil {
		return translate(op, err)
	}
	for _, ref := range stale {
		if err := p.repo.Storer.RemoveReference(ref); err != nil {
			return translate(op, err)
		}
	}
	p.log.Debug("remote removed", zap.String("remote", name), zap.Int("tracking_refs", len(stale)))
	return nil
}

// ListRemotes returns all configured remotes ordered by name
func (p *Persistence) ListRemotes() ([]core.Remote, error) {
	const op = "list remotes"
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.ensureInitialized(); err != nil {
		return nil, translate(op, err)
	}

	remotes, err := p.remoteURLs()
	if err != nil {
		return nil, translate(op, err)
	}

	result := make([]core.Remote, 0, len(remotes))
	for name, url := range remotes {
		result = append(result, core.Remote{Name: name, URL: url})
	}
	slices.SortFunc(result, func(a, b core.Remote) int { return strings.Compare(a.Name, b.Name) })
	return result, nil
}

// ListRemoteTrackingBranches returns the branches of every remote as last
// fetched, ordered by remote then branch.
func (p *Persistence) ListRemoteTrackingBranches() ([]core.RemoteTrackingBranch, error) {
	const op = "list remote tracking branches"
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.ensureInitialized(); err != nil {
		return nil, translate(op, err)
	}

	remotes, err := p.remoteURLs()
	if err != nil {
		return nil, translate(op, err)
	}

	refs, err := p.repo.References()
	if err != nil {
		return nil, translate(op, err)
	}

	result := []core.RemoteTrackingBranch{}
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference || !ref.Name().IsRemote() {
			return nil
		}
		remote, branch, ok := strings.Cut(ref.Name().Short(), "/")
		if !ok {
			return nil
		}
		result = append(result, core.RemoteTrackingBranch{
			Remote: remote,
			URL:    remotes[remote],
			Branch: branch,
			Commit: fromPlumbing(ref.Hash()),
		})
		return nil
	})
	if err != nil {
		return nil, translate(op, err)
	}

	slices.SortFunc(result, func(a, b core.RemoteTrackingBranch) int {
		if c := strings.Compare(a.Remote, b.Remote); c != 0 {
			return c
		}
		return strings.Compare(a.Branch, b.Branch)
	})
	return result, nil
}

func (p *Persistence) remoteURLs() (map[string]string, error) {
	remotes, err := p.repo.Remotes()
	if err != nil {
		return nil, err
	}

	urls := make(map[string]string, len(remotes))
	for _, r := range remotes {
		cfg := r.Config()
		url := ""
		if len(cfg.URLs) > 0 {
			url = cfg.URLs[0]
		}
		urls[cfg.Name] = url
	}
	return urls, nil
}

// FetchAll fetches the branches of every remote into its remote tracking
// branches. A failing remote does not stop the others; all failures are
// returned together.
func (p *Persistence) FetchAll(ctx context.Context) error {
	const op = "fetch all"
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureInitialized(); err != nil {
		return translate(op, err)
	}

	authMethod, err := p.auth.getAuthMethod()
	if err != nil {
		return core.InvalidArgument(op, "failed to configure auth: %v", err)
	}

	remotes, err := p.repo.Remotes()
	if err != nil {
		return translate(op, err)
	}

	var errs error
	for _, r := range remotes {
		name := r.Config().Name
		refSpec := config.RefSpec(fmt.Sprintf("+refs/heads/*:refs/remotes/%s/*", name))

		err := p.repo.FetchContext(ctx, &git.FetchOptions{
			RemoteName: name,
			RefSpecs:   []config.RefSpec{refSpec},
			Auth:       authMethod,
		})
		if err == nil || errors.Is(err, git.NoErrAlreadyUpToDate) {
			p.log.Debug("fetched remote", zap.String("remote", name))
			continue
		}
		p.log.Warn("fetch failed", zap.String("remote", name), zap.Error(err))
		errs = multierr.Append(errs, fmt.Errorf("failed to fetch from '%s': %w", name, err))
	}

	if errs != nil {
		return core.Backend(op, errs)
	}
	return nil
}
