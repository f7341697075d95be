package ps

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/go-git/go-billy/v6"
	"github.com/go-git/go-billy/v6/memfs"
	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/cache"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/storage/filesystem"
	"github.com/go-git/go-git/v6/storage/memory"
	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/nickyhof/GovernanceDB/core"
)

const (
	// DefaultBranch is the branch HEAD points to in a new repository
	DefaultBranch = "main"

	// GenesisMessage is the message of the commit created by Init
	GenesisMessage = "genesis"

	lockFile = "governancedb.lock"
)

var (
	ErrNotInitialized   = errors.New("persistence layer not initialized")
	ErrRepositoryLocked = errors.New("repository is held by another handle")
)

// Persistence is a core.Repository backed by a go-git repository.
type Persistence struct {
	repo     *git.Repository
	mu       sync.RWMutex
	dir      string
	lock     *flock.Flock
	cleanup  runtime.Cleanup
	identity core.Identity
	auth     *RemoteAuth
	log      *zap.Logger
}

var _ core.Repository = (*Persistence)(nil)

type options struct {
	logger        *zap.Logger
	identity      core.Identity
	auth          *RemoteAuth
	workTree      billy.Filesystem
	initialBranch string
}

// Option configures a Persistence.
type Option func(*options)

// WithLogger sets the logger used for repository events.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithIdentity sets the author and committer of new commits.
func WithIdentity(id core.Identity) Option {
	return func(o *options) { o.identity = id }
}

// WithAuth sets the credentials used by FetchAll.
func WithAuth(auth *RemoteAuth) Option {
	return func(o *options) { o.auth = auth }
}

// WithWorkTree sets the working tree of an in-memory repository. Its
// contents become the genesis commit.
func WithWorkTree(fs billy.Filesystem) Option {
	return func(o *options) { o.workTree = fs }
}

// WithInitialBranch sets the branch created by Init.
func WithInitialBranch(name string) Option {
	return func(o *options) { o.initialBranch = name }
}

func defaultOptions() *options {
	return &options{
		logger:        zap.NewNop(),
		identity:      core.Identity{Name: "governancedb", Email: "governancedb@localhost"},
		initialBranch: DefaultBranch,
	}
}

func newOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Init creates a repository in dir and commits the current content of the
// directory as the genesis commit on the initial branch.
func Init(dir string, opts ...Option) (*Persistence, error) {
	const op = "init repository"
	o := newOptions(opts)

	gitDir := filepath.Join(dir, git.GitDirName)
	if _, err := os.Stat(gitDir); err == nil {
		return nil, core.AlreadyExists(op, "%s", dir)
	}
	if err := os.MkdirAll(gitDir, 0755); err != nil {
		return nil, core.Backend(op, err)
	}

	lock, err := acquireLock(gitDir)
	if err != nil {
		return nil, errors.Join(core.Backend(op, err), os.RemoveAll(gitDir))
	}

	wt := osfs.New(dir)
	repo, err := git.Init(newFileStorage(wt), git.WithWorkTree(wt))
	if err != nil {
		lock.Unlock()
		return nil, errors.Join(core.Backend(op, err), os.RemoveAll(gitDir))
	}

	p := newPersistence(repo, dir, lock, o)
	if err := p.genesis(o.initialBranch); err != nil {
		p.Close()
		return nil, errors.Join(err, os.RemoveAll(gitDir))
	}
	p.log.Info("repository initialized", zap.String("dir", dir), zap.String("branch", o.initialBranch))
	return p, nil
}

// Open opens the repository in dir and locks it until Close.
func Open(dir string, opts ...Option) (*Persistence, error) {
	const op = "open repository"
	o := newOptions(opts)

	gitDir := filepath.Join(dir, git.GitDirName)
	if _, err := os.Stat(gitDir); err != nil {
		return nil, core.NotFound(op, "no repository in %s", dir)
	}

	lock, err := acquireLock(gitDir)
	if err != nil {
		return nil, core.Backend(op, err)
	}

	wt := osfs.New(dir)
	repo, err := git.Open(newFileStorage(wt), wt)
	if err != nil {
		lock.Unlock()
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, core.NotFound(op, "no repository in %s", dir)
		}
		return nil, core.Backend(op, err)
	}

	p := newPersistence(repo, dir, lock, o)
	p.log.Debug("repository opened", zap.String("dir", dir))
	return p, nil
}

// InitMemory creates a repository held entirely in memory. It is meant for
// tests and ephemeral nodes.
func InitMemory(opts ...Option) (*Persistence, error) {
	const op = "init memory repository"
	o := newOptions(opts)

	wt := o.workTree
	if wt == nil {
		wt = memfs.New()
	}

	repo, err := git.Init(memory.NewStorage(), git.WithWorkTree(wt))
	if err != nil {
		return nil, core.Backend(op, err)
	}

	p := newPersistence(repo, "", nil, o)
	if err := p.genesis(o.initialBranch); err != nil {
		return nil, err
	}
	return p, nil
}

func newFileStorage(wt billy.Filesystem) *filesystem.Storage {
	dot, _ := wt.Chroot(git.GitDirName)
	return filesystem.NewStorageWithOptions(
		dot,
		cache.NewObjectLRUDefault(),
		filesystem.Options{ExclusiveAccess: true})
}

func acquireLock(gitDir string) (*flock.Flock, error) {
	lock := flock.New(filepath.Join(gitDir, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, ErrRepositoryLocked
	}
	return lock, nil
}

func newPersistence(repo *git.Repository, dir string, lock *flock.Flock, o *options) *Persistence {
	p := &Persistence{
		repo:     repo,
		dir:      dir,
		lock:     lock,
		identity: o.identity,
		auth:     o.auth,
		log:      o.logger.Named("ps"),
	}
	if lock != nil {
		p.cleanup = runtime.AddCleanup(p, func(l *flock.Flock) { _ = l.Unlock() }, lock)
	}
	return p
}

// genesis points HEAD at the initial branch and commits the working tree.
func (p *Persistence) genesis(branch string) error {
	const op = "create genesis commit"
	if branch == "" {
		return core.InvalidArgument(op, "empty initial branch")
	}

	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branch))
	if err := p.repo.Storer.SetReference(head); err != nil {
		return core.Backend(op, err)
	}

	if _, err := p.commitWorktree(op, GenesisMessage); err != nil {
		return err
	}
	return nil
}

// IsInitialized returns true if the persistence layer has a valid repository
func (p *Persistence) IsInitialized() bool {
	return p != nil && p.repo != nil
}

func (p *Persistence) ensureInitialized() error {
	if !p.IsInitialized() {
		return ErrNotInitialized
	}
	return nil
}

// Close releases the repository lock. The handle must not be used afterwards.
func (p *Persistence) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lock == nil {
		return nil
	}
	p.cleanup.Stop()
	err := p.lock.Unlock()
	p.lock = nil
	p.repo = nil
	if err != nil {
		return core.Backend("close repository", err)
	}
	return nil
}

// Dir returns the directory of the repository, or "" for a memory repository.
func (p *Persistence) Dir() string {
	return p.dir
}

func (p *Persistence) signature() *object.Signature {
	return &object.Signature{
		Name:  p.identity.Name,
		Email: p.identity.Email,
		When:  time.Now(),
	}
}
