package main

import (
	"context"
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/nickyhof/GovernanceDB/core"
	"github.com/nickyhof/GovernanceDB/ps"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func newInitCmd(a *app) *cobra.Command {
	var branch string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a repository and commit the directory as genesis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := append(a.repoOptions(), ps.WithInitialBranch(branch))
			repo, err := ps.Init(a.v.GetString("dir"), opts...)
			if err != nil {
				return err
			}
			defer repo.Close()

			head, err := repo.GetHead()
			if err != nil {
				return err
			}
			a.printf("initialized %s on %s at %s\n", repo.Dir(), branch, head)
			return nil
		},
	}
	cmd.Flags().StringVar(&branch, "branch", ps.DefaultBranch, "initial branch")
	return cmd
}

func newBranchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "branch",
		Short: "List, create, move and delete branches",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List branches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withRepo(func(repo *ps.Persistence) error {
				branches, err := repo.ListBranches()
				if err != nil {
					return err
				}
				current, _ := repo.GetCurrentBranch()
				for _, b := range branches {
					marker := " "
					if b == current {
						marker = "*"
					}
					a.printf("%s %s\n", marker, b)
				}
				return nil
			})
		},
	}, &cobra.Command{
		Use:   "create <branch> <commit>",
		Short: "Create a branch at a commit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(repo *ps.Persistence) error {
				commit, err := resolve(repo, args[1])
				if err != nil {
					return err
				}
				return repo.CreateBranch(args[0], commit)
			})
		},
	}, &cobra.Command{
		Use:   "move <branch> <commit>",
		Short: "Point a branch at another commit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(repo *ps.Persistence) error {
				commit, err := resolve(repo, args[1])
				if err != nil {
					return err
				}
				return repo.MoveBranch(args[0], commit)
			})
		},
	}, &cobra.Command{
		Use:   "delete <branch>",
		Short: "Delete a branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(repo *ps.Persistence) error {
				return repo.DeleteBranch(args[0])
			})
		},
	})
	return cmd
}

func newTagCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "List, create and remove tags",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withRepo(func(repo *ps.Persistence) error {
				tags, err := repo.ListTags()
				if err != nil {
					return err
				}
				a.printLines(tags)
				return nil
			})
		},
	}, &cobra.Command{
		Use:   "create <tag> <commit>",
		Short: "Create a tag at a commit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(repo *ps.Persistence) error {
				commit, err := resolve(repo, args[1])
				if err != nil {
					return err
				}
				return repo.CreateTag(args[0], commit)
			})
		},
	}, &cobra.Command{
		Use:   "remove <tag>",
		Short: "Remove a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(repo *ps.Persistence) error {
				return repo.RemoveTag(args[0])
			})
		},
	})
	return cmd
}

func newCheckoutCmd(a *app) *cobra.Command {
	var detach, clean bool
	cmd := &cobra.Command{
		Use:   "checkout [<branch>|<commit>]",
		Short: "Switch HEAD to a branch, or detach it at a commit",
		Long: `Switch HEAD to a branch. With --detach, HEAD is moved to the commit
without a branch. With --clean and no argument, the working tree is reset to
HEAD and untracked files are removed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(repo *ps.Persistence) error {
				switch {
				case clean && len(args) == 0:
					return repo.CheckoutClean()
				case len(args) == 0:
					return fmt.Errorf("checkout needs a branch or commit")
				case detach:
					commit, err := resolve(repo, args[0])
					if err != nil {
						return err
					}
					return repo.CheckoutDetach(commit)
				default:
					return repo.Checkout(args[0])
				}
			})
		},
	}
	cmd.Flags().BoolVar(&detach, "detach", false, "detach HEAD at the commit")
	cmd.Flags().BoolVar(&clean, "clean", false, "discard working tree changes")
	return cmd
}

func newCommitCmd(a *app) *cobra.Command {
	var message, diffFile string
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Commit the working tree, optionally after applying a diff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var diff *string
			if diffFile != "" {
				data, err := readInput(cmd, diffFile)
				if err != nil {
					return err
				}
				text := string(data)
				diff = &text
			}
			return a.withRepo(func(repo *ps.Persistence) error {
				hash, err := repo.CreateCommit(message, diff)
				if err != nil {
					return err
				}
				a.printf("%s\n", hash)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().StringVar(&diffFile, "diff", "", "unified diff to apply first (- for stdin)")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func newSemanticCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "semantic",
		Short: "Create and read semantic commits",
	}

	var title, body, stateFile string
	create := &cobra.Command{
		Use:   "create",
		Short: "Record a governance decision",
		Long: `Record a governance decision. --state takes a JSON reserved state
(genesis_info, members, consensus_leader_order and version) that replaces the
reserved directory; without it only the message is recorded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			commit := core.SemanticCommit{Title: title, Body: body}
			if stateFile != "" {
				data, err := readInput(cmd, stateFile)
				if err != nil {
					return err
				}
				var state core.ReservedState
				if err := json.Unmarshal(data, &state); err != nil {
					return core.InvalidArgument("semantic create", "invalid reserved state: %v", err)
				}
				commit.ReservedState = &state
			}
			return a.withRepo(func(repo *ps.Persistence) error {
				hash, err := repo.CreateSemanticCommit(commit)
				if err != nil {
					return err
				}
				a.printf("%s\n", hash)
				return nil
			})
		},
	}
	create.Flags().StringVar(&title, "title", "", "single line title")
	create.Flags().StringVar(&body, "body", "", "body")
	create.Flags().StringVar(&stateFile, "state", "", "reserved state JSON file (- for stdin)")
	_ = create.MarkFlagRequired("title")

	read := &cobra.Command{
		Use:   "read <commit>",
		Short: "Print a semantic commit as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(repo *ps.Persistence) error {
				commit, err := resolve(repo, args[0])
				if err != nil {
					return err
				}
				sc, err := repo.ReadSemanticCommit(commit)
				if err != nil {
					return err
				}
				data, err := json.MarshalIndent(sc, "", "  ")
				if err != nil {
					return err
				}
				a.printf("%s\n", data)
				return nil
			})
		},
	}

	cmd.AddCommand(create, read)
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <commit>",
		Short: "Print the diff of a commit against its first parent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(repo *ps.Persistence) error {
				commit, err := resolve(repo, args[0])
				if err != nil {
					return err
				}
				diff, err := repo.ShowCommit(commit)
				if err != nil {
					return err
				}
				a.printf("%s", diff)
				return nil
			})
		},
	}
}

func newHeadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "head",
		Short: "Print the commit HEAD points to and the current branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withRepo(func(repo *ps.Persistence) error {
				head, err := repo.GetHead()
				if err != nil {
					return err
				}
				branch, err := repo.GetCurrentBranch()
				if err != nil {
					branch = "(detached)"
				}
				a.printf("%s %s\n", head, branch)
				return nil
			})
		},
	}
}

func newInitialCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "initial",
		Short: "Print the root commit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withRepo(func(repo *ps.Persistence) error {
				commit, err := repo.GetInitialCommit()
				if err != nil {
					return err
				}
				a.printf("%s\n", commit)
				return nil
			})
		},
	}
}

func newAncestorsCmd(a *app) *cobra.Command {
	var max int
	cmd := &cobra.Command{
		Use:   "ancestors <commit>",
		Short: "List the ancestors of a commit, direct parent first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(repo *ps.Persistence) error {
				commit, err := resolve(repo, args[0])
				if err != nil {
					return err
				}
				hashes, err := repo.ListAncestors(commit, max)
				if err != nil {
					return err
				}
				a.printHashes(hashes)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&max, "max", core.NoLimit, "maximum number of commits (negative for no limit)")
	return cmd
}

func newDescendantsCmd(a *app) *cobra.Command {
	var max int
	cmd := &cobra.Command{
		Use:   "descendants <commit>",
		Short: "List the descendants of a commit, direct child first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(repo *ps.Persistence) error {
				commit, err := resolve(repo, args[0])
				if err != nil {
					return err
				}
				hashes, err := repo.ListDescendants(commit, max)
				if err != nil {
					return err
				}
				a.printHashes(hashes)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&max, "max", core.NoLimit, "maximum number of commits (negative for no limit)")
	return cmd
}

func newChildrenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "children <commit>",
		Short: "List the direct children of a commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(repo *ps.Persistence) error {
				commit, err := resolve(repo, args[0])
				if err != nil {
					return err
				}
				hashes, err := repo.ListChildren(commit)
				if err != nil {
					return err
				}
				a.printHashes(hashes)
				return nil
			})
		},
	}
}

func newMergeBaseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "merge-base <commit> <commit>",
		Short: "Print the nearest common ancestor of two commits",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(repo *ps.Persistence) error {
				c1, err := resolve(repo, args[0])
				if err != nil {
					return err
				}
				c2, err := resolve(repo, args[1])
				if err != nil {
					return err
				}
				base, err := repo.FindMergeBase(c1, c2)
				if err != nil {
					return err
				}
				a.printf("%s\n", base)
				return nil
			})
		},
	}
}

func newGCCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Remove objects unreachable from any reference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withRepo(func(repo *ps.Persistence) error {
				return repo.RunGarbageCollection()
			})
		},
	}
}

func newRemoteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Manage remotes and fetch from them",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name> <url>",
		Short: "Add a remote",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(repo *ps.Persistence) error {
				return repo.AddRemote(args[0], args[1])
			})
		},
	}, &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a remote and its remote tracking branches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(repo *ps.Persistence) error {
				return repo.RemoveRemote(args[0])
			})
		},
	}, &cobra.Command{
		Use:   "list",
		Short: "List remotes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withRepo(func(repo *ps.Persistence) error {
				remotes, err := repo.ListRemotes()
				if err != nil {
					return err
				}
				for _, r := range remotes {
					a.printf("%s\t%s\n", r.Name, r.URL)
				}
				return nil
			})
		},
	}, &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the branches of every remote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withRepo(func(repo *ps.Persistence) error {
				return repo.FetchAll(commandContext(cmd))
			})
		},
	}, &cobra.Command{
		Use:   "tracking",
		Short: "List remote tracking branches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withRepo(func(repo *ps.Persistence) error {
				branches, err := repo.ListRemoteTrackingBranches()
				if err != nil {
					return err
				}
				for _, b := range branches {
					a.printf("%s/%s\t%s\t%s\n", b.Remote, b.Branch, b.Commit, b.URL)
				}
				return nil
			})
		},
	})
	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// readInput reads a file, or stdin when name is "-".
func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(name)
}
