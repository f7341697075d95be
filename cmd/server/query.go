package main

import (
	"errors"

	"github.com/nickyhof/GovernanceDB/core"
)

// execute answers one request. Every op is read-only.
func (s *Server) execute(req Request) (any, error) {
	const op = "query"

	switch req.Op {
	case "head":
		return s.head()
	case "initial":
		h, err := s.repo.GetInitialCommit()
		return hashResult(h, err)
	case "branches":
		if req.Commit == "" {
			return s.repo.ListBranches()
		}
		commit, err := s.resolve(req.Commit)
		if err != nil {
			return nil, err
		}
		return s.repo.GetBranches(commit)
	case "tags":
		if req.Commit == "" {
			return s.repo.ListTags()
		}
		commit, err := s.resolve(req.Commit)
		if err != nil {
			return nil, err
		}
		return s.repo.GetTags(commit)
	case "locate_branch":
		if req.Branch == "" {
			return nil, core.InvalidArgument(op, "locate_branch needs a branch")
		}
		return hashResult(s.repo.LocateBranch(req.Branch))
	case "locate_tag":
		if req.Tag == "" {
			return nil, core.InvalidArgument(op, "locate_tag needs a tag")
		}
		return hashResult(s.repo.LocateTag(req.Tag))
	case "ancestors", "descendants":
		commit, err := s.resolve(req.Commit)
		if err != nil {
			return nil, err
		}
		limit := core.NoLimit
		if req.Max != nil {
			limit = *req.Max
		}
		if req.Op == "ancestors" {
			return hashesResult(s.repo.ListAncestors(commit, limit))
		}
		return hashesResult(s.repo.ListDescendants(commit, limit))
	case "children":
		commit, err := s.resolve(req.Commit)
		if err != nil {
			return nil, err
		}
		return hashesResult(s.repo.ListChildren(commit))
	case "merge_base":
		a, err := s.resolve(req.Commit)
		if err != nil {
			return nil, err
		}
		b, err := s.resolve(req.Other)
		if err != nil {
			return nil, err
		}
		return hashResult(s.repo.FindMergeBase(a, b))
	case "show":
		commit, err := s.resolve(req.Commit)
		if err != nil {
			return nil, err
		}
		return s.repo.ShowCommit(commit)
	case "semantic":
		commit, err := s.resolve(req.Commit)
		if err != nil {
			return nil, err
		}
		return s.repo.ReadSemanticCommit(commit)
	case "remotes":
		return s.repo.ListRemotes()
	case "tracking":
		branches, err := s.repo.ListRemoteTrackingBranches()
		if err != nil {
			return nil, err
		}
		out := make([]trackingResult, len(branches))
		for i, b := range branches {
			out[i] = trackingResult{Remote: b.Remote, URL: b.URL, Branch: b.Branch, Commit: b.Commit.String()}
		}
		return out, nil
	case "":
		return nil, core.InvalidArgument(op, "missing op")
	default:
		return nil, core.InvalidArgument(op, "unknown op %q", req.Op)
	}
}

type trackingResult struct {
	Remote string `json:"remote"`
	URL    string `json:"url"`
	Branch string `json:"branch"`
	Commit string `json:"commit"`
}

func (s *Server) head() (HeadResponse, error) {
	h, err := s.repo.GetHead()
	if err != nil {
		return HeadResponse{}, err
	}
	branch, err := s.repo.GetCurrentBranch()
	switch {
	case errors.Is(err, core.ErrDetachedHead):
		return HeadResponse{Commit: h.String(), Detached: true}, nil
	case err != nil:
		return HeadResponse{}, err
	}
	return HeadResponse{Commit: h.String(), Branch: branch}, nil
}

// resolve accepts a commit hash, a branch or a tag, in that order.
func (s *Server) resolve(name string) (core.CommitHash, error) {
	if name == "" {
		return core.ZeroCommitHash, core.InvalidArgument("resolve", "missing commit")
	}
	if h, err := core.ParseCommitHash(name); err == nil {
		return h, nil
	}
	if h, err := s.repo.LocateBranch(name); err == nil {
		return h, nil
	}
	if h, err := s.repo.LocateTag(name); err == nil {
		return h, nil
	}
	return core.ZeroCommitHash, core.NotFound("resolve", "no commit, branch or tag named %s", name)
}

func hashResult(h core.CommitHash, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return h.String(), nil
}

func hashesResult(hashes []core.CommitHash, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	out := make([]string, len(hashes))
	for i, h := range hashes {
		out[i] = h.String()
	}
	return out, nil
}
