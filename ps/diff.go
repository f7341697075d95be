package ps

import (
	"bytes"
	"errors"
	"os"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	"github.com/go-git/go-billy/v6"
	"github.com/go-git/go-billy/v6/util"

	"github.com/nickyhof/GovernanceDB/core"
)

type patchedFile struct {
	name    string
	remove  string
	content []byte
	mode    os.FileMode
	delete  bool
}

// applyDiff applies a unified git diff to fs. Every file is patched in
// memory first, so a diff that does not apply leaves fs untouched.
func applyDiff(op string, fs billy.Filesystem, diff string) error {
	files, _, err := gitdiff.Parse(strings.NewReader(diff))
	if err != nil {
		return core.InvalidArgument(op, "malformed diff: %v", err)
	}

	results := make([]patchedFile, 0, len(files))
	for _, f := range files {
		var src []byte
		if !f.IsNew {
			src, err = util.ReadFile(fs, f.OldName)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return core.InvalidArgument(op, "diff modifies missing file %s", f.OldName)
				}
				return core.Backend(op, err)
			}
		}

		if f.IsDelete {
			results = append(results, patchedFile{name: f.OldName, delete: true})
			continue
		}

		var out bytes.Buffer
		if err := gitdiff.Apply(&out, bytes.NewReader(src), f); err != nil {
			return core.InvalidArgument(op, "diff does not apply to %s: %v", f.NewName, err)
		}

		result := patchedFile{name: f.NewName, content: out.Bytes(), mode: f.NewMode.Perm()}
		if result.mode == 0 {
			result.mode = 0644
		}
		if f.IsRename && f.OldName != f.NewName {
			result.remove = f.OldName
		}
		results = append(results, result)
	}

	for _, r := range results {
		if r.delete {
			if err := fs.Remove(r.name); err != nil {
				return core.Backend(op, err)
			}
			continue
		}
		if r.remove != "" {
			if err := fs.Remove(r.remove); err != nil {
				return core.Backend(op, err)
			}
		}
		if err := util.WriteFile(fs, r.name, r.content, r.mode); err != nil {
			return core.Backend(op, err)
		}
	}
	return nil
}
