package core

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Hash256 is a 32-byte content digest.
type Hash256 [32]byte

// ZeroHash256 is the all-zero digest.
var ZeroHash256 Hash256

// HashOf returns the BLAKE2b-256 digest of data.
func HashOf(data []byte) Hash256 {
	return Hash256(blake2b.Sum256(data))
}

// HashString returns the digest of the UTF-8 bytes of s.
func HashString(s string) Hash256 {
	return HashOf([]byte(s))
}

// ParseHash256 parses the 64 character hex form produced by String.
func ParseHash256(s string) (Hash256, error) {
	var h Hash256
	if err := decodeHex(h[:], s); err != nil {
		return Hash256{}, InvalidArgument("parse hash", "%v", err)
	}
	return h, nil
}

func (h Hash256) String() string {
	return hex.EncodeToString(h[:])
}

// Compare orders digests by byte value.
func (h Hash256) Compare(other Hash256) int {
	return bytes.Compare(h[:], other[:])
}

func (h Hash256) IsZero() bool {
	return h == ZeroHash256
}

// CommitHash identifies a commit. Adapters with shorter native ids store them
// left-aligned and leave the remaining bytes zero.
type CommitHash [32]byte

// ZeroCommitHash never names a real commit.
var ZeroCommitHash CommitHash

// sha1Size is the width of git SHA-1 object ids.
const sha1Size = 20

// NewCommitHash builds a CommitHash from a native object id of 20 or 32 bytes.
func NewCommitHash(id []byte) (CommitHash, error) {
	var c CommitHash
	if len(id) != sha1Size && len(id) != len(c) {
		return ZeroCommitHash, InvalidArgument("commit hash", "%x has invalid size of %d", id, len(id))
	}
	copy(c[:], id)
	return c, nil
}

// ParseCommitHash parses either a 40 character (SHA-1) or a 64 character hex id.
func ParseCommitHash(s string) (CommitHash, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ZeroCommitHash, InvalidArgument("parse commit hash", "%v", err)
	}
	return NewCommitHash(raw)
}

// Bytes returns the native object id, without the zero padding of SHA-1 ids.
func (c CommitHash) Bytes() []byte {
	if c.isSHA1() {
		return append([]byte(nil), c[:sha1Size]...)
	}
	return append([]byte(nil), c[:]...)
}

func (c CommitHash) String() string {
	return hex.EncodeToString(c.Bytes())
}

// Short returns the first seven hex characters.
func (c CommitHash) Short() string {
	return c.String()[:7]
}

func (c CommitHash) IsZero() bool {
	return c == ZeroCommitHash
}

func (c CommitHash) Compare(other CommitHash) int {
	return bytes.Compare(c[:], other[:])
}

func (c CommitHash) isSHA1() bool {
	for _, b := range c[sha1Size:] {
		if b != 0 {
			return false
		}
	}
	return true
}

func decodeHex(dst []byte, s string) error {
	if len(s) != hex.EncodedLen(len(dst)) {
		return fmt.Errorf("expected %d hex characters, got %d", hex.EncodedLen(len(dst)), len(s))
	}
	_, err := hex.Decode(dst, []byte(s))
	return err
}

// Branch is the name of a branch, without the refs/heads/ prefix.
type Branch = string

// Tag is the name of a tag, without the refs/tags/ prefix.
type Tag = string

// Identity identifies the author of commits (Git commit author).
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (i Identity) String() string {
	return fmt.Sprintf("%s <%s>", i.Name, i.Email)
}
