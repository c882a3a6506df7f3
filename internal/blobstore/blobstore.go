// Package blobstore is the attachment-store collaborator. The core never
// keeps raw bytes in a container document, only the opaque references
// returned from Put.
package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"trackline/internal/domain"
)

// Store accepts attachment payloads and returns retrievable references.
type Store interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
}

// Upload is an incoming attachment as the API receives it.
type Upload struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Data []byte `json:"data"`
}

// FS stores blobs content-addressed under dir. Identical payloads share one
// file; the reference embeds the digest and the original name.
type FS struct {
	Dir string
}

func NewFS(dir string) (FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return FS{}, domain.StorageError{Op: "init", Err: err}
	}
	return FS{Dir: dir}, nil
}

func (s FS) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", domain.ValidationError{Field: "data", Reason: "attachment payload is empty"}
	}
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	path := filepath.Join(s.Dir, digest)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", domain.StorageError{Op: "put", Err: err}
		}
	} else if err != nil {
		return "", domain.StorageError{Op: "put", Err: err}
	}
	return fmt.Sprintf("blob://%s/%s", digest, sanitize(name)), nil
}

func (s FS) Get(ctx context.Context, ref string) ([]byte, error) {
	digest, err := parseRef(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.Dir, digest))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.NotFoundError{Kind: "attachment", ID: ref}
		}
		return nil, domain.StorageError{Op: "get", Err: err}
	}
	return data, nil
}

func parseRef(ref string) (string, error) {
	rest, ok := strings.CutPrefix(ref, "blob://")
	if !ok {
		return "", domain.ValidationError{Field: "ref", Reason: "not a blob reference"}
	}
	digest, _, _ := strings.Cut(rest, "/")
	if len(digest) != sha256.Size*2 {
		return "", domain.ValidationError{Field: "ref", Reason: "malformed blob reference"}
	}
	return digest, nil
}

func sanitize(name string) string {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "attachment"
	}
	return strings.ReplaceAll(name, " ", "_")
}
