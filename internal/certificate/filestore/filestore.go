// Package filestore keeps certificate artifacts on the local filesystem under
// names derived from the certificate key.
//
// Writes are two-phase: Stage writes the bytes under a unique temporary name,
// Promote links the staged file to <key>.<ext> and refuses to replace an
// existing artifact. A losing duplicate therefore never clobbers the winner.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"certledger/internal/certificate/models"
	"certledger/pkg/platform/sentinel"
)

const stagingDir = ".staging"

// ErrInvalidName is returned for keys that cannot be used as a file name.
var ErrInvalidName = errors.New("filestore: key is not a valid file name")

var allowedExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"pdf":  {},
}

// Store is a directory of certificate artifacts.
type Store struct {
	root string
}

// New creates the root and staging directories if needed.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("filestore: root directory is required")
	}
	if err := os.MkdirAll(filepath.Join(root, stagingDir), 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create root: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the directory artifacts are promoted into.
func (s *Store) Root() string {
	return s.root
}

// Allowed reports whether fileName carries an accepted extension.
func (s *Store) Allowed(fileName string) bool {
	_, ok := allowedExtensions[Extension(fileName)]
	return ok
}

// Extension returns the lower-cased extension of fileName without the dot.
func Extension(fileName string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
}

// Stage writes data under a unique temporary name and returns where it will
// be promoted to.
func (s *Store) Stage(ctx context.Context, key, fileName string, data []byte) (*models.StagedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !validName(key) {
		return nil, ErrInvalidName
	}
	ext := Extension(fileName)
	if _, ok := allowedExtensions[ext]; !ok {
		return nil, fmt.Errorf("filestore: extension %q not allowed", ext)
	}

	final := filepath.Join(s.root, key+"."+ext)
	temp := filepath.Join(s.root, stagingDir, key+"-"+uuid.NewString()+"."+ext)

	f, err := os.OpenFile(temp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("filestore: create staged file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(temp)
		return nil, fmt.Errorf("filestore: write staged file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(temp)
		return nil, fmt.Errorf("filestore: sync staged file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(temp)
		return nil, fmt.Errorf("filestore: close staged file: %w", err)
	}

	return &models.StagedFile{TempPath: temp, FinalPath: final}, nil
}

// Promote moves a staged file to its final name. It returns
// sentinel.ErrAlreadyUsed if an artifact already exists under that name.
func (s *Store) Promote(staged *models.StagedFile) (string, error) {
	if err := os.Link(staged.TempPath, staged.FinalPath); err != nil {
		if os.IsExist(err) {
			return "", fmt.Errorf("filestore: %s exists: %w", filepath.Base(staged.FinalPath), sentinel.ErrAlreadyUsed)
		}
		return "", fmt.Errorf("filestore: promote: %w", err)
	}
	_ = os.Remove(staged.TempPath)
	return staged.FinalPath, nil
}

// Remove deletes path. A missing file is not an error.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("filestore: remove: %w", err)
	}
	return nil
}

func validName(key string) bool {
	if key == "" || strings.HasPrefix(key, ".") {
		return false
	}
	return !strings.ContainsAny(key, `/\`+"\x00")
}
