package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrDetectionUnsupported is returned by filesystemType on platforms where
// the filesystem type cannot be read. The check is skipped there.
var ErrDetectionUnsupported = errors.New("filesystem detection is unsupported on this platform")

// NetworkFilesystemError reports a path that lives on a network mount.
type NetworkFilesystemError struct {
	What   string
	Path   string
	FSType string
}

func (e *NetworkFilesystemError) Error() string {
	return fmt.Sprintf("%s path %q is on network filesystem %q; file locking and atomic replace require a local filesystem, point it at local disk",
		e.What, e.Path, e.FSType)
}

var networkFilesystems = []string{"afpfs", "afs", "ceph", "cifs", "nfs", "smbfs", "smb2", "webdav"}

// ValidateLocalFilesystem ensures path (or its nearest existing parent) is on
// a local filesystem. Both the message log and the receipts database rely on
// flock(2) and same-directory rename, which network mounts do not reliably
// provide. what names the file in errors.
func ValidateLocalFilesystem(path, what string) error {
	return checkFilesystem(path, what, filesystemType)
}

func checkFilesystem(path, what string, detect func(string) (string, error)) error {
	if path == "" {
		return fmt.Errorf("%s path is empty", what)
	}

	existing, err := existingAncestor(path)
	if err != nil {
		return fmt.Errorf("resolve %s path %q: %w", what, path, err)
	}

	fsType, err := detect(existing)
	switch {
	case errors.Is(err, ErrDetectionUnsupported):
		return nil
	case err != nil:
		return fmt.Errorf("detect filesystem for %q: %w", existing, err)
	}

	if isNetworkFilesystem(fsType) {
		return &NetworkFilesystemError{What: what, Path: path, FSType: fsType}
	}
	return nil
}

// existingAncestor walks up from path to the first entry that exists. The
// message log and its directory may not have been created yet.
func existingAncestor(path string) (string, error) {
	dir, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		_, err := os.Stat(dir)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no existing parent for %q", path)
		}
		dir = parent
	}
}

func isNetworkFilesystem(fsType string) bool {
	fsType = strings.ToLower(strings.TrimSpace(fsType))
	for _, name := range networkFilesystems {
		if fsType == name {
			return true
		}
	}
	return false
}
