// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and contact addresses from a directory of
// plain-text files. Each file holds one secret: the filename is the key and
// the trimmed contents are the value.
package secrets

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Recognized secret files.
const (
	// KeySemanticScholar raises the Semantic Scholar and ACL Anthology quota.
	KeySemanticScholar = "semantic-scholar-api-key"

	// KeyMailto identifies the caller to Crossref and OpenAlex.
	KeyMailto = "mailto"
)

// DefaultDir is where the CLI looks for secret files.
const DefaultDir = ".secrets/"

// Secrets maps secret names to values.
type Secrets map[string]string

// Load reads all files in dir and returns their trimmed contents by name.
// A missing directory is not an error; Load returns an empty set. Hidden
// files, subdirectories, and empty files are skipped. Unreadable files are
// skipped with a warning on logger, which may be nil.
func Load(dir string, logger *zap.Logger) (Secrets, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, eris.Wrapf(err, "reading secrets directory %s", dir)
	}

	s := make(Secrets)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("could not read secret", zap.String("name", name), zap.Error(err))
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			s[name] = value
		}
	}
	return s, nil
}

// Or returns explicit when it is set, otherwise the secret stored under key.
func (s Secrets) Or(key, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return s[key]
}

// Names returns the sorted secret names without their values.
func (s Secrets) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
