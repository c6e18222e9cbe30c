package service

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"

	perr "repoharvest/internal/platform/errors"
	"repoharvest/internal/platform/logger"
	"repoharvest/internal/services/classify/domain"
)

// ProgressStore reads and writes the checkpoint file
type ProgressStore struct {
	Path string
}

// NewProgressStore returns a store for path
func NewProgressStore(path string) *ProgressStore { return &ProgressStore{Path: path} }

// Load returns the saved progress. A missing file is a fresh start; an
// unparsable one is logged and treated the same so a torn checkpoint never blocks a run.
func (s *ProgressStore) Load() (domain.Progress, error) {
	b, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return domain.Progress{}, nil
	}
	if err != nil {
		return domain.Progress{}, perr.Wrapf(err, perr.ErrorCodeIO, "progress read %s", s.Path)
	}
	var p domain.Progress
	if err := json.Unmarshal(b, &p); err != nil {
		logger.Named("progress").Warn().Err(err).Str("path", s.Path).Msg("ignoring unreadable checkpoint")
		return domain.Progress{}, nil
	}
	return p, nil
}

// Save writes p atomically: temp file in the same directory, fsync, rename
func (s *ProgressStore) Save(p domain.Progress) error {
	slices.Sort(p.ProcessedIDs)
	slices.Sort(p.FailedIDs)
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "progress marshal")
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "progress mkdir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "progress temp in %s", dir)
	}
	name := tmp.Name()
	defer func() { _ = os.Remove(name) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return perr.Wrapf(err, perr.ErrorCodeIO, "progress write %s", name)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return perr.Wrapf(err, perr.ErrorCodeIO, "progress sync %s", name)
	}
	if err := tmp.Close(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "progress close %s", name)
	}
	if err := os.Rename(name, s.Path); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "progress rename %s", s.Path)
	}
	return nil
}
