package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	e "nuclight.org/relay-tg-bot/pkg/entities"
	"nuclight.org/relay-tg-bot/pkg/logger"
	"nuclight.org/relay-tg-bot/pkg/mutex"
)

// Scratch is a local directory for attachments on their way to the AI service and
// for synthesized audio on its way back to the chat. File names carry the modality
// and the time of writing with second resolution, so two files of the same modality
// written within one second share a path and the later write wins.
type Scratch struct {
	// Dir is the scratch directory, created on first write
	Dir string

	// Retention is the age after which Sweep removes a file. Zero keeps files forever.
	Retention time.Duration

	// Log is a logger
	Log logger.Logger

	// Now is the clock used for file names and sweeping, time.Now if nil
	Now func() time.Time

	locks mutex.KeyedMutex
}

// Save writes data to a new scratch file for the modality and returns its path.
func (s *Scratch) Save(ctx context.Context, m e.Modality, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating scratch directory: %w", err)
	}

	path := filepath.Join(s.Dir, FileName(m, s.now()))

	s.locks.Lock(path)
	defer s.locks.Unlock(path)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing scratch file: %w", err)
	}

	return path, nil
}

// FileName builds <modality>_<YYYY-MM-DD>_<HH_MM_SS>.<ext>.
func FileName(m e.Modality, t time.Time) string {
	return fmt.Sprintf("%s_%s_%s.%s", m.Name, t.Format(time.DateOnly), t.Format("15_04_05"), m.Ext)
}

// Sweep removes regular files older than Retention and returns how many were removed.
func (s *Scratch) Sweep(ctx context.Context) (int, error) {
	if s.Retention <= 0 {
		return 0, nil
	}

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading scratch directory: %w", err)
	}

	deadline := s.now().Add(-s.Retention)
	removed := 0

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		if !entry.Type().IsRegular() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// removed concurrently
			continue
		}

		if !info.ModTime().Before(deadline) {
			continue
		}

		path := filepath.Join(s.Dir, entry.Name())
		s.locks.Lock(path)
		err = os.Remove(path)
		s.locks.Unlock(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("removing %s: %w", entry.Name(), err)
		}

		removed++
	}

	return removed, nil
}

// Run sweeps every interval until ctx is done.
func (s *Scratch) Run(ctx context.Context, interval time.Duration) {
	if s.Retention <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Sweep(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					s.Log.Error("sweeping scratch directory", "dir", s.Dir, "error", err)
				}
				continue
			}
			if removed > 0 {
				s.Log.Info("scratch directory swept", "dir", s.Dir, "removed", removed)
			}
		}
	}
}

func (s *Scratch) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
