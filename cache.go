package avatarbuilder

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// claim checks the fingerprint cache. An existing output directory is a hit.
// On a miss the directory is created before any work starts; losing the
// creation race to another request is reported as a hit as well.
func (b *Builder) claim(fingerprint string) (dir string, hit bool, err error) {
	dir = filepath.Join(b.opts.OutputDir, fingerprint)
	if _, err := os.Stat(dir); err == nil {
		return dir, true, nil
	}
	if err := os.MkdirAll(b.opts.OutputDir, 0o755); err != nil {
		return "", false, err
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return dir, true, nil
		}
		return "", false, err
	}
	return dir, false, nil
}

// release drops an output directory that must not be served from cache.
func (b *Builder) release(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		b.logger.Warn("cache entry not removed", "dir", dir, "error", err)
	}
}

// cachedSummary lists the pose outputs already present in a cached directory.
func cachedSummary(s *Session) Summary {
	sum := Summary{Session: s.ID, Fingerprint: s.Fingerprint, Dir: s.Dir, Cached: true}
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return sum
	}
	for _, e := range entries {
		name := e.Name()
		ext := filepath.Ext(name)
		if ext != ".gif" && ext != ".png" {
			continue
		}
		pose, err := strconv.Atoi(strings.TrimSuffix(name, ext))
		if err != nil || pose < 1 || pose > PoseCount {
			continue
		}
		sum.Poses = append(sum.Poses, PoseResult{Pose: pose, File: name, Animated: ext == ".gif"})
	}
	slices.SortFunc(sum.Poses, func(a, b PoseResult) int { return a.Pose - b.Pose })
	return sum
}
