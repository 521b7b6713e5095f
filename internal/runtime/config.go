package runtime

import (
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/virtual-vehicle/databeam/internal/fsutil"
)

var backupPattern = regexp.MustCompile(`^config\.[0-9]{8}_[0-9]{6}\.json$`)

const maxBackups = 10

// configStore owns the module's current-config lifecycle and the backup
// protocol of spec.md §4.4.1, fronted by a short-TTL cache mirroring
// golang/internal/cache.go's memCache pattern.
type configStore struct {
	dir  string
	path string
	hot  *cache.Cache

	now func() time.Time
}

func newConfigStore(dir string) *configStore {
	return &configStore{
		dir:  dir,
		path: filepath.Join(dir, "config.json"),
		hot:  cache.New(2*time.Second, 10*time.Second),
		now:  time.Now,
	}
}

// load reads config.json, seeding it with def if absent.
func (c *configStore) load(def string) (string, error) {
	if fsutil.Exists(c.path) {
		raw, err := fsutil.ReadFile(c.path)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	if err := fsutil.WriteFileAtomic(c.path, []byte(def), 0o644); err != nil {
		return "", err
	}
	return def, nil
}

// current returns the cached current config text, re-reading the file on a
// cache miss.
func (c *configStore) current() (string, error) {
	if v, ok := c.hot.Get("current"); ok {
		return v.(string), nil
	}
	raw, err := fsutil.ReadFile(c.path)
	if err != nil {
		return "", err
	}
	s := string(raw)
	c.hot.SetDefault("current", s)
	return s, nil
}

// setIfChanged writes newContent only if it differs byte-for-byte from the
// stored content, then writes a timestamped backup and prunes old ones.
// Returns whether a write happened (spec.md §4.4.1, §8 law 3).
func (c *configStore) setIfChanged(newContent string) (bool, error) {
	stored, err := c.current()
	if err != nil {
		// No prior content (first write ever) counts as "changed".
		stored = ""
	}
	if stored == newContent {
		return false, nil
	}

	if err := fsutil.WriteFileAtomic(c.path, []byte(newContent), 0o644); err != nil {
		return false, err
	}
	c.hot.SetDefault("current", newContent)

	backupName := "config." + c.now().Format("20060102_150405") + ".json"
	backupPath := filepath.Join(c.dir, backupName)
	if err := fsutil.WriteFileAtomic(backupPath, []byte(newContent), 0o644); err != nil {
		zap.S().Errorw("runtime: failed to write config backup", "error", err)
		return true, err
	}

	if err := c.pruneBackups(); err != nil {
		zap.S().Errorw("runtime: failed to prune config backups", "error", err)
	}
	return true, nil
}

func (c *configStore) pruneBackups() error {
	entries, err := fsutil.ListDir(c.dir)
	if err != nil {
		return err
	}

	var backups []string
	for _, name := range entries {
		if backupPattern.MatchString(name) {
			backups = append(backups, name)
		}
	}
	// Lexicographic sort is chronological for this fixed-width timestamp
	// format (spec.md §4.4.1).
	sort.Strings(backups)

	if len(backups) <= maxBackups {
		return nil
	}
	toDelete := backups[:len(backups)-maxBackups]
	for _, name := range toDelete {
		if err := fsutil.Remove(filepath.Join(c.dir, name)); err != nil {
			zap.S().Errorw("runtime: failed to delete old config backup", "file", name, "error", err)
		}
	}
	return nil
}
