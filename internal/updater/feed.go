package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Feed is the on-disk form of the remote: a marker plus every post.
type Feed struct {
	Updated time.Time `yaml:"updated"`
	Posts   []Record  `yaml:"posts"`
}

// FeedService treats a YAML feed file as the remote service. Pushed changes
// are appended to a separate YAML outbox file for another process to apply.
type FeedService struct {
	feedPath   string
	outboxPath string

	mu sync.Mutex // guards the outbox file
}

var _ Service = (*FeedService)(nil)

func NewFeedService(feedPath, outboxPath string) *FeedService {
	return &FeedService{feedPath: feedPath, outboxPath: outboxPath}
}

// Load reads and parses the feed file. When the feed has no updated marker
// the file's modification time is used.
func (f *FeedService) Load() (Feed, error) {
	data, err := os.ReadFile(f.feedPath)
	if err != nil {
		return Feed{}, fmt.Errorf("failed to read feed file: %w", err)
	}
	var feed Feed
	if err := yaml.Unmarshal(data, &feed); err != nil {
		return Feed{}, fmt.Errorf("failed to parse feed yaml: %w", err)
	}
	if feed.Updated.IsZero() {
		if info, err := os.Stat(f.feedPath); err == nil {
			feed.Updated = info.ModTime()
		}
	}
	return feed, nil
}

func (f *FeedService) LastUpdated(_ context.Context) (time.Time, error) {
	feed, err := f.Load()
	if err != nil {
		return time.Time{}, err
	}
	return feed.Updated, nil
}

func (f *FeedService) Records(_ context.Context) ([]Record, error) {
	feed, err := f.Load()
	if err != nil {
		return nil, err
	}
	return feed.Posts, nil
}

// Push appends c to the outbox, rewriting the file atomically.
func (f *FeedService) Push(_ context.Context, c Change) error {
	if f.outboxPath == "" {
		return errors.New("no outbox configured")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	changes, err := f.Outbox()
	if err != nil {
		return err
	}
	changes = append(changes, c)

	data, err := yaml.Marshal(changes)
	if err != nil {
		return fmt.Errorf("failed to encode outbox: %w", err)
	}
	return writeFileAtomic(f.outboxPath, data)
}

// Outbox returns every change pushed so far.
func (f *FeedService) Outbox() ([]Change, error) {
	data, err := os.ReadFile(f.outboxPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read outbox: %w", err)
	}
	var changes []Change
	if err := yaml.Unmarshal(data, &changes); err != nil {
		return nil, fmt.Errorf("failed to parse outbox yaml: %w", err)
	}
	return changes, nil
}

// WriteFeed stores feed at path, replacing any previous file.
func WriteFeed(path string, feed Feed) error {
	data, err := yaml.Marshal(feed)
	if err != nil {
		return fmt.Errorf("failed to encode feed: %w", err)
	}
	return writeFileAtomic(path, data)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tempPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tempPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return err
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return err
	}
	return nil
}
