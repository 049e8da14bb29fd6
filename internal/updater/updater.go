// Package updater keeps the local store in step with a remote bookmarking
// service: it pulls the remote state on demand or on a schedule and reports
// local edits back.
package updater

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/joestump/bookmarks/internal/logger"
	"github.com/joestump/bookmarks/internal/metrics"
	"github.com/joestump/bookmarks/internal/store"
)

// DefaultSchedule refreshes every five minutes.
const DefaultSchedule = "@every 5m"

// refreshTimeout bounds a scheduled refresh.
const refreshTimeout = 2 * time.Minute

// RefreshResult summarises one Refresh call.
type RefreshResult struct {
	Skipped  bool
	Upserted int
	Deleted  int
	Invalid  int
	Updated  time.Time
}

// Updater runs remote operations one at a time.
type Updater struct {
	store   *store.BookmarkStore
	service Service
	log     logger.Logger
	now     func() time.Time

	mu         sync.Mutex // serializes remote operations
	lastUpdate time.Time

	cronMu sync.Mutex
	cron   *cron.Cron
}

func New(s *store.BookmarkStore, service Service, log logger.Logger) *Updater {
	if log == nil {
		log = logger.NewNop()
	}
	return &Updater{
		store:   s,
		service: service,
		log:     log.Named("updater"),
		now:     time.Now,
	}
}

// LastUpdate returns the remote marker recorded by the last successful
// refresh, or the zero time.
func (u *Updater) LastUpdate() time.Time {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastUpdate
}

// Refresh mirrors the remote into the store. Unless force is set it does
// nothing when the remote has not changed since the last refresh. Records
// that are not valid bookmarks are logged and skipped; local bookmarks the
// remote no longer has are deleted.
func (u *Updater) Refresh(ctx context.Context, force bool) (RefreshResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	start := u.now()
	res, err := u.refreshLocked(ctx, force)
	metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		metrics.RefreshTotal.WithLabelValues("failed").Inc()
		u.log.Error("refresh failed", logger.Error(err))
	case res.Skipped:
		metrics.RefreshTotal.WithLabelValues("skipped").Inc()
		u.log.Debug("refresh skipped, remote unchanged", logger.Time("updated", res.Updated))
	default:
		metrics.RefreshTotal.WithLabelValues("updated").Inc()
		u.log.Info("refresh complete",
			logger.Int("upserted", res.Upserted),
			logger.Int("deleted", res.Deleted),
			logger.Int("invalid", res.Invalid),
			logger.Duration("elapsed", time.Since(start)))
	}
	return res, err
}

func (u *Updater) refreshLocked(ctx context.Context, force bool) (RefreshResult, error) {
	updated, err := u.service.LastUpdated(ctx)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("remote last update: %w", err)
	}
	res := RefreshResult{Updated: updated}
	if !force && !u.lastUpdate.IsZero() && !updated.After(u.lastUpdate) {
		res.Skipped = true
		return res, nil
	}

	records, err := u.service.Records(ctx)
	if err != nil {
		return res, fmt.Errorf("remote records: %w", err)
	}

	remote := make(map[string]bool, len(records))
	bookmarks := make([]store.Bookmark, 0, len(records))
	for _, r := range records {
		if r.Hash != "" {
			remote[r.Hash] = true
		}
		b := r.Bookmark()
		if err := store.ValidateBookmark(&b); err != nil {
			res.Invalid++
			u.log.Warn("skipping invalid remote record",
				logger.String("hash", r.Hash),
				logger.String("href", r.Href),
				logger.Error(err))
			continue
		}
		bookmarks = append(bookmarks, b)
	}
	if err := u.store.InsertOrUpdateMany(ctx, bookmarks); err != nil {
		return res, err
	}
	res.Upserted = len(bookmarks)

	local, err := u.store.Identifiers(ctx)
	if err != nil {
		return res, err
	}
	for _, id := range local {
		if remote[id] {
			continue
		}
		if err := u.store.Delete(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
			return res, err
		}
		res.Deleted++
	}

	u.lastUpdate = updated
	return res, nil
}

// Update writes each bookmark locally and then reports it to the remote.
// A failed push is logged; the local write stands.
func (u *Updater) Update(ctx context.Context, bookmarks ...store.Bookmark) ([]*store.Bookmark, error) {
	stored := make([]*store.Bookmark, 0, len(bookmarks))
	for _, b := range bookmarks {
		saved, err := u.store.InsertOrUpdate(ctx, b)
		if err != nil {
			return stored, err
		}
		stored = append(stored, saved)
		record := RecordFromBookmark(*saved)
		u.push(ctx, Change{Kind: ChangeUpdate, Record: &record})
	}
	return stored, nil
}

// Delete removes each bookmark locally and then reports it to the remote,
// which identifies bookmarks by URL.
func (u *Updater) Delete(ctx context.Context, identifiers ...string) error {
	for _, id := range identifiers {
		b, err := u.store.Bookmark(ctx, id)
		if err != nil {
			return err
		}
		if err := u.store.Delete(ctx, id); err != nil {
			return err
		}
		u.push(ctx, Change{Kind: ChangeDelete, URL: b.URL})
	}
	return nil
}

// DeleteTag removes each tag locally and then reports it to the remote.
func (u *Updater) DeleteTag(ctx context.Context, tags ...string) error {
	for _, tag := range tags {
		if err := u.store.DeleteTag(ctx, tag); err != nil {
			return err
		}
		u.push(ctx, Change{Kind: ChangeDeleteTag, Tag: tag})
	}
	return nil
}

// RenameTag renames a tag locally and then reports it to the remote.
func (u *Updater) RenameTag(ctx context.Context, from, to string) error {
	if err := u.store.RenameTag(ctx, from, to); err != nil {
		return err
	}
	u.push(ctx, Change{Kind: ChangeRenameTag, Tag: from, NewTag: to})
	return nil
}

// Reset forgets the remote marker and empties the store, as on sign-out.
func (u *Updater) Reset(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.lastUpdate = time.Time{}
	return u.store.Clear(ctx)
}

func (u *Updater) push(ctx context.Context, c Change) {
	u.mu.Lock()
	defer u.mu.Unlock()

	c.At = u.now().UTC()
	if err := u.service.Push(ctx, c); err != nil {
		u.log.Warn("push to remote failed",
			logger.String("kind", string(c.Kind)),
			logger.Error(err))
	}
}

// Start refreshes on the given cron schedule until Stop. Scheduled refreshes
// are forced so remote edits that keep the marker unchanged still land.
func (u *Updater) Start(spec string) error {
	if spec == "" {
		spec = DefaultSchedule
	}

	u.cronMu.Lock()
	defer u.cronMu.Unlock()
	if u.cron != nil {
		return errors.New("updater already started")
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		_, _ = u.Refresh(ctx, true)
	}); err != nil {
		return fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	c.Start()
	u.cron = c
	u.log.Info("periodic refresh started", logger.String("schedule", spec))
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (u *Updater) Stop() {
	u.cronMu.Lock()
	c := u.cron
	u.cron = nil
	u.cronMu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	u.log.Info("periodic refresh stopped")
}
