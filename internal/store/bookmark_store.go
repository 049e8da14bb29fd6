package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	appdb "github.com/joestump/bookmarks/internal/db"
	"github.com/joestump/bookmarks/internal/logger"
	"github.com/joestump/bookmarks/internal/metrics"
	"github.com/joestump/bookmarks/internal/query"
)

// batchSize bounds how many bookmarks InsertOrUpdateMany writes per
// transaction.
const batchSize = 500

const bookmarkColumns = `b.identifier, b.title, b.url, b.date, b.to_read, b.shared, b.notes`

// BookmarkStore is the sqlx-backed implementation of BookmarkStoreIface and
// TagStoreIface.
//
// One mutex serializes every operation on the handle, so a read issued after
// a write returns always observes that write. The tag index is a cached copy
// of the tags table that is replaced only after a successful commit.
type BookmarkStore struct {
	db  *sqlx.DB
	log logger.Logger
	now func() time.Time
	// lower is the SQL case-folding function for the handle's driver.
	lower string

	mu        sync.Mutex
	tagIndex  []string
	indexLive bool
}

// Option configures a BookmarkStore.
type Option func(*BookmarkStore)

// WithClock replaces the clock used to evaluate date predicates.
func WithClock(now func() time.Time) Option {
	return func(s *BookmarkStore) { s.now = now }
}

// WithLogger sets the store's logger. The default discards everything.
func WithLogger(log logger.Logger) Option {
	return func(s *BookmarkStore) { s.log = log.Named("store") }
}

func NewBookmarkStore(db *sqlx.DB, opts ...Option) *BookmarkStore {
	s := &BookmarkStore{
		db:    db,
		log:   logger.NewNop(),
		now:   time.Now,
		lower: appdb.LowerFunc(db.DriverName()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// q rebinds '?' placeholders to the driver's bind type.
func (s *BookmarkStore) q(query string) string {
	return s.db.Rebind(query)
}

// fail wraps err as a *StorageError unless it is already one of the
// package's sentinel errors.
func (s *BookmarkStore) fail(op string, err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidBookmark) ||
		errors.Is(err, ErrInvalidTag) || errors.Is(err, ErrStorage) {
		return err
	}
	metrics.StoreErrorsTotal.WithLabelValues(op).Inc()
	s.log.Error("store operation failed", logger.String("op", op), logger.Error(err))
	return &StorageError{Op: op, Err: err}
}

// InsertOrUpdate creates b or replaces the bookmark with the same identifier,
// including its tag set. The stored form is returned.
func (s *BookmarkStore) InsertOrUpdate(ctx context.Context, b Bookmark) (*Bookmark, error) {
	if err := ValidateBookmark(&b); err != nil {
		return nil, err
	}
	b = b.normalized()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, s.fail("insert", err)
	}
	defer tx.Rollback() //nolint:errcheck

	changed, err := s.upsertTx(ctx, tx, &b)
	if err != nil {
		return nil, s.fail("insert", err)
	}
	if !changed {
		return &b, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, s.fail("insert", err)
	}
	metrics.StoreWritesTotal.WithLabelValues("insert").Inc()
	s.refreshIndexLocked(ctx)
	return &b, nil
}

// InsertOrUpdateMany upserts every bookmark in bs. When an identifier appears
// more than once the last occurrence wins. All bookmarks are validated before
// anything is written; writes happen in chunks of batchSize per transaction,
// so a storage failure leaves earlier chunks committed and nothing of the
// failing chunk applied.
func (s *BookmarkStore) InsertOrUpdateMany(ctx context.Context, bs []Bookmark) error {
	last := make(map[string]int, len(bs))
	for i := range bs {
		if err := ValidateBookmark(&bs[i]); err != nil {
			return err
		}
		last[bs[i].Identifier] = i
	}
	unique := make([]Bookmark, 0, len(last))
	for i := range bs {
		if last[bs[i].Identifier] == i {
			unique = append(unique, bs[i].normalized())
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	written := 0
	defer func() {
		if written > 0 {
			s.refreshIndexLocked(ctx)
		}
	}()

	for start := 0; start < len(unique); start += batchSize {
		end := start + batchSize
		if end > len(unique) {
			end = len(unique)
		}
		if err := s.writeChunk(ctx, unique[start:end]); err != nil {
			return s.fail("insert_many", err)
		}
		written += end - start
	}
	s.log.Debug("bulk upsert", logger.Int("received", len(bs)), logger.Int("written", written))
	return nil
}

func (s *BookmarkStore) writeChunk(ctx context.Context, chunk []Bookmark) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	for i := range chunk {
		if _, err := s.upsertTx(ctx, tx, &chunk[i]); err != nil {
			return fmt.Errorf("bookmark %q: %w", chunk[i].Identifier, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	metrics.StoreWritesTotal.WithLabelValues("insert_many").Inc()
	return nil
}

// upsertTx writes b and reconciles its tag associations. It reports false
// when the stored bookmark already equals b and nothing was written.
func (s *BookmarkStore) upsertTx(ctx context.Context, tx *sqlx.Tx, b *Bookmark) (bool, error) {
	existing, err := s.getTx(ctx, tx, `b.identifier = ?`, b.Identifier)
	switch {
	case errors.Is(err, ErrNotFound):
		_, err = tx.ExecContext(ctx, s.q(`
			INSERT INTO bookmarks (identifier, title, url, date, to_read, shared, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`), b.Identifier, b.Title, b.URL, b.Date, b.ToRead, b.Shared, b.Notes)
		if err != nil {
			return false, err
		}
	case err != nil:
		return false, err
	case existing.Equal(b):
		return false, nil
	default:
		_, err = tx.ExecContext(ctx, s.q(`
			UPDATE bookmarks SET title = ?, url = ?, date = ?, to_read = ?, shared = ?, notes = ?
			WHERE identifier = ?
		`), b.Title, b.URL, b.Date, b.ToRead, b.Shared, b.Notes, b.Identifier)
		if err != nil {
			return false, err
		}
	}

	var previous []string
	if existing != nil {
		previous = existing.Tags
	}
	added, removed := diffTags(previous, b.Tags)
	for _, name := range added {
		if err := s.ensureTagTx(ctx, tx, name); err != nil {
			return false, err
		}
		if _, err := tx.ExecContext(ctx, s.q(
			`INSERT INTO bookmark_tags (bookmark_id, tag_name) VALUES (?, ?)`,
		), b.Identifier, name); err != nil {
			return false, err
		}
	}
	for _, name := range removed {
		if _, err := tx.ExecContext(ctx, s.q(
			`DELETE FROM bookmark_tags WHERE bookmark_id = ? AND tag_name = ?`,
		), b.Identifier, name); err != nil {
			return false, err
		}
	}
	if err := s.pruneTagsTx(ctx, tx, removed); err != nil {
		return false, err
	}
	return true, nil
}

// Bookmark returns the bookmark with the given identifier, or ErrNotFound.
func (s *BookmarkStore) Bookmark(ctx context.Context, identifier string) (*Bookmark, error) {
	return s.getOne(ctx, "get", `b.identifier = ?`, identifier)
}

// BookmarkByURL returns the newest bookmark whose URL equals url, or
// ErrNotFound. URLs are not unique; ties are broken by identifier.
func (s *BookmarkStore) BookmarkByURL(ctx context.Context, url string) (*Bookmark, error) {
	return s.getOne(ctx, "get_by_url", `b.url = ?`, url)
}

func (s *BookmarkStore) getOne(ctx context.Context, op, where string, arg interface{}) (*Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, s.fail(op, err)
	}
	defer tx.Rollback() //nolint:errcheck

	b, err := s.getTx(ctx, tx, where, arg)
	if err != nil {
		return nil, s.fail(op, err)
	}
	return b, nil
}

// getTx loads the first bookmark matching where, with its tags.
func (s *BookmarkStore) getTx(ctx context.Context, tx *sqlx.Tx, where string, arg interface{}) (*Bookmark, error) {
	var b Bookmark
	err := tx.GetContext(ctx, &b, s.q(`SELECT `+bookmarkColumns+` FROM bookmarks b WHERE `+where+`
		ORDER BY b.date DESC, b.identifier ASC LIMIT 1`), arg)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, arg)
	}
	if err != nil {
		return nil, err
	}
	b.Date = b.Date.UTC()
	if err := tx.SelectContext(ctx, &b.Tags, s.q(
		`SELECT tag_name FROM bookmark_tags WHERE bookmark_id = ? ORDER BY tag_name`,
	), b.Identifier); err != nil {
		return nil, err
	}
	b.Tags = NormalizeTags(b.Tags)
	return &b, nil
}

// Bookmarks returns every bookmark matching p, newest first with ties broken
// by identifier.
func (s *BookmarkStore) Bookmarks(ctx context.Context, p query.Predicate) ([]*Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	where, args, err := compile(p, s.now(), s.lower)
	if err != nil {
		return nil, s.fail("list", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, s.fail("list", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var bookmarks []*Bookmark
	if err := tx.SelectContext(ctx, &bookmarks, s.q(`SELECT `+bookmarkColumns+` FROM bookmarks b WHERE `+where+`
		ORDER BY b.date DESC, b.identifier ASC`), args...); err != nil {
		return nil, s.fail("list", err)
	}
	if len(bookmarks) == 0 {
		return []*Bookmark{}, nil
	}

	var rows []struct {
		BookmarkID string `db:"bookmark_id"`
		TagName    string `db:"tag_name"`
	}
	if err := tx.SelectContext(ctx, &rows, s.q(`SELECT bt.bookmark_id, bt.tag_name FROM bookmark_tags bt
		WHERE bt.bookmark_id IN (SELECT b.identifier FROM bookmarks b WHERE `+where+`)`), args...); err != nil {
		return nil, s.fail("list", err)
	}
	tags := make(map[string][]string, len(bookmarks))
	for _, r := range rows {
		tags[r.BookmarkID] = append(tags[r.BookmarkID], r.TagName)
	}
	for _, b := range bookmarks {
		b.Date = b.Date.UTC()
		b.Tags = NormalizeTags(tags[b.Identifier])
	}
	return bookmarks, nil
}

// Count returns the number of bookmarks matching p.
func (s *BookmarkStore) Count(ctx context.Context, p query.Predicate) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	where, args, err := compile(p, s.now(), s.lower)
	if err != nil {
		return 0, s.fail("count", err)
	}
	var n int
	if err := s.db.GetContext(ctx, &n, s.q(`SELECT COUNT(*) FROM bookmarks b WHERE `+where), args...); err != nil {
		return 0, s.fail("count", err)
	}
	return n, nil
}

// Identifiers returns every stored identifier in ascending order.
func (s *BookmarkStore) Identifiers(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	if err := s.db.SelectContext(ctx, &ids, `SELECT identifier FROM bookmarks ORDER BY identifier ASC`); err != nil {
		return nil, s.fail("identifiers", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes the bookmark, its tag associations and any tag no longer
// referenced. Returns ErrNotFound if no bookmark has the identifier.
func (s *BookmarkStore) Delete(ctx context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return s.fail("delete", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var tags []string
	if err := tx.SelectContext(ctx, &tags, s.q(
		`SELECT tag_name FROM bookmark_tags WHERE bookmark_id = ?`,
	), identifier); err != nil {
		return s.fail("delete", err)
	}
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM bookmark_tags WHERE bookmark_id = ?`), identifier); err != nil {
		return s.fail("delete", err)
	}
	res, err := tx.ExecContext(ctx, s.q(`DELETE FROM bookmarks WHERE identifier = ?`), identifier)
	if err != nil {
		return s.fail("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return s.fail("delete", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, identifier)
	}
	if err := s.pruneTagsTx(ctx, tx, tags); err != nil {
		return s.fail("delete", err)
	}
	if err := tx.Commit(); err != nil {
		return s.fail("delete", err)
	}
	metrics.StoreWritesTotal.WithLabelValues("delete").Inc()
	s.refreshIndexLocked(ctx)
	return nil
}

// Clear removes every bookmark and tag.
func (s *BookmarkStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return s.fail("clear", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, table := range []string{"bookmark_tags", "tags", "bookmarks"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return s.fail("clear", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return s.fail("clear", err)
	}
	metrics.StoreWritesTotal.WithLabelValues("clear").Inc()
	s.refreshIndexLocked(ctx)
	return nil
}

// Close closes the underlying database handle.
func (s *BookmarkStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexLive = false
	return s.db.Close()
}
