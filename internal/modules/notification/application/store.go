package application

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/fakenews/notifier/internal/modules/notification/domain"
	"github.com/fakenews/notifier/internal/shared/infrastructure/metrics"
)

const (
	actionMarkRead    = "mark-read"
	actionMarkAllRead = "mark-all-read"
	actionDelete      = "delete"
)

// Snapshot is a consistent copy of the store handed to change listeners.
type Snapshot struct {
	Items       []domain.Notification
	UnreadCount int
}

// Store merges page-loaded history with pushed notifications into one
// collection keyed by id, and applies read/delete actions optimistically.
//
// A mark-read that the backend rejects is rolled back; a read flag the
// backend has confirmed is never cleared by the client.
type Store struct {
	api    domain.NotificationAPI
	logger *slog.Logger

	mu        sync.Mutex
	items     []domain.Notification
	pending   map[string]struct{}
	lastErr   error
	listeners []func(Snapshot)
}

func NewStore(api domain.NotificationAPI, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		api:     api,
		logger:  logger.With("component", "store"),
		pending: make(map[string]struct{}),
	}
}

// OnChange registers fn to be called after every mutation.
func (s *Store) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// LoadPage fetches one page. With reset the collection is replaced by the
// page; otherwise the page is merged by id.
func (s *Store) LoadPage(ctx context.Context, page, pageSize int, reset bool) ([]domain.Notification, error) {
	if page < 1 || pageSize < 1 {
		err := &domain.FetchError{Page: page, Err: domain.ErrInvalidPagination}
		s.setLastErr(err)
		return nil, err
	}

	fetched, err := s.api.List(ctx, page, pageSize)
	if err != nil {
		fetchErr := &domain.FetchError{Page: page, Err: err}
		s.setLastErr(fetchErr)
		s.logger.Warn("page load failed", "page", page, "error", err)
		return nil, fetchErr
	}

	s.mu.Lock()
	s.lastErr = nil
	if reset {
		s.items = s.items[:0:0]
		for _, n := range fetched {
			if _, isPending := s.pending[n.ID]; isPending {
				if n.IsRead {
					delete(s.pending, n.ID)
				}
				// The server may not have applied our mark-read yet.
				n.IsRead = true
			}
			s.items = append(s.items, n)
		}
		s.prunePendingLocked()
	} else {
		for _, n := range fetched {
			s.mergeLocked(n)
		}
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	out := make([]domain.Notification, len(fetched))
	copy(out, fetched)
	return out, nil
}

// IngestPush appends a pushed notification in arrival order, always unread.
// A push whose id is already held is dropped.
func (s *Store) IngestPush(n domain.Notification) {
	metrics.PushesReceived.Inc()
	n.IsRead = false

	s.mu.Lock()
	if n.ID != "" && s.indexLocked(n.ID) >= 0 {
		s.mu.Unlock()
		s.logger.Debug("duplicate push ignored", "id", n.ID)
		return
	}
	s.items = append(s.items, n)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// MarkRead flips the item to read locally, then confirms with the backend.
// On failure the local flag is restored and an *domain.ActionError returned.
func (s *Store) MarkRead(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return &domain.ActionError{Action: actionMarkRead, NotificationID: id, Err: domain.ErrNotificationNotFound}
	}
	if s.items[i].IsRead {
		s.mu.Unlock()
		return nil
	}
	s.items[i].IsRead = true
	s.pending[id] = struct{}{}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	if err := s.api.MarkRead(ctx, id); err != nil {
		metrics.ActionFailures.WithLabelValues(actionMarkRead).Inc()
		s.rollback([]string{id})
		s.logger.Warn("mark read failed", "id", id, "error", err)
		return &domain.ActionError{Action: actionMarkRead, NotificationID: id, Err: err}
	}

	s.confirm([]string{id})
	return nil
}

// MarkAllRead flips every unread item, then confirms with the single
// mark-all-read endpoint. The call is issued even when nothing is unread
// locally, since older unread items may not be loaded.
func (s *Store) MarkAllRead(ctx context.Context) error {
	s.mu.Lock()
	var flipped []string
	for i := range s.items {
		if !s.items[i].IsRead {
			s.items[i].IsRead = true
			if id := s.items[i].ID; id != "" {
				s.pending[id] = struct{}{}
				flipped = append(flipped, id)
			}
		}
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	if len(flipped) > 0 {
		s.notify(snap)
	}

	if err := s.api.MarkAllRead(ctx); err != nil {
		metrics.ActionFailures.WithLabelValues(actionMarkAllRead).Inc()
		s.rollback(flipped)
		s.logger.Warn("mark all read failed", "count", len(flipped), "error", err)
		return &domain.ActionError{Action: actionMarkAllRead, Err: err}
	}

	s.confirmAll()
	return nil
}

// Delete removes the item once the backend confirms the deletion.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	known := s.indexLocked(id) >= 0
	s.mu.Unlock()
	if !known {
		return &domain.ActionError{Action: actionDelete, NotificationID: id, Err: domain.ErrNotificationNotFound}
	}

	if err := s.api.Delete(ctx, id); err != nil {
		metrics.ActionFailures.WithLabelValues(actionDelete).Inc()
		s.logger.Warn("delete failed", "id", id, "error", err)
		return &domain.ActionError{Action: actionDelete, NotificationID: id, Err: err}
	}

	s.mu.Lock()
	if i := s.indexLocked(id); i >= 0 {
		s.items = append(s.items[:i], s.items[i+1:]...)
	}
	delete(s.pending, id)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// UnreadCount counts unread items across everything loaded or pushed.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unreadLocked()
}

// Items returns a copy of the collection in merge order.
func (s *Store) Items() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// Feed returns the collection ordered by creation time, oldest first.
func (s *Store) Feed() []domain.Notification {
	items := s.Items()
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items
}

func (s *Store) Get(id string) (domain.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.items[i], true
	}
	return domain.Notification{}, false
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// LastError is the most recent page-load failure, nil after a successful
// load or ClearError.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Store) ClearError() {
	s.setLastErr(nil)
}

// Reset empties the store, for logout or a principal switch.
func (s *Store) Reset() {
	s.mu.Lock()
	s.items = nil
	s.pending = make(map[string]struct{})
	s.lastErr = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

func (s *Store) mergeLocked(n domain.Notification) {
	i := -1
	if n.ID != "" {
		i = s.indexLocked(n.ID)
	}
	if i < 0 {
		if _, isPending := s.pending[n.ID]; isPending {
			n.IsRead = true
		}
		s.items = append(s.items, n)
		return
	}
	if n.IsRead {
		delete(s.pending, n.ID)
	}
	n.IsRead = n.IsRead || s.items[i].IsRead
	s.items[i] = n
}

func (s *Store) rollback(ids []string) {
	s.mu.Lock()
	changed := false
	for _, id := range ids {
		if _, isPending := s.pending[id]; !isPending {
			continue
		}
		delete(s.pending, id)
		if i := s.indexLocked(id); i >= 0 {
			s.items[i].IsRead = false
			changed = true
		}
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	if changed {
		s.notify(snap)
	}
}

func (s *Store) confirm(ids []string) {
	s.mu.Lock()
	for _, id := range ids {
		delete(s.pending, id)
	}
	s.mu.Unlock()
}

// confirmAll settles every in-flight read: the backend has marked all
// notifications read, so no later failure may roll one back.
func (s *Store) confirmAll() {
	s.mu.Lock()
	clear(s.pending)
	s.mu.Unlock()
}

func (s *Store) prunePendingLocked() {
	for id := range s.pending {
		if s.indexLocked(id) < 0 {
			delete(s.pending, id)
		}
	}
}

func (s *Store) indexLocked(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) unreadLocked() int {
	count := 0
	for i := range s.items {
		if !s.items[i].IsRead {
			count++
		}
	}
	return count
}

func (s *Store) copyLocked() []domain.Notification {
	out := make([]domain.Notification, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{Items: s.copyLocked(), UnreadCount: s.unreadLocked()}
}

func (s *Store) setLastErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *Store) notify(snap Snapshot) {
	s.mu.Lock()
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}
