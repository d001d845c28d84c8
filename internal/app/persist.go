package app

import (
	"context"
	"log"
	"time"

	"github.com/angelvanegas1006/Vistral-Rentals-mvp-sub003/internal/events"
	"github.com/angelvanegas1006/Vistral-Rentals-mvp-sub003/internal/review"
	"github.com/angelvanegas1006/Vistral-Rentals-mvp-sub003/internal/search"
	"github.com/angelvanegas1006/Vistral-Rentals-mvp-sub003/internal/store"
)

type eventPayload = events.Payload

const flushTimeout = 10 * time.Second

// pendingState is a review edit waiting for its debounce window to
// close. state is shared with in-flight request handlers; it is only
// touched while the property lock is held.
type pendingState struct {
	state   *review.State
	prop    store.Property
	author  string
	message string
	timer   *time.Timer
}

// schedulePersist queues the state for persistence. Edits landing
// within the debounce window coalesce into a single save.
func (s *Service) schedulePersist(prop store.Property, state *review.State, author, message string) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if entry, ok := s.pending[prop.ID]; ok {
		entry.state = state
		entry.prop = prop
		entry.author = author
		entry.message = message
		entry.timer.Reset(s.debounce)
		return
	}

	entry := &pendingState{state: state, prop: prop, author: author, message: message}
	entry.timer = time.AfterFunc(s.debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		if err := s.Flush(ctx, prop.ID); err != nil {
			log.Printf("app: persist review state %s: %v", prop.ID, err)
		}
	})
	s.pending[prop.ID] = entry
}

func (s *Service) pendingState(propertyID string) (*review.State, bool) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	entry, ok := s.pending[propertyID]
	if !ok {
		return nil, false
	}
	return entry.state, true
}

// Flush persists the pending state for a property immediately. It is a
// no-op when nothing is queued. The property lock is held across the
// whole write, so edits cannot interleave with an in-flight save, and
// the pending entry stays queued until the save has landed; a reader
// during the save still sees the unflushed state.
func (s *Service) Flush(ctx context.Context, propertyID string) error {
	lock := s.propertyLock(propertyID)
	lock.Lock()
	defer lock.Unlock()

	s.persistMu.Lock()
	entry, ok := s.pending[propertyID]
	if ok {
		entry.timer.Stop()
	}
	s.persistMu.Unlock()
	if !ok {
		return nil
	}

	blob, err := entry.state.Encode()
	if err != nil {
		return err
	}
	comments, removed := commentRecords(entry.prop, entry.state)

	if err := s.store.SaveReviewState(ctx, propertyID, blob); err != nil {
		// Keep the edit queued and retry after another window.
		s.persistMu.Lock()
		entry.timer.Reset(s.debounce)
		s.persistMu.Unlock()
		return err
	}

	s.persistMu.Lock()
	delete(s.pending, propertyID)
	s.persistMu.Unlock()

	if s.archive != nil {
		if _, err := s.archive.CommitState(propertyID, blob, entry.author, entry.message); err != nil {
			log.Printf("app: archive review state %s: %v", propertyID, err)
		}
	}
	if s.search != nil {
		s.search.IndexComments(comments, removed)
	}
	if s.events != nil {
		if err := s.events.PublishReviewUpdate(ctx, eventPayload{
			PropertyID: propertyID,
			ReviewBlob: blob,
		}); err != nil {
			log.Printf("app: publish review update %s: %v", propertyID, err)
		}
	}
	return nil
}

// FlushAll drains every pending edit, used on shutdown.
func (s *Service) FlushAll(ctx context.Context) {
	s.persistMu.Lock()
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	s.persistMu.Unlock()

	for _, id := range ids {
		if err := s.Flush(ctx, id); err != nil {
			log.Printf("app: flush review state %s: %v", id, err)
		}
	}
}

// commentRecords splits the registry into sections that currently carry
// a rejection comment and sections whose index entry must be removed.
func commentRecords(prop store.Property, state *review.State) ([]search.CommentRecord, []string) {
	var comments []search.CommentRecord
	var removed []string
	for _, section := range review.Sections {
		id := prop.ID + ":" + section.ID
		rec, ok := state.Records[section.ID]
		if !ok || rec.Comments == "" {
			removed = append(removed, id)
			continue
		}
		comments = append(comments, search.CommentRecord{
			ID:           id,
			PropertyID:   prop.ID,
			SectionID:    section.ID,
			SectionTitle: section.Title,
			Comments:     rec.Comments,
			Address:      prop.Address,
		})
	}
	return comments, removed
}
