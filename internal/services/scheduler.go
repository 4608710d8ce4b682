package services

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// accountQueue is the settlement backlog of one account, ordered by transaction id.
// Only its head is ever handed to a worker, so an account settles oldest first.
type accountQueue struct {
	pending []string
	running bool            // head is with a worker or waiting out a backoff
	queued  bool            // account is listed in scheduler.ready
	backoff backoff.BackOff // retry schedule of the current head
}

// scheduler distributes transaction ids to workers, at most one per account at a time.
type scheduler struct {
	mu     sync.Mutex
	queues map[uuid.UUID]*accountQueue
	ready  []uuid.UUID
	known  map[string]struct{}
	wake   chan struct{}
}

func newScheduler() *scheduler {
	return &scheduler{
		queues: make(map[uuid.UUID]*accountQueue),
		known:  make(map[string]struct{}),
		wake:   make(chan struct{}, 1),
	}
}

// push inserts id into the owner's queue in id order, behind a head that is
// already running. It reports false if id is already scheduled.
func (s *scheduler) push(ownerID uuid.UUID, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.known[id]; exists {
		return false
	}
	s.known[id] = struct{}{}

	q, exists := s.queues[ownerID]
	if !exists {
		q = &accountQueue{}
		s.queues[ownerID] = q
	}
	start := 0
	if q.running {
		start = 1
	}
	i, _ := slices.BinarySearch(q.pending[start:], id)
	q.pending = slices.Insert(q.pending, start+i, id)
	s.markReady(ownerID, q)
	return true
}

// next blocks until an account head is available or ctx is done.
func (s *scheduler) next(ctx context.Context) (uuid.UUID, string, bool) {
	for {
		s.mu.Lock()
		if len(s.ready) > 0 {
			ownerID := s.ready[0]
			s.ready = s.ready[1:]
			q := s.queues[ownerID]
			q.queued = false
			q.running = true
			id := q.pending[0]
			if len(s.ready) > 0 {
				s.signal()
			}
			s.mu.Unlock()
			return ownerID, id, true
		}
		s.mu.Unlock()

		select {
		case <-s.wake:
		case <-ctx.Done():
			return uuid.Nil, "", false
		}
	}
}

// done removes the owner's head and releases the account for its next transaction.
func (s *scheduler) done(ownerID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, exists := s.queues[ownerID]
	if !exists || len(q.pending) == 0 {
		return
	}
	delete(s.known, q.pending[0])
	q.pending = q.pending[1:]
	q.running = false
	q.backoff = nil

	if len(q.pending) == 0 {
		delete(s.queues, ownerID)
		return
	}
	s.markReady(ownerID, q)
}

// retry keeps the owner's head in place and hands it out again after the next
// backoff interval. The account stays blocked meanwhile.
func (s *scheduler) retry(ownerID uuid.UUID, newBackOff func() backoff.BackOff) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, exists := s.queues[ownerID]
	if !exists {
		return 0
	}
	if q.backoff == nil {
		q.backoff = newBackOff()
	}
	delay := q.backoff.NextBackOff()
	if delay == backoff.Stop {
		q.backoff.Reset()
		delay = q.backoff.NextBackOff()
	}

	time.AfterFunc(delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		q.running = false
		s.markReady(ownerID, q)
	})
	return delay
}

// size returns the number of scheduled transactions.
func (s *scheduler) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.known)
}

func (s *scheduler) markReady(ownerID uuid.UUID, q *accountQueue) {
	if q.running || q.queued || len(q.pending) == 0 {
		return
	}
	q.queued = true
	s.ready = append(s.ready, ownerID)
	s.signal()
}

func (s *scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
