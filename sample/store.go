package sample

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrStaleTicket is returned by Commit when the ticket was abandoned,
// already used, or superseded by a newer reservation.
var ErrStaleTicket = errors.New("sample: stale ticket")

// Ticket authorises exactly one commit of the Sample with sequence Seq.
type Ticket struct {
	Seq   uint64
	epoch uint64
}

// Store is a single-slot cell holding the latest committed Snapshot.
//
// Reads are lock-free and always return a Snapshot built by one Commit.
// Writers must hold the ticket of the current reservation: a collection
// that was abandoned after a timeout cannot publish its late result.
type Store struct {
	current  atomic.Pointer[Snapshot]
	histSize int

	mu    sync.Mutex
	epoch uint64
	open  bool
}

// NewStore creates a Store keeping up to histSize samples of history.
func NewStore(histSize int) *Store {
	if histSize < 1 {
		histSize = 1
	}
	s := &Store{histSize: histSize}
	s.current.Store(&Snapshot{})
	return s
}

// Read returns the latest committed Snapshot.
func (s *Store) Read() Snapshot {
	return *s.current.Load()
}

// Latest returns the latest committed Sample.
func (s *Store) Latest() Sample {
	return s.current.Load().Latest
}

// HistSize returns the history capacity.
func (s *Store) HistSize() int {
	return s.histSize
}

// Reserve opens a reservation for the next sequence number. Any earlier
// outstanding ticket becomes stale.
func (s *Store) Reserve() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	s.open = true
	return Ticket{Seq: s.current.Load().Latest.Seq + 1, epoch: s.epoch}
}

// Abandon voids t. It is a no-op when t is already stale.
func (s *Store) Abandon(t Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.epoch == s.epoch {
		s.open = false
	}
}

// Commit publishes smp if t is the current open reservation and smp
// carries the ticket's sequence number.
func (s *Store) Commit(t Ticket, smp Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open || t.epoch != s.epoch {
		return ErrStaleTicket
	}
	if smp.Seq != t.Seq {
		return fmt.Errorf("sample: commit seq %d with ticket for %d", smp.Seq, t.Seq)
	}

	prev := s.current.Load()
	next := &Snapshot{
		Latest:  smp,
		History: appendAndTrim(prev.History, smp, s.histSize),
	}
	s.current.Store(next)
	s.open = false
	return nil
}
