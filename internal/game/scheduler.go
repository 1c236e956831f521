package game

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	historyCapacity  = 50
	recentWinnersCap = 10

	defaultSettleDelay     = 1 * time.Second
	defaultInterRoundDelay = 3 * time.Second
)

// Scheduler drives the round lifecycle for one game kind. It owns the
// current and next rounds, advances them on timers, and fans lifecycle
// events out to listeners. All round mutation is serialized behind one
// mutex; timer callbacks never touch a round concurrently.
type Scheduler struct {
	kind     GameKind
	baseSeed int32

	mu            sync.Mutex
	params        GameParams
	rounds        map[string]*Round
	current       *Round
	next          *Round
	history       []RoundSnapshot
	recentWinners []string
	running       bool

	timerSeq int
	timers   map[int]*time.Timer

	listenerMu sync.RWMutex
	listeners  []Listener

	settleDelay     time.Duration
	interRoundDelay time.Duration
}

func NewScheduler(kind GameKind, baseSeed int32, params GameParams) *Scheduler {
	return &Scheduler{
		kind:            kind,
		baseSeed:        baseSeed,
		params:          params,
		rounds:          make(map[string]*Round),
		timers:          make(map[int]*time.Timer),
		settleDelay:     defaultSettleDelay,
		interRoundDelay: defaultInterRoundDelay,
	}
}

// Subscribe registers a lifecycle listener. Listeners run outside the
// scheduler's critical section and a panicking listener never propagates.
func (s *Scheduler) Subscribe(l Listener) {
	s.listenerMu.Lock()
	s.listeners = append(s.listeners, l)
	s.listenerMu.Unlock()
}

// Configure replaces the parameters used for rounds created from now on.
// The current and already-queued rounds keep the parameters they were
// created with.
func (s *Scheduler) Configure(params GameParams) GameParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = params
	return s.params
}

// Params returns the configuration applied to newly created rounds.
func (s *Scheduler) Params() GameParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// Start queues the first current/next pair and begins the round chain. A
// second Start on a running scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true

	// Rounds orphaned by a previous Stop are never resumed; evict them so a
	// stop/start cycle cannot grow the active set.
	for id, r := range s.rounds {
		if r.State != RoundCompleted && r.State != RoundDiscarded {
			r.Discard()
		}
		delete(s.rounds, id)
	}

	s.current = s.newRound()
	s.next = s.newRound()

	events := s.startCurrentLocked()
	events = append(events, s.eventLocked(EventNextQueued, s.next))
	s.mu.Unlock()

	s.emit(events)
	log.Printf("[SCHED] %s scheduler started", s.kind)
}

// Stop cancels every pending timer. An in-flight round is left in whatever
// state it reached; it is never resumed.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	log.Printf("[SCHED] %s scheduler stopped", s.kind)
}

// PlaceWager attaches a wager to the current round. Rejected unless that
// round is Running, so late wagers can never race settlement.
func (s *Scheduler) PlaceWager(w *Wager) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ErrRoundNotRunning
	}
	return s.current.PlaceWager(w)
}

// CurrentSnapshot returns the public view of the current round.
func (s *Scheduler) CurrentSnapshot() (RoundSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return RoundSnapshot{}, false
	}
	return s.current.Snapshot(), true
}

// History returns up to limit completed rounds, newest first.
func (s *Scheduler) History(limit int) []RoundSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]RoundSnapshot, limit)
	for i := 0; i < limit; i++ {
		out[i] = s.history[n-1-i]
	}
	return out
}

// RecentWinners returns the winning colors of the most recent color rounds,
// oldest first.
func (s *Scheduler) RecentWinners() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.recentWinners))
	copy(out, s.recentWinners)
	return out
}

func (s *Scheduler) newRound() *Round {
	id := fmt.Sprintf("%s-%s", s.kind, uuid.NewString())
	r := NewRound(s.kind, id, s.baseSeed, s.params)
	s.rounds[id] = r
	return r
}

// startCurrentLocked transitions the current round to Running and arms the
// end-of-round timer. Caller holds s.mu.
func (s *Scheduler) startCurrentLocked() []Event {
	r := s.current
	recent := make([]string, len(s.recentWinners))
	copy(recent, s.recentWinners)

	if err := r.Start(recent); err != nil {
		log.Printf("[SCHED] %s round %s failed to start: %v", s.kind, r.ID, err)
		return nil
	}

	id := r.ID
	s.armLocked(r.Duration(), func() { s.endRound(id) })
	return []Event{s.eventLocked(EventRoundStart, r)}
}

func (s *Scheduler) endRound(id string) {
	s.mu.Lock()
	r, ok := s.rounds[id]
	if !ok || !s.running {
		s.mu.Unlock()
		return
	}
	if err := r.End(); err != nil {
		log.Printf("[SCHED] %s round %s end rejected: %v", s.kind, id, err)
		s.mu.Unlock()
		return
	}
	events := []Event{s.eventLocked(EventRoundEnd, r)}
	s.armLocked(s.settleDelay, func() { s.completeRound(id) })
	s.mu.Unlock()

	s.emit(events)
}

func (s *Scheduler) completeRound(id string) {
	s.mu.Lock()
	r, ok := s.rounds[id]
	if !ok || !s.running {
		s.mu.Unlock()
		return
	}
	if err := r.Complete(); err != nil {
		log.Printf("[SCHED] %s round %s complete rejected: %v", s.kind, id, err)
		s.mu.Unlock()
		return
	}

	s.archiveLocked(r)
	delete(s.rounds, id)

	events := []Event{s.eventLocked(EventRoundDone, r)}

	// Ownership transfers to history; the queued round takes over.
	s.current = s.next
	s.next = s.newRound()
	events = append(events, s.eventLocked(EventNextQueued, s.next))

	s.armLocked(s.interRoundDelay, s.startNext)
	s.mu.Unlock()

	s.emit(events)
}

func (s *Scheduler) startNext() {
	s.mu.Lock()
	if !s.running || s.current == nil {
		s.mu.Unlock()
		return
	}
	events := s.startCurrentLocked()
	s.mu.Unlock()

	s.emit(events)
}

// archiveLocked appends the completed round to the bounded history ring and
// records its winning color. Caller holds s.mu.
func (s *Scheduler) archiveLocked(r *Round) {
	s.history = append(s.history, r.Snapshot())
	if len(s.history) > historyCapacity {
		s.history = s.history[1:]
	}
	if r.Color != nil {
		s.recentWinners = append(s.recentWinners, r.Color.WinningColor)
		if len(s.recentWinners) > recentWinnersCap {
			s.recentWinners = s.recentWinners[1:]
		}
	}
}

// armLocked schedules a callback and retains its cancellation handle so Stop
// can deterministically clear pending transitions. Caller holds s.mu.
func (s *Scheduler) armLocked(d time.Duration, fn func()) {
	s.timerSeq++
	id := s.timerSeq
	s.timers[id] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		fn()
	})
}

func (s *Scheduler) eventLocked(t EventType, r *Round) Event {
	return Event{Type: t, Kind: s.kind, Round: r.Snapshot(), At: time.Now()}
}

func (s *Scheduler) emit(events []Event) {
	if len(events) == 0 {
		return
	}
	s.listenerMu.RLock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.listenerMu.RUnlock()

	for _, ev := range events {
		for _, l := range listeners {
			func() {
				defer func() {
					if rec := recover(); rec != nil {
						log.Printf("[SCHED] %s listener panic on %s: %v", s.kind, ev.Type, rec)
					}
				}()
				l(ev)
			}()
		}
	}
}
