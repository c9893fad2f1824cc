package state

import (
	"sync"
	"sync/atomic"
)

// QueuedFile is a file received before the UI signalled readiness.
type QueuedFile struct {
	Path         string `json:"path"`
	AutoCompress bool   `json:"autoCompress"`
}

// Startup is the StartupQueue plus the one-way frontend readiness flag.
// Readiness and the queue share a lock so that the readiness flip and the
// drain happen as one step, and a push can never land in a queue that
// has already been drained.
type Startup struct {
	mu    sync.Mutex
	ready bool
	queue []QueuedFile
}

// Push appends paths to the queue. It returns false without queueing when
// the UI is already ready; the caller must then deliver the files live.
func (s *Startup) Push(paths []string, autoCompress bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return false
	}
	for _, p := range paths {
		s.queue = append(s.queue, QueuedFile{Path: p, AutoCompress: autoCompress})
	}
	return true
}

// MarkReadyAndDrain flips readiness to true and returns everything queued,
// in arrival order. Only the first call returns files.
func (s *Startup) MarkReadyAndDrain() []QueuedFile {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ready = true
	drained := s.queue
	s.queue = nil
	if drained == nil {
		return []QueuedFile{}
	}
	return drained
}

// IsReady reports whether the UI has signalled readiness.
func (s *Startup) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Len returns the number of queued files.
func (s *Startup) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Background is the one-way background-mode flag.
type Background struct {
	on atomic.Bool
}

// Enter sets background mode. It reports whether this call made the
// false to true transition.
func (b *Background) Enter() bool {
	return b.on.CompareAndSwap(false, true)
}

// IsSet reports whether background mode is on.
func (b *Background) IsSet() bool {
	return b.on.Load()
}
