package views

import (
	"sort"
	"sync"
	"time"
)

// Scheduler defers work. The returned func cancels it and reports whether it
// was still pending.
type Scheduler interface {
	AfterFunc(delay time.Duration, fn func()) func() bool
}

// TimerScheduler schedules with time.AfterFunc.
type TimerScheduler struct{}

// AfterFunc implements Scheduler.
func (TimerScheduler) AfterFunc(delay time.Duration, fn func()) func() bool {
	return time.AfterFunc(delay, fn).Stop
}

// ManualScheduler runs deferred work only when its virtual clock is advanced.
// The CLI uses it to print a view before its redirects and feedback expiry run;
// tests use it to fire timers deterministically.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []*manualTask
}

type manualTask struct {
	at      time.Duration
	seq     int
	fn      func()
	stopped bool
}

// AfterFunc implements Scheduler.
func (s *ManualScheduler) AfterFunc(delay time.Duration, fn func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	task := &manualTask{at: s.now + delay, seq: s.seq, fn: fn}
	s.tasks = append(s.tasks, task)
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, pending := range s.tasks {
			if pending == task {
				s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
				task.stopped = true
				return true
			}
		}
		return false
	}
}

// Pending reports how many tasks are waiting.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Advance moves the virtual clock forward by d and runs every task that came due,
// earliest first.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()
	for {
		task := s.popDue(target)
		if task == nil {
			break
		}
		task.fn()
	}
	s.mu.Lock()
	if s.now < target {
		s.now = target
	}
	s.mu.Unlock()
}

// Flush runs every pending task, including tasks scheduled while flushing.
func (s *ManualScheduler) Flush() {
	for {
		s.mu.Lock()
		if len(s.tasks) == 0 {
			s.mu.Unlock()
			return
		}
		latest := s.now
		for _, task := range s.tasks {
			if task.at > latest {
				latest = task.at
			}
		}
		s.mu.Unlock()
		s.Advance(latest - s.currentTime())
	}
}

func (s *ManualScheduler) currentTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *ManualScheduler) popDue(target time.Duration) *manualTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	sort.SliceStable(s.tasks, func(i, j int) bool {
		if s.tasks[i].at == s.tasks[j].at {
			return s.tasks[i].seq < s.tasks[j].seq
		}
		return s.tasks[i].at < s.tasks[j].at
	})
	if len(s.tasks) == 0 || s.tasks[0].at > target {
		return nil
	}
	task := s.tasks[0]
	s.tasks = s.tasks[1:]
	s.now = task.at
	return task
}
