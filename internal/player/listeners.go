// Package player provides playback.Player implementations: a wall-clock
// driven virtual player and an adapter for mpv's JSON IPC socket.
package player

import "sync"

// listeners fans time updates out to subscribers. Callbacks run without the
// lock held so they may unsubscribe or drive the player.
type listeners struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(float64)
}

func (l *listeners) add(fn func(float64)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func(float64))
	}
	l.nextID++
	id := l.nextID
	l.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.fns, id)
			l.mu.Unlock()
		})
	}
}

func (l *listeners) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fns)
}

func (l *listeners) emit(t float64) {
	l.mu.Lock()
	fns := make([]func(float64), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(t)
	}
}
