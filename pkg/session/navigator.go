package session

import "sync"

// Navigator is the view the session sends users to when it can no longer
// recover. Location reports the current view path.
type Navigator interface {
	Location() string
	Navigate(path string)
}

// Location is an in-process Navigator. It records the current view and
// tells subscribers about every navigation.
type Location struct {
	mu   sync.Mutex
	path string
	subs []func(string)
}

// NewLocation starts at path.
func NewLocation(path string) *Location {
	return &Location{path: path}
}

func (l *Location) Location() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.path
}

func (l *Location) Navigate(path string) {
	l.mu.Lock()
	l.path = path
	subs := append([]func(string){}, l.subs...)
	l.mu.Unlock()

	for _, fn := range subs {
		fn(path)
	}
}

// OnNavigate registers fn to be called after each navigation.
func (l *Location) OnNavigate(fn func(path string)) {
	l.mu.Lock()
	l.subs = append(l.subs, fn)
	l.mu.Unlock()
}
