package echoweb

import (
	"sync"
	"time"

	"github.com/trezcool/masomo/portal/core/enrollment"
	"github.com/trezcool/masomo/portal/core/quiz"
	"github.com/trezcool/masomo/portal/core/table"
	"github.com/trezcool/masomo/portal/core/user"
)

// workspace is the state one visitor keeps between requests: table views,
// the enrollment flow, the registration form and quiz attempts.
type workspace struct {
	mu       sync.Mutex
	lastSeen time.Time

	views    map[string]interface{}
	flow     *enrollment.Flow
	form     *user.RegistrationForm
	formMu   sync.Mutex // the form is not safe for concurrent use
	attempts map[string]*quiz.Attempt
}

// viewOf returns the named view of ws, building it on first use.
func viewOf[R any](ws *workspace, name string, build func() *table.View[R]) *table.View[R] {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if v, ok := ws.views[name].(*table.View[R]); ok {
		return v
	}
	v := build()
	ws.views[name] = v
	return v
}

func (ws *workspace) enrollment(build func() *enrollment.Flow) *enrollment.Flow {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.flow == nil {
		ws.flow = build()
	}
	return ws.flow
}

func (ws *workspace) registration(build func() *user.RegistrationForm) *user.RegistrationForm {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.form == nil {
		ws.form = build()
	}
	return ws.form
}

func (ws *workspace) attempt(quizID string, build func() *quiz.Attempt) *quiz.Attempt {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	a, ok := ws.attempts[quizID]
	if !ok {
		a = build()
		ws.attempts[quizID] = a
	}
	return a
}

// registry maps visitors (session tokens, registration cookies, one-time
// tokens) to their workspace. Workspaces idle for longer than ttl are evicted.
type registry struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	spaces map[string]*workspace
}

func newRegistry(ttl time.Duration) *registry {
	return &registry{ttl: ttl, now: time.Now, spaces: make(map[string]*workspace)}
}

// get returns the workspace of key, creating it if needed.
func (r *registry) get(key string) *workspace {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evict(now)
	ws, ok := r.spaces[key]
	if !ok {
		ws = &workspace{
			views:    make(map[string]interface{}),
			attempts: make(map[string]*quiz.Attempt),
		}
		r.spaces[key] = ws
	}
	ws.lastSeen = now
	return ws
}

// peek returns the workspace of key without creating or touching it.
func (r *registry) peek(key string) (*workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.spaces[key]
	return ws, ok
}

func (r *registry) drop(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.spaces, key)
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.spaces)
}

// evict drops expired workspaces. mu must be held.
func (r *registry) evict(now time.Time) {
	if r.ttl <= 0 {
		return
	}
	for key, ws := range r.spaces {
		if now.Sub(ws.lastSeen) > r.ttl {
			delete(r.spaces, key)
		}
	}
}
