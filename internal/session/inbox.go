package session

import (
	"sync"
	"time"

	"github.com/rs/xid"
)

// Variant is the visual style of a toast.
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Toast is a short-lived, user-visible message.
type Toast struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Variant     Variant   `json:"variant"`
	CreatedAt   time.Time `json:"createdAt"`
}

// inboxLimit caps the number of undelivered toasts. The oldest are dropped first.
const inboxLimit = 20

// Inbox collects toasts for one browser client until it polls for them.
type Inbox struct {
	mu    sync.Mutex
	items []Toast
}

func NewInbox() *Inbox {
	return &Inbox{}
}

// Push fills in ID and CreatedAt when empty and queues the toast.
func (in *Inbox) Push(t Toast) {
	if t.ID == "" {
		t.ID = xid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if t.Variant == "" {
		t.Variant = VariantDefault
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	in.items = append(in.items, t)
	if over := len(in.items) - inboxLimit; over > 0 {
		in.items = append([]Toast(nil), in.items[over:]...)
	}
}

// Drain returns the queued toasts, oldest first, and empties the inbox.
func (in *Inbox) Drain() []Toast {
	in.mu.Lock()
	defer in.mu.Unlock()

	out := in.items
	in.items = nil
	if out == nil {
		out = []Toast{}
	}
	return out
}

func (in *Inbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.items)
}
