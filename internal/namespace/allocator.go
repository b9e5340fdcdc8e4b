package namespace

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"
)

// Prefix starts every allocated namespace so they are recognisable in the
// host's namespace editor.
const Prefix = "preview"

// Allocator hands out namespace ids and tracks which are in use.
type Allocator struct {
	mu      sync.Mutex
	counter uint64
	inUse   map[string]struct{}
	suffix  func() string
}

// NewAllocator returns an empty allocator.
func NewAllocator() *Allocator {
	return &Allocator{
		inUse: make(map[string]struct{}),
		suffix: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		},
	}
}

// Allocate returns a fresh namespace id for an asset with the given stem.
// The id stays reserved until Release.
func (a *Allocator) Allocate(stem string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	for {
		a.counter++
		id := fmt.Sprintf("%s_%s_%d_%s", Prefix, sanitize(stem), a.counter, a.suffix())
		if _, taken := a.inUse[id]; taken {
			continue
		}
		a.inUse[id] = struct{}{}
		return id
	}
}

// Release returns id to the allocator. Released ids are never handed out
// again because the counter only moves forward.
func (a *Allocator) Release(id string) {
	a.mu.Lock()
	delete(a.inUse, id)
	a.mu.Unlock()
}

// InUse reports whether id is currently reserved.
func (a *Allocator) InUse(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.inUse[id]
	return ok
}

// Active returns the number of reserved ids.
func (a *Allocator) Active() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.inUse)
}

// sanitize keeps letters, digits and underscores, which every host accepts
// in namespace names.
func sanitize(stem string) string {
	var b strings.Builder
	for _, r := range stem {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := strings.Trim(b.String(), "_")
	if s == "" {
		return "asset"
	}
	if len(s) > 32 {
		s = s[:32]
	}
	return s
}
