package memscene

import (
	"errors"
	"fmt"

	"asset-preview/internal/scene"
)

// Forever makes an injected fault permanent.
const Forever = -1

// ErrInjected marks failures produced by fault injection.
var ErrInjected = errors.New("injected fault")

type faults struct {
	deletes         map[scene.NodeID]int
	deletePanics    map[scene.NodeID]int
	unlocks         map[scene.NodeID]int
	removeNamespace int
	captureErr      error
	importFailAfter int
}

func newFaults() faults {
	return faults{
		deletes:      make(map[scene.NodeID]int),
		deletePanics: make(map[scene.NodeID]int),
		unlocks:      make(map[scene.NodeID]int),
	}
}

// take decrements a fault counter and reports whether it fired.
func take(counts map[scene.NodeID]int, id scene.NodeID) bool {
	n, ok := counts[id]
	if !ok || n == 0 {
		return false
	}
	if n > 0 {
		counts[id] = n - 1
	}
	return true
}

func (f *faults) takeDelete(id scene.NodeID) error {
	if take(f.deletePanics, id) {
		panic(fmt.Sprintf("memscene: delete %s crashed", id))
	}
	if take(f.deletes, id) {
		return fmt.Errorf("%s: %w", id, ErrInjected)
	}
	return nil
}

func (f *faults) takeUnlock(id scene.NodeID) error {
	if take(f.unlocks, id) {
		return fmt.Errorf("lock %s: %w", id, ErrInjected)
	}
	return nil
}

func (f *faults) takeRemoveNamespace(ns string) error {
	if f.removeNamespace == 0 {
		return nil
	}
	if f.removeNamespace > 0 {
		f.removeNamespace--
	}
	return fmt.Errorf("remove namespace %q: %w", ns, ErrInjected)
}

// FailDelete makes the next n deletion attempts that include id fail,
// whether through Delete or RemoveNamespace. Use Forever for a node that
// can never be deleted.
func (s *Scene) FailDelete(id scene.NodeID, n int) {
	s.mu.Lock()
	s.faults.deletes[id] = n
	s.mu.Unlock()
}

// PanicDelete makes the next n deletion attempts that include id panic.
func (s *Scene) PanicDelete(id scene.NodeID, n int) {
	s.mu.Lock()
	s.faults.deletePanics[id] = n
	s.mu.Unlock()
}

// FailUnlock makes the next n lock changes on id fail.
func (s *Scene) FailUnlock(id scene.NodeID, n int) {
	s.mu.Lock()
	s.faults.unlocks[id] = n
	s.mu.Unlock()
}

// FailRemoveNamespace makes the next n namespace removals fail.
func (s *Scene) FailRemoveNamespace(n int) {
	s.mu.Lock()
	s.faults.removeNamespace = n
	s.mu.Unlock()
}

// FailCapture makes every capture fail with err until called with nil.
func (s *Scene) FailCapture(err error) {
	s.mu.Lock()
	s.faults.captureErr = err
	s.mu.Unlock()
}

// FailImportAfter makes imports abort after creating n nodes. Zero disables.
func (s *Scene) FailImportAfter(n int) {
	s.mu.Lock()
	s.faults.importFailAfter = n
	s.mu.Unlock()
}
