package agentrun

import (
	"os"
	"sync"
)

// Registry is the process-wide set of live child processes (spec.md §4.11,
// §5). It is the only mutable shared state in the orchestrator; the three
// invariants from §5's "Shared-resource policy" are enforced here:
//
//  1. every Add is eventually paired with a Delete (enforced by callers
//     using defer at every spawn site, see Invoke);
//  2. KillAll is idempotent (killing an already-dead process is a no-op
//     that returns success, per the "Idempotent kill" law in spec.md §8);
//  3. iteration sees a consistent snapshot (KillAll copies the live
//     entries out from under the lock before signaling any of them, so a
//     concurrent Add/Delete during the kill sweep can't corrupt iteration).
//
// Grounded on control/server.go's mutex-guarded server state and
// executor_interrupt.go's atomic interrupt flag, generalized into an
// explicit dependency injected into the Agent Runner and the cancellation
// handler (SPEC_FULL.md Design Notes) rather than an ambient singleton.
type Registry struct {
	mu    sync.Mutex
	procs map[string]*os.Process
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{procs: make(map[string]*os.Process)}
}

// Add registers a live process under agentID.
func (r *Registry) Add(agentID string, p *os.Process) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.procs[agentID] = p
}

// Delete removes agentID from the registry, if present.
func (r *Registry) Delete(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.procs, agentID)
}

// Len reports the number of currently-registered processes. The Round
// Iterator does not call it; tests use it to check that every spawn was
// deregistered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

// KillAll signals every currently-registered process with sig. Errors from
// already-exited processes are ignored: killing a dead process is defined
// to be a successful no-op (spec.md §8 "Idempotent kill" law).
func (r *Registry) KillAll(sig os.Signal) {
	r.mu.Lock()
	snapshot := make([]*os.Process, 0, len(r.procs))
	for _, p := range r.procs {
		snapshot = append(snapshot, p)
	}
	r.mu.Unlock()

	for _, p := range snapshot {
		_ = p.Signal(sig)
	}
}
