package manager

// taskSlot tracks one background task. Its done channel is closed when the
// task goroutine exits, which is the liveness signal the admission gate
// checks: a slot whose goroutine died (even by panic) never wedges the gate.
type taskSlot struct {
	name string
	done chan struct{}
}

// tryAcquire claims the single active-operation slot. It returns false while
// a previously admitted task is still alive.
func (m *Manager) tryAcquire(name string) (*taskSlot, bool) {
	m.taskMu.Lock()
	defer m.taskMu.Unlock()

	if m.active != nil {
		select {
		case <-m.active.done:
			m.active = nil
		default:
			return nil, false
		}
	}

	slot := &taskSlot{name: name, done: make(chan struct{})}
	m.active = slot
	return slot, true
}

// release marks the slot's task finished. Safe to call exactly once, from the
// task goroutine's defer.
func (m *Manager) release(slot *taskSlot) {
	close(slot.done)
}

// ActiveTask reports the name of the currently running background task, if any.
func (m *Manager) ActiveTask() (string, bool) {
	m.taskMu.Lock()
	defer m.taskMu.Unlock()

	if m.active == nil {
		return "", false
	}
	select {
	case <-m.active.done:
		m.active = nil
		return "", false
	default:
		return m.active.name, true
	}
}

// Wait blocks until the current background task, if any, finishes. Intended
// for tests and orderly daemon shutdown.
func (m *Manager) Wait() {
	m.taskMu.Lock()
	slot := m.active
	m.taskMu.Unlock()

	if slot != nil {
		<-slot.done
	}
}
