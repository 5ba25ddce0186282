package registry

import "time"

// Attach installs out as the live connection of the client holding
// credential. A pending eviction is cancelled and a previously attached
// outbound is closed, all under the registry lock.
func (r *Registry) Attach(credential string, out *Outbound) error {
	if out == nil {
		return ErrNilOutbound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	e, ok := r.byCredential[credential]
	if !ok {
		return ErrNotFound
	}

	resumed := e.eviction != nil
	if resumed {
		e.eviction.timer.Stop()
		e.eviction = nil
	}

	if e.outbound != nil && e.outbound != out {
		e.outbound.Close()
		r.log.Info("Superseded previous connection", "name", e.name)
	}
	e.outbound = out

	r.log.Info("Client connected", "name", e.name, "resumed", resumed)
	return nil
}

// Detach clears the connection of the client holding credential and starts
// its grace period. When out is non-nil, Detach only acts if out is still the
// attached outbound, so a late disconnect from a superseded connection cannot
// detach its replacement. Detaching an offline client is a no-op.
func (r *Registry) Detach(credential string, out *Outbound) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byCredential[credential]
	if !ok || e.outbound == nil {
		return
	}
	if out != nil && e.outbound != out {
		return
	}

	e.outbound.Close()
	e.outbound = nil

	if r.closed {
		return
	}

	r.generation++
	generation := r.generation
	e.eviction = &eviction{generation: generation}
	e.eviction.timer = time.AfterFunc(r.gracePeriod, func() {
		r.expire(credential, generation)
	})

	r.log.Info("Client disconnected", "name", e.name, "grace", r.gracePeriod)
}

// expire evicts the client holding credential if generation still identifies
// its current eviction timer.
func (r *Registry) expire(credential string, generation uint64) {
	r.mu.Lock()
	e, ok := r.byCredential[credential]
	if !ok || e.eviction == nil || e.eviction.generation != generation {
		r.mu.Unlock()
		return
	}

	evicted := e.view()
	r.deleteLocked(e)
	total := len(r.byName)
	hook := r.onEvict
	r.mu.Unlock()

	r.log.Info("Client expired", "name", evicted.Name, "total", total)
	if hook != nil {
		hook(evicted)
	}
}
