package assay

// -----------------------------------------------------------------------------
// Scoped override
// -----------------------------------------------------------------------------

// priorEntry snapshots one registry key's state before an override.
type priorEntry struct {
	spec    string
	handler HandlerType
	present bool
}

// WithHandlers temporarily substitutes registry entries for the
// duration of fn.
//
// Every (spec, handler) pair in temp is installed with overwrite
// semantics before fn runs. When fn returns, even by panic, the
// registry is restored to exactly its prior state: specs that were
// absent are deregistered, specs that had a prior handler get that
// handler back.
// Cached handler instances of the temporary types are closed and
// evicted during restoration.
//
// Concurrent WithHandlers calls on the same resolver are serialized,
// so an override scope never observes another scope's substitutions.
// Resolutions issued outside the scope while it runs do observe the
// temporary handlers; callers needing full isolation should use a
// dedicated Registry with GetDataFrom instead.
func (r *Resolver) WithHandlers(temp map[string]HandlerType, fn func() error) error {
	r.overrides.Lock()
	defer r.overrides.Unlock()

	r.mu.Lock()
	priors := make([]priorEntry, 0, len(temp))
	for spec, h := range temp {
		prev, had := r.registry.replace(spec, h)
		priors = append(priors, priorEntry{spec: spec, handler: prev, present: had})
	}
	r.mu.Unlock()

	// Restoration runs deferred so panics inside fn cannot leave the
	// registry carrying temporary handlers.
	defer func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, prior := range priors {
			r.deregisterLocked(prior.spec)
			if prior.present {
				// The prior mapping passed Register once already.
				_ = r.registry.Register(prior.spec, prior.handler)
			}
		}
	}()

	return fn()
}
