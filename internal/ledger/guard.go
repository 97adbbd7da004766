package ledger

// Guard blocks re-entry into an operation while it is in progress.
type Guard struct {
	busy bool
}

// Enter marks the guard busy. The returned release must be deferred.
func (g *Guard) Enter(op string) (release func(), err error) {
	if g.busy {
		return nil, Fail(op, ErrReentrant)
	}
	g.busy = true
	return func() { g.busy = false }, nil
}

// Busy reports whether a guarded call is running.
func (g *Guard) Busy() bool {
	return g.busy
}
