package sim

// ActorCollection owns a dynamic set of running futures and exposes one
// aggregate result. The aggregate fails with the first member error or
// cancellation; with returnWhenEmptied it succeeds once the set drains.
// Cancelling the aggregate cancels every outstanding member.
type ActorCollection struct {
	returnWhenEmptied bool
	result            Promise[Void]
	members           []*collectionMember
	outstanding       int
	tearingDown       bool
}

type collectionMember struct {
	f    Future[Void]
	hook *waiter
	done bool
}

// NewActorCollection returns an empty collection. With returnWhenEmptied the
// aggregate is fulfilled when the last member completes; without it the
// aggregate can only fail (or be cancelled), which is the shape used for
// populations of actors that are supposed to run forever.
func NewActorCollection(returnWhenEmptied bool) *ActorCollection {
	ac := &ActorCollection{
		returnWhenEmptied: returnWhenEmptied,
		result:            NewPromise[Void](),
	}
	ac.result.c.onCancel = ac.teardown
	return ac
}

// Add registers f as a member. Members may be added while the aggregate is
// outstanding; adding to a settled or tearing-down collection cancels f
// instead, since nothing will ever observe it.
func (ac *ActorCollection) Add(f Future[Void]) {
	if ac.result.IsSet() || ac.tearingDown {
		f.Cancel()
		return
	}
	m := &collectionMember{f: f}
	ac.members = append(ac.members, m)
	ac.outstanding++
	if f.IsReady() {
		ac.memberDone(m)
		return
	}
	m.hook = f.c.addWaiter(func() { ac.memberDone(m) })
}

// GetResult returns the aggregate future.
func (ac *ActorCollection) GetResult() Future[Void] {
	return ac.result.Future()
}

func (ac *ActorCollection) memberDone(m *collectionMember) {
	if ac.result.IsSet() {
		return
	}
	m.done = true
	m.hook = nil
	ac.outstanding--
	if _, err := m.f.Get(); err != nil {
		// First failure wins. Survivors are cancelled before the error is
		// published: by the time a waiter on the aggregate sees the error,
		// no member is still running.
		ac.tearingDown = true
		ac.detach()
		ac.cancelOutstanding()
		ac.result.Fail(err)
		return
	}
	if ac.returnWhenEmptied && ac.outstanding == 0 {
		ac.detach()
		ac.result.Send(Void{})
	}
}

// teardown handles cancellation of the aggregate future.
func (ac *ActorCollection) teardown() {
	ac.tearingDown = true
	ac.detach()
	ac.result.c.settleCancelled()
	ac.cancelOutstanding()
}

func (ac *ActorCollection) detach() {
	for _, m := range ac.members {
		if m.hook != nil {
			m.f.c.removeWaiter(m.hook)
			m.hook = nil
		}
	}
}

func (ac *ActorCollection) cancelOutstanding() {
	for _, m := range ac.members {
		if !m.done {
			m.done = true
			m.f.Cancel()
		}
	}
}
