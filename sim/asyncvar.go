package sim

// AsyncVar holds a value and lets observers wait for it to change. Set fires
// the change signal only when the new value differs from the current one.
type AsyncVar[T comparable] struct {
	value  T
	change Promise[Void]
}

// NewAsyncVar returns an AsyncVar holding initial.
func NewAsyncVar[T comparable](initial T) *AsyncVar[T] {
	return &AsyncVar[T]{value: initial, change: NewPromise[Void]()}
}

// Get returns the current value.
func (av *AsyncVar[T]) Get() T {
	return av.value
}

// OnChange returns a future that settles at the next value change after this
// call. Each change settles one generation of the signal; re-register after
// every wakeup.
func (av *AsyncVar[T]) OnChange() Future[Void] {
	return av.change.Future()
}

// Set installs v. If v differs from the current value, observers of the
// previous OnChange generation are woken; a fresh generation is installed
// first so that observers re-registering during the cascade see the new one.
func (av *AsyncVar[T]) Set(v T) {
	if v == av.value {
		return
	}
	av.value = v
	prev := av.change
	av.change = NewPromise[Void]()
	prev.Send(Void{})
}
