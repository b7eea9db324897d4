// Package try wraps (value, error) pairs so that tests can unwrap them inline:
//
//	client := try.To(rest.NewClient(prof)).OrFatal(t)
package try

// something have method `Fatal`.
//
// For example in standard libraries: *testing.T, log.Logger
type Fataler interface {
	Fatal(...any)
}

// Wrapper of a pair of (T, error).
type Either[T any] struct {
	value T
	err   error
}

func To[T any](value T, err error) Either[T] {
	return Either[T]{value: value, err: err}
}

// get value & error pair as it was given.
func (e Either[T]) Get() (T, error) {
	return e.value, e.err
}

// OrFatal returns the value when there is no error.
//
// Otherwise, it calls ftl.Fatal(err).
// If ftl has "Helper()" method (like *testing.T), also that is called before `Fatal`.
func (e Either[T]) OrFatal(ftl Fataler) T {
	if e.err == nil {
		return e.value
	}
	if hlp, ok := ftl.(interface{ Helper() }); ok {
		hlp.Helper()
	}
	ftl.Fatal(e.err)
	return *new(T)
}

// OrDefault returns the value when there is no error, d otherwise.
func (e Either[T]) OrDefault(d T) T {
	if e.err != nil {
		return d
	}
	return e.value
}
