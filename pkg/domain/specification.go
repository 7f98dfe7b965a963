package domain

// ---------------------------------------------------------------------------
// Specification pattern: composable query predicates
// ---------------------------------------------------------------------------

// Specification is a predicate over domain objects, evaluated by stores that
// filter in memory.
type Specification[T any] interface {
	IsSatisfiedBy(entity *T) bool
}

// SpecFunc adapts a plain function to Specification.
type SpecFunc[T any] func(entity *T) bool

func (f SpecFunc[T]) IsSatisfiedBy(entity *T) bool { return f(entity) }

// All matches every entity.
func All[T any]() Specification[T] {
	return SpecFunc[T](func(*T) bool { return true })
}

// AndSpec combines two specifications with AND logic.
type AndSpec[T any] struct {
	Left  Specification[T]
	Right Specification[T]
}

func (s AndSpec[T]) IsSatisfiedBy(entity *T) bool {
	return s.Left.IsSatisfiedBy(entity) && s.Right.IsSatisfiedBy(entity)
}

// NotSpec negates a specification.
type NotSpec[T any] struct {
	Spec Specification[T]
}

func (s NotSpec[T]) IsSatisfiedBy(entity *T) bool {
	return !s.Spec.IsSatisfiedBy(entity)
}
