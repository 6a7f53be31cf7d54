package cell

import "errors"

// ErrCycle is the panic cause when an expression's getter transitively
// reads the expression itself during its own compute. The check is active
// only when DevMode is set; without it the compute recurses until the
// stack overflows.
var ErrCycle = errors.New("cell: dependency cycle detected")

// ErrMissingSetter is the panic cause when Reset or Swap is called on an
// expression that was built without WithSetter.
var ErrMissingSetter = errors.New("cell: expression has no setter")

// ErrValidationRejected is the panic cause when a value passed to Reset or
// Swap fails the expression's validator. The expression's state is left
// unchanged.
var ErrValidationRejected = errors.New("cell: validator rejected value")
