// Package results carries the outcome of a service operation: either a
// success value or a domain failure. Infrastructure errors travel beside it
// as a plain error.
package results

// OperationResult holds exactly one of Success or Failure.
type OperationResult[S any, F any] struct {
	Success *S
	Failure *F
}

// SuccessResult wraps a success value.
func SuccessResult[S any, F any](value S) OperationResult[S, F] {
	return OperationResult[S, F]{Success: &value}
}

// FailureResult wraps a domain failure.
func FailureResult[S any, F any](failure F) OperationResult[S, F] {
	return OperationResult[S, F]{Failure: &failure}
}

func (r OperationResult[S, F]) IsSuccess() bool {
	return r.Success != nil
}

func (r OperationResult[S, F]) IsFailure() bool {
	return r.Failure != nil
}
