// Package testutil holds small helpers shared by tests.
package testutil

// Ptr returns a pointer to a copy of v, for optional manifest fields such
// as spec.greet.
func Ptr[T any](v T) *T { return &v }
