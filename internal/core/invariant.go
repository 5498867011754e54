package core

import "fmt"

// AssertInvariant panics when condition is false. Use only for programming errors.
func AssertInvariant(condition bool, message string) {
	if !condition {
		panic(fmt.Sprintf("invariant violated: %s", message))
	}
}
