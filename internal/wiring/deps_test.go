package wiring_test

import (
	"testing"

	"github.com/grindlemire/graft"
)

// TestGraftDependencies checks that every node declaring a dependency uses it,
// and every used dependency is declared.
func TestGraftDependencies(t *testing.T) {
	// AssertDepsValid infers a dependency ID from the package of the type passed to Dep[T].
	// Several nodes here provide ports.* interfaces, so every one of them would be
	// reported as an undeclared "ports" dependency.
	t.Skip("graft infers dependency IDs from the ports package name")
	graft.AssertDepsValid(t, "../../internal")
}
