package domain

import (
	"testing"

	"euroaip/testutil"
)

// The domain layer stays free of implementation packages and storage drivers.
func TestDomainImportsStayPure(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".",
		testutil.AnyOf(testutil.InternalImport, testutil.InfrastructureImport),
		"domain types are shared by every layer")
}
