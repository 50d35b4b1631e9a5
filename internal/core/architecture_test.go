package core

import (
	"testing"

	"assetledger/testutil"
)

func TestCoreDoesNotImportOuterLayers(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.AdapterImportForbidden,
		"core is driven by adapters, schedulers and binaries, never the reverse")
}
