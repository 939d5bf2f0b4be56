// Package testutil provides small helpers shared by examples and tests.
package testutil

import "os"

// RemoveAll removes the path and any children, ignoring errors. Meant
// for defer cleanup of temporary catalog roots and resource files:
//
//	defer testutil.RemoveAll(tmpDir)
func RemoveAll(path string) { _ = os.RemoveAll(path) }
