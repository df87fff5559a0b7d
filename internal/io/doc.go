// Package ioutils provides file system utilities for model downloads.
//
// This package contains functions for:
//   - Filename sanitization for cross-platform compatibility
//   - Directory creation
//   - Partial file naming for in-flight transfers
//   - Verifying and committing finished transfers (write-then-rename)
//
// # Committing a Download
//
// A transfer writes into a partial file next to its destination and only
// becomes visible under the final name once it passes verification:
//
//	part := ioutils.PartialPath(dest, instance)
//	// ... write bytes to part ...
//	if err := ioutils.Verify(part, size, sha256hex); err != nil {
//	    return err
//	}
//	err := ioutils.Commit(part, dest)
//
// # Filename Sanitization
//
//	safe := ioutils.SanitizeFileName("model: v1/2") // Returns "model_ v1_2"
package ioutils
