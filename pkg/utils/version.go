// Package utils holds small one-off helpers shared across chrysalis commands
// that don't warrant a package of their own.
package utils

// Build metadata stamped by the linker at release time; the zero values
// identify a local development build.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)
