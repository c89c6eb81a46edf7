// Package resources bundles the fixture files served by default.
//
// Paths are the dotted resource keys with dots replaced by slashes, rooted
// at the filesystem returned by FS: "name.female" lives at "name/female".
package resources

import (
	"embed"
	"io/fs"
)

//go:embed data
var dataFiles embed.FS

// FS returns the bundled fixture files rooted at the data directory.
func FS() fs.FS {
	sub, err := fs.Sub(dataFiles, "data")
	if err != nil {
		// "data" is a fixed embed root; Sub cannot fail for it.
		panic(err)
	}
	return sub
}
