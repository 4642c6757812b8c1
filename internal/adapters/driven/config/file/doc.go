// Package file provides the file-backed configuration store.
//
// Configuration lives in a TOML file inside the peachjam config directory.
// Nested tables are flattened to dot keys, so
//
//	[search]
//	strict = false
//
// is read as "search.strict". String values of the form "env:NAME" are
// resolved from the environment when read, which keeps secrets out of the file.
package file
