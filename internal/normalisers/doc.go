// Package normalisers turns source content into plain text and structure.
//
// Each sub-package handles one family of MIME types. Registry dispatches
// to the highest-priority normaliser for a type; NewDefaultRegistry wires
// the built-in ones.
package normalisers
