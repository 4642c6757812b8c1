// Package html extracts plain text, a table of contents and per-provision
// text from marked-up documents.
//
// Akoma Ntoso content rendered to HTML marks structural elements with
// akn-<type> classes and carries their ids in id or data-eId attributes.
// Those elements become TOC entries; their text becomes provision text.
package html
