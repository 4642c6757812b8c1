// Package blob stores files behind prefixed names.
//
// A name has the form <prefix>:<path>. The prefix selects a backend:
//
//	file:docs/12/source.docx          local directory
//	s3:archive:docs/12/source.docx    object store bucket "archive"
//
// Store strips the prefix before calling a backend and puts it back on the
// name it returns. Buckets configured read-only accept writes and discard them.
package blob
