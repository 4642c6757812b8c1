// Package bleve implements driven.SearchIndex on bleve indexes, one per
// analyzer language.
//
// Bleve has no nested documents. Pages and provisions are indexed as child
// documents in the same index, tagged with doc_kind and parent_id, and nested
// queries are resolved into parent scores before the parent query runs.
package bleve
