package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates an optional operation is not supported.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnsupportedType indicates an unknown adapter, kind or backend.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Semantic and hybrid search degrade to text search without it.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// Identity Errors.

	// ErrInvalidIdentifier indicates a FRBR URI could not be composed or parsed.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrIdentifierMismatch indicates a derived FRBR URI disagrees with the upstream one.
	ErrIdentifierMismatch = errors.New("identifier mismatch")

	// Upstream Errors.

	// ErrUpstreamUnavailable indicates an upstream 5xx, timeout or connection failure.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrNotFoundUpstream indicates the upstream detail endpoint returned 404.
	ErrNotFoundUpstream = errors.New("not found upstream")

	// Processing Errors.

	// ErrConversionFailure indicates a blob could not be converted (e.g. docx to pdf).
	// The original blob is left intact.
	ErrConversionFailure = errors.New("conversion failure")

	// ErrEmbeddingFailure indicates the embedding service rejected or failed a request.
	ErrEmbeddingFailure = errors.New("embedding failure")

	// Search Errors.

	// ErrSearchShardFailure indicates one or more index shards failed a query.
	ErrSearchShardFailure = errors.New("search shard failure")

	// ErrSchemaMismatch indicates an existing index mapping differs from the expected one.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrSuperseded indicates a queued task was replaced by a newer one with the same signature.
	ErrSuperseded = errors.New("task superseded")
)

// FieldErrors carries per-field validation messages for invalid forms.
type FieldErrors map[string][]string

// Add appends a message for a field.
func (e FieldErrors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

// Error implements the error interface.
func (e FieldErrors) Error() string {
	return "invalid input: form has errors"
}

// Is makes FieldErrors match ErrInvalidInput.
func (e FieldErrors) Is(target error) bool {
	return target == ErrInvalidInput
}
