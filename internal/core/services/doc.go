// Package services implements the driving ports: ingestion, indexing,
// search, embeddings, citations, ranking, background tasks and settings.
// Services call out only through driven ports and never import adapters.
package services
