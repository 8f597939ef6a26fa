// Package storage defines the point-store interface consumed by the
// retrieval and imputation pipeline, and its backend implementations.
package storage
