package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the retrieval core. Callers match with errors.Is.
var (
	// ErrInvalidInput marks an empty query or malformed options.
	ErrInvalidInput = errors.New("invalid input")
	// ErrIndexNotBuilt marks a sparse index queried before Build.
	ErrIndexNotBuilt = errors.New("index not built")
	// ErrDimensionMismatch marks embedding vectors of differing length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrEmbeddingRequired marks an MMR rerank attempted without vectors
	// and without an embedding provider to supply them.
	ErrEmbeddingRequired = errors.New("embedding required")
	// ErrConfig marks an out-of-range tunable or unrecognized strategy name.
	ErrConfig = errors.New("invalid configuration")
	// ErrTokenBudgetExceeded marks a budget pass that could not fit a single
	// chunk under the drop strategy.
	ErrTokenBudgetExceeded = errors.New("token budget exceeded")
	// ErrDuplicateRegistration marks a second Register under the same name.
	ErrDuplicateRegistration = errors.New("duplicate registration")
)

// Stage identifies a pipeline stage for error tagging and timings.
type Stage string

const (
	StageCache       Stage = "cache"
	StageEnhancement Stage = "enhancement"
	StageRetrieval   Stage = "retrieval"
	StageFusion      Stage = "fusion"
	StageReranking   Stage = "reranking"
	StageDedup       Stage = "deduplication"
	StageOrdering    Stage = "ordering"
	StageBudget      Stage = "budget"
	StageAssembly    Stage = "assembly"
)

// StageError wraps a failure with the pipeline stage it occurred in. The
// underlying cause is preserved for errors.Is / errors.As.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError tags err with the failing stage.
func NewStageError(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}
