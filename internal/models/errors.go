package models

import "errors"

var (
	// ErrInsufficientSamples means a class has too few rows for the neighbour count.
	ErrInsufficientSamples = errors.New("insufficient samples")
	// ErrEmptyDataset means there were no rows to analyse or resample.
	ErrEmptyDataset = errors.New("empty dataset")
	// ErrUnknownStrategy means the balancing strategy name was not recognised.
	ErrUnknownStrategy = errors.New("unknown balancing strategy")
	// ErrStoreUnavailable means the prediction store could not be queried.
	ErrStoreUnavailable = errors.New("prediction store unavailable")

	// ErrInvalidDataset flags malformed input such as ragged rows.
	ErrInvalidDataset = errors.New("invalid dataset")
	// ErrInvalidFraction flags a test fraction outside (0,1).
	ErrInvalidFraction = errors.New("test fraction must be in (0,1)")
	// ErrInvalidFeatures flags a model input that failed the quality check.
	ErrInvalidFeatures = errors.New("invalid input features")
)
