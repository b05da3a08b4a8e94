package bvh

import "errors"

var (
	// Returned by tree builds when the input snapshot contains NaN or
	// infinite vertex data.
	ErrInvalidGeometry = errors.New("bvh: snapshot contains non-finite vertex data")

	// Returned by Submit when the worker was never started or has been
	// closed.
	ErrWorkerUnavailable = errors.New("bvh: build worker is not running")

	// Returned by Submit when the build queue is full.
	ErrBusy = errors.New("bvh: build queue is full")

	// Returned when validating build params with a non-positive leaf size.
	ErrInvalidLeafSize = errors.New("bvh: max leaf triangle count must be positive")

	// Returned by dispatchers for targets that were removed from the store.
	ErrTargetRemoved = errors.New("bvh: target was removed from the store")
)
