package main

import "errors"

var (
	errMissingDir      = errors.New("vecstore: --dir is required (or set via --config)")
	errVectorDimension = errors.New("vecstore: vector has the wrong dimension")
)
