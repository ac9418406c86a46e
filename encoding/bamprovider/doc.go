// Package bamprovider provides sequential readers for BAM and SAM streams.
//
// The Provider is an interface for reading one alignment stream from start to
// end in file order. It is used for name-sorted and lock-stepped inputs, where
// coordinate sharding does not apply.
package bamprovider
