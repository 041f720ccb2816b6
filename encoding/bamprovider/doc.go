// Package bamprovider provides utilities for reading regions of an indexed
// BAM file, possibly from many goroutines at once.
//
// The Provider is an interface for reading a BAM file in parallel; each
// Iterator it hands out owns a private reader, and readers are pooled across
// iterators.
package bamprovider
