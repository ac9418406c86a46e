package bamprovider

import (
	"io"

	gbam "github.com/grailbio/hictools/encoding/bam"
	"github.com/grailbio/hts/sam"
)

// ProviderOpts defines options for NewProvider.
type ProviderOpts struct {
	// Format forces the input format. If Unknown, the format is guessed from
	// the path suffix, and then from the leading bytes of the stream.
	Format gbam.FileType

	// Parallelism is the number of BGZF decompression goroutines used for BAM
	// input. Values <= 0 mean 1.
	Parallelism int

	// Stdin is read when the path is "-". If nil, os.Stdin is used.
	Stdin io.Reader
}

// Provider reads one BAM or SAM stream from start to end, in file order. Unlike
// a coordinate-sharded reader, it needs no index and accepts any sort order,
// including name-sorted and unsorted streams. Thread compatible.
type Provider interface {
	// GetHeader returns the header of the stream. The callee must not modify
	// the returned header object.
	//
	// REQUIRES: Close has not been called.
	GetHeader() (*sam.Header, error)

	// NewIterator returns an iterator over all the records of the stream. The
	// stream can be read only once, so NewIterator may be called at most once.
	//
	// REQUIRES: Close has not been called.
	NewIterator() Iterator

	// Close must be called exactly once. It returns any error encountered by
	// the provider or by the iterator created by the provider.
	//
	// REQUIRES: The iterator created by NewIterator has been closed.
	Close() error
}

// Iterator iterates over sam.Records in the order they appear in the
// stream. Thread compatible.
type Iterator interface {
	// Scan returns whether there are any records remaining in the iterator,
	// and if so, advances the iterator to the next record. If the iterator
	// reaches the end of the stream, Scan() returns false. If an error occurs,
	// Scan() returns false and the error can be retrieved by calling Err().
	//
	// REQUIRES: Close has not been called.
	Scan() bool

	// Record returns the current record in the iterator. This must be called
	// only after a call to Scan() returns true. The caller owns the record;
	// once done with it, the caller may hand it to sam.PutInFreePool.
	//
	// REQUIRES: Close has not been called.
	Record() *sam.Record

	// Err returns the error encountered during iteration, or nil if no error
	// occurred. An io.EOF error will be translated to nil.
	Err() error

	// Close must be called exactly once. It returns the value of Err().
	Close() error
}

// NewProvider creates a Provider for the BAM or SAM file at path. Path "-"
// reads stdin. Nothing is opened until GetHeader or NewIterator is called.
func NewProvider(path string, opts ...ProviderOpts) Provider {
	p := &StreamProvider{Path: path}
	for _, o := range opts {
		if o.Format != gbam.Unknown {
			p.Opts.Format = o.Format
		}
		if o.Parallelism > 0 {
			p.Opts.Parallelism = o.Parallelism
		}
		if o.Stdin != nil {
			p.Opts.Stdin = o.Stdin
		}
	}
	return p
}
