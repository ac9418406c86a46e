package bamprovider

import (
	"github.com/grailbio/hts/sam"
)

// fakeProvider is only for unittests. It yields the given records.
type fakeProvider struct {
	header  *sam.Header
	recs    []*sam.Record
	readErr error
}

type fakeIterator struct {
	recs    []*sam.Record
	rec     *sam.Record
	readErr error
	err     error
}

// NewFakeProvider creates a provider that returns "header" in response to a
// GetHeader() call, and recs from NewIterator.
func NewFakeProvider(header *sam.Header, recs []*sam.Record) Provider {
	return &fakeProvider{header: header, recs: recs}
}

// NewFailingFakeProvider is like NewFakeProvider, but its iterator fails with
// readErr after yielding recs.
func NewFailingFakeProvider(header *sam.Header, recs []*sam.Record, readErr error) Provider {
	return &fakeProvider{header: header, recs: recs, readErr: readErr}
}

// GetHeader implements the Provider interface. It returns the header passed to
// the constructor.
func (b *fakeProvider) GetHeader() (*sam.Header, error) {
	return b.header, nil
}

// Close implements the Provider interface.
func (b *fakeProvider) Close() error {
	return nil
}

// NewIterator implements the Provider interface.
func (b *fakeProvider) NewIterator() Iterator {
	return &fakeIterator{recs: b.recs, readErr: b.readErr}
}

// Err implements the Iterator interface.
func (i *fakeIterator) Err() error {
	return i.err
}

// Close implements the Iterator interface.
func (i *fakeIterator) Close() error {
	return i.err
}

func (i *fakeIterator) Scan() bool {
	if len(i.recs) == 0 {
		i.err = i.readErr
		return false
	}
	i.rec = i.recs[0]
	i.recs = i.recs[1:]
	return true
}

func (i *fakeIterator) Record() *sam.Record {
	// Return a copy so that the code under test cannot alter the
	// original test input data.
	copy := sam.GetFromFreePool()
	*copy = *i.rec
	return copy
}
