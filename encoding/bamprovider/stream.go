package bamprovider

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	gbam "github.com/grailbio/hictools/encoding/bam"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"v.io/x/lib/vlog"
)

const readBufferSize = 1 << 20

// recordReader is implemented by both biogo sam.Reader and biogo bam.Reader.
type recordReader interface {
	Header() *sam.Header
	Read() (*sam.Record, error)
}

// StreamProvider implements Provider for a single sequential BAM or SAM
// stream. Path may name any file supported by grailbio/base/file, or "-" for
// stdin.
type StreamProvider struct {
	// Path of the input. Must be nonempty.
	Path string
	// Opts controls the format detection and decoding.
	Opts ProviderOpts

	mu       sync.Mutex
	err      errors.Once
	in       file.File
	bamIn    *bam.Reader
	reader   recordReader
	header   *sam.Header
	iterated bool
	active   bool
}

type streamIterator struct {
	provider *StreamProvider
	nRecs    int
	rec      *sam.Record
	err      error
}

// open creates the record reader on first use.
//
// REQUIRES: p.mu is locked.
func (p *StreamProvider) open() error {
	if p.reader != nil {
		return nil
	}
	if err := p.err.Err(); err != nil {
		return err
	}
	ctx := vcontext.Background()
	var in io.Reader
	if p.Path == "-" {
		in = p.Opts.Stdin
		if in == nil {
			in = os.Stdin
		}
	} else {
		f, err := file.Open(ctx, p.Path)
		if err != nil {
			err = errors.E(err, "open", p.Path)
			p.err.Set(err)
			return err
		}
		p.in = f
		in = f.Reader(ctx)
	}
	buf := bufio.NewReaderSize(in, readBufferSize)
	format := p.Opts.Format
	if format == gbam.Unknown {
		format = gbam.GuessFileType(p.Path)
	}
	if format == gbam.Unknown {
		format = gbam.SniffFileType(buf)
		vlog.VI(1).Infof("%v: detected %v from the stream contents", p.Path, format)
	}
	var err error
	switch format {
	case gbam.SAM:
		p.reader, err = sam.NewReader(buf)
	default:
		parallelism := p.Opts.Parallelism
		if parallelism <= 0 {
			parallelism = 1
		}
		p.bamIn, err = bam.NewReader(buf, parallelism)
		if err == nil {
			p.reader = p.bamIn
		}
	}
	if err != nil {
		err = errors.E(err, fmt.Sprintf("%s: read %v header", p.Path, format))
		p.err.Set(err)
		return err
	}
	p.header = p.reader.Header()
	return nil
}

// GetHeader implements the Provider interface.
func (p *StreamProvider) GetHeader() (*sam.Header, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.open(); err != nil {
		return nil, err
	}
	return p.header, nil
}

// NewIterator implements the Provider interface.
func (p *StreamProvider) NewIterator() Iterator {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.iterated {
		return NewErrorIterator(fmt.Errorf("%s: NewIterator called twice on a stream", p.Path))
	}
	p.iterated = true
	if err := p.open(); err != nil {
		return NewErrorIterator(err)
	}
	p.active = true
	return &streamIterator{provider: p}
}

// Close implements the Provider interface.
func (p *StreamProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active {
		vlog.Fatalf("%v: iterator still active", p.Path)
	}
	if p.bamIn != nil {
		p.err.Set(p.bamIn.Close())
		p.bamIn = nil
	}
	if p.in != nil {
		p.err.Set(p.in.Close(vcontext.Background()))
		p.in = nil
	}
	p.reader = nil
	return p.err.Err()
}

// Scan implements the Iterator interface.
func (i *streamIterator) Scan() bool {
	if i.err != nil {
		return false
	}
	i.rec, i.err = i.provider.reader.Read()
	if i.err != nil {
		i.rec = nil
		if i.err != io.EOF {
			i.err = errors.E(i.err, fmt.Sprintf("%s: read record #%d", i.provider.Path, i.nRecs+1))
		}
		return false
	}
	i.nRecs++
	return true
}

// Record implements the Iterator interface.
func (i *streamIterator) Record() *sam.Record {
	return i.rec
}

// Err implements the Iterator interface.
func (i *streamIterator) Err() error {
	if i.err == io.EOF {
		return nil
	}
	return i.err
}

// Close implements the Iterator interface.
func (i *streamIterator) Close() error {
	err := i.Err()
	p := i.provider
	p.mu.Lock()
	p.active = false
	p.err.Set(err)
	p.mu.Unlock()
	return err
}
