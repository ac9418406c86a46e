package bam

import (
	"context"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	hbam "github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/klauspost/compress/gzip"
)

// WriterOpts defines options for NewWriter and CreateWriter.
type WriterOpts struct {
	// Format is the output serialization. If Unknown, CreateWriter guesses it
	// from the path, and falls back to BAM.
	Format FileType
	// Level is the BGZF compression level. Zero means gzip.DefaultCompression.
	Level int
	// Parallelism is the number of BGZF compression goroutines. Values <= 0
	// mean 1.
	Parallelism int
}

// Writer writes a stream of sam.Records in BAM or SAM format. Thread
// compatible.
type Writer struct {
	path  string
	out   file.File
	bamw  *hbam.Writer
	samw  *sam.Writer
	nRecs int64
}

// NewWriter creates a writer that emits header followed by records to w. The
// header is written before NewWriter returns. Close does not close w.
func NewWriter(w io.Writer, header *sam.Header, opts WriterOpts) (*Writer, error) {
	bw := &Writer{path: "(stream)"}
	if err := bw.init(w, header, opts); err != nil {
		return nil, err
	}
	return bw, nil
}

// CreateWriter creates path and returns a writer to it. If path is "" or "-",
// the records are written to stdout instead.
func CreateWriter(ctx context.Context, path string, stdout io.Writer, header *sam.Header, opts WriterOpts) (*Writer, error) {
	if opts.Format == Unknown {
		opts.Format = GuessFileType(path)
	}
	if path == "" || path == "-" {
		bw, err := NewWriter(stdout, header, opts)
		if err != nil {
			return nil, err
		}
		bw.path = "(stdout)"
		return bw, nil
	}
	out, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(err, "create", path)
	}
	bw := &Writer{path: path, out: out}
	if err := bw.init(out.Writer(ctx), header, opts); err != nil {
		out.Close(ctx) // nolint: errcheck
		return nil, err
	}
	return bw, nil
}

func (w *Writer) init(out io.Writer, header *sam.Header, opts WriterOpts) error {
	var err error
	switch opts.Format {
	case SAM:
		if w.samw, err = sam.NewWriter(out, header, sam.FlagDecimal); err != nil {
			return errors.E(err, "write SAM header to", w.path)
		}
	default:
		level := opts.Level
		if level == 0 {
			level = gzip.DefaultCompression
		}
		parallelism := opts.Parallelism
		if parallelism <= 0 {
			parallelism = 1
		}
		if w.bamw, err = hbam.NewWriterLevel(out, header, level, parallelism); err != nil {
			return errors.E(err, "write BAM header to", w.path)
		}
	}
	return nil
}

// Write appends one record. The record is serialized before Write returns, so
// the caller may reuse it afterwards.
func (w *Writer) Write(r *sam.Record) error {
	var err error
	if w.bamw != nil {
		err = w.bamw.Write(r)
	} else {
		err = w.samw.Write(r)
	}
	if err != nil {
		return errors.E(err, "write record", r.Name, "to", w.path)
	}
	w.nRecs++
	return nil
}

// NumRecords returns the number of records written so far.
func (w *Writer) NumRecords() int64 {
	return w.nRecs
}

// Close flushes the stream and closes the output file, if CreateWriter opened
// one.
func (w *Writer) Close() error {
	var err errors.Once
	if w.bamw != nil {
		err.Set(w.bamw.Close())
	}
	if w.out != nil {
		err.Set(w.out.Close(vcontext.Background()))
	}
	if e := err.Err(); e != nil {
		return errors.E(e, "close", w.path)
	}
	return nil
}
