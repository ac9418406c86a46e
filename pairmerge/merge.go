package pairmerge

import (
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	gbam "github.com/grailbio/hictools/encoding/bam"
	"github.com/grailbio/hictools/encoding/bamprovider"
	"github.com/grailbio/hts/sam"
)

// DefaultProgressInterval is the default number of steps between progress
// log lines.
const DefaultProgressInterval = 1000000

// RecordWriter receives the merged records. *bam.Writer implements it.
type RecordWriter interface {
	Write(r *sam.Record) error
}

// Opts for Merge and Run.
type Opts struct {
	// Read1Path and Read2Path are the BAM or SAM inputs of the first and second
	// reads. At most one of them may be "-", for Stdin.
	Read1Path string
	Read2Path string
	// OutputPath is where the pairs are written. "" or "-" writes to Stdout.
	OutputPath string
	// Format of the output. If Unknown, it is guessed from OutputPath, and
	// falls back to BAM.
	Format gbam.FileType
	// MinMapQ is the smallest mapping quality kept. A step is dropped if
	// either record is below it.
	MinMapQ int
	// ProgressInterval is the number of steps between progress log lines.
	// Zero means DefaultProgressInterval, negative disables progress.
	ProgressInterval int64
	// Parallelism for BGZF decompression and compression.
	Parallelism int

	Stdin  io.Reader
	Stdout io.Writer
}

// Stats summarizes one run.
type Stats struct {
	// Steps is the number of record pairs read.
	Steps int64
	// Unmapped is the number of steps dropped because a record is unmapped.
	Unmapped int64
	// LowMapQ is the number of steps dropped because of the mapping quality.
	LowMapQ int64
	// Pairs is the number of steps written, each as two records.
	Pairs int64
}

// CheckReferences returns an error unless a and b list the same references,
// by name, in the same order.
func CheckReferences(a, b *sam.Header) error {
	ra, rb := a.Refs(), b.Refs()
	if len(ra) != len(rb) {
		return errors.E(errors.Invalid,
			fmt.Sprintf("inputs have different numbers of references: %d and %d", len(ra), len(rb)))
	}
	for i := range ra {
		if ra[i].Name() != rb[i].Name() {
			return errors.E(errors.Invalid,
				fmt.Sprintf("reference #%d differs between inputs: %s and %s", i, ra[i].Name(), rb[i].Name()))
		}
	}
	return nil
}

// rebase returns the reference in refs with the same index as ref.
func rebase(ref *sam.Reference, refs []*sam.Reference) *sam.Reference {
	id := ref.ID()
	if id < 0 || id >= len(refs) {
		return nil
	}
	return refs[id]
}

// abs returns the absolute value of x.
func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// mate fills the mate fields and the pair flags of a and b, which become the
// first and second read of one pair.
func mate(a, b *sam.Record) {
	aReverse, bReverse := gbam.IsReverse(a), gbam.IsReverse(b)

	if a.Ref.ID() == b.Ref.ID() {
		dist := abs(a.Pos - b.Pos)
		if a.Pos >= b.Pos {
			a.TempLen, b.TempLen = -dist, dist
		} else {
			a.TempLen, b.TempLen = dist, -dist
		}
	} else {
		a.TempLen, b.TempLen = 0, 0
	}
	a.MateRef, a.MatePos = b.Ref, b.Pos
	b.MateRef, b.MatePos = a.Ref, a.Pos

	for _, r := range []*sam.Record{a, b} {
		gbam.SetPaired(r)
		gbam.SetProperPair(r)
		gbam.ClearSupplementary(r)
	}
	gbam.SetRead1(a)
	gbam.SetRead2(b)
	if bReverse {
		gbam.SetMateReverse(a)
	}
	if aReverse {
		gbam.SetMateReverse(b)
	}
}

// Merge reads iterA and iterB in lock step and writes the retained pairs to
// out, the record from iterA first. header is the output header; references
// of iterB's records are replaced by the references of header with the same
// index, so the inputs must have passed CheckReferences.
//
// Merge stops when either iterator is exhausted. A read error, a write error,
// or two records with different names at the same step are fatal. Records
// already written stay written. Merge does not close the iterators.
func Merge(ctx context.Context, header *sam.Header, iterA, iterB bamprovider.Iterator, out RecordWriter, opts Opts) (Stats, error) {
	var stats Stats
	interval := opts.ProgressInterval
	if interval == 0 {
		interval = DefaultProgressInterval
	}
	refs := header.Refs()
	for iterA.Scan() {
		if !iterB.Scan() {
			sam.PutInFreePool(iterA.Record())
			break
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		a, b := iterA.Record(), iterB.Record()
		stats.Steps++
		if a.Name != b.Name {
			err := errors.E(errors.Integrity, fmt.Sprintf(
				"inputs out of sync at step %d: read %s in %s, read %s in %s",
				stats.Steps, a.Name, opts.Read1Path, b.Name, opts.Read2Path))
			sam.PutInFreePool(a)
			sam.PutInFreePool(b)
			return stats, err
		}
		if interval > 0 && stats.Steps%interval == 0 {
			log.Printf("%d read pairs processed, %d kept", stats.Steps, stats.Pairs)
		}
		switch {
		case gbam.IsUnmapped(a) || gbam.IsUnmapped(b):
			stats.Unmapped++
		case int(a.MapQ) < opts.MinMapQ || int(b.MapQ) < opts.MinMapQ:
			stats.LowMapQ++
		default:
			b.Ref = rebase(b.Ref, refs)
			mate(a, b)
			stats.Pairs++
			if err := out.Write(a); err != nil {
				return stats, err
			}
			if err := out.Write(b); err != nil {
				return stats, err
			}
		}
		sam.PutInFreePool(a)
		sam.PutInFreePool(b)
	}
	if err := iterA.Err(); err != nil {
		return stats, errors.E(err, "read", opts.Read1Path)
	}
	if err := iterB.Err(); err != nil {
		return stats, errors.E(err, "read", opts.Read2Path)
	}
	return stats, nil
}

// Run opens both inputs, checks that they were aligned to the same
// references, and merges them into opts.OutputPath. The output header is the
// header of opts.Read1Path.
func Run(ctx context.Context, opts Opts) (Stats, error) {
	if opts.Read1Path == "-" && opts.Read2Path == "-" {
		return Stats{}, errors.E(errors.Invalid, "only one input can be read from stdin")
	}
	popts := bamprovider.ProviderOpts{Parallelism: opts.Parallelism, Stdin: opts.Stdin}
	providerA := bamprovider.NewProvider(opts.Read1Path, popts)
	providerB := bamprovider.NewProvider(opts.Read2Path, popts)

	var e errors.Once
	closeProviders := func() {
		e.Set(providerA.Close())
		e.Set(providerB.Close())
	}
	headerA, err := providerA.GetHeader()
	if err != nil {
		e.Set(err)
		closeProviders()
		return Stats{}, e.Err()
	}
	headerB, err := providerB.GetHeader()
	if err != nil {
		e.Set(err)
		closeProviders()
		return Stats{}, e.Err()
	}
	if err := CheckReferences(headerA, headerB); err != nil {
		e.Set(errors.E(err, opts.Read1Path, opts.Read2Path))
		closeProviders()
		return Stats{}, e.Err()
	}
	w, err := gbam.CreateWriter(ctx, opts.OutputPath, opts.Stdout, headerA, gbam.WriterOpts{
		Format:      opts.Format,
		Parallelism: opts.Parallelism,
	})
	if err != nil {
		e.Set(err)
		closeProviders()
		return Stats{}, e.Err()
	}
	iterA, iterB := providerA.NewIterator(), providerB.NewIterator()
	stats, err := Merge(ctx, headerA, iterA, iterB, w, opts)
	e.Set(err)
	e.Set(iterA.Close())
	e.Set(iterB.Close())
	e.Set(w.Close())
	closeProviders()
	if err := e.Err(); err != nil {
		return stats, err
	}
	log.Printf("%s, %s: %d steps, %d records written, %d unmapped, %d below mapq %d",
		opts.Read1Path, opts.Read2Path, stats.Steps, w.NumRecords(), stats.Unmapped, stats.LowMapQ, opts.MinMapQ)
	return stats, nil
}
