package fiveend

import (
	"context"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	gbam "github.com/grailbio/hictools/encoding/bam"
	"github.com/grailbio/hictools/encoding/bamprovider"
	"github.com/grailbio/hts/sam"
)

// RecordWriter receives the representative records. *bam.Writer implements
// it.
type RecordWriter interface {
	Write(r *sam.Record) error
}

// Opts for Run.
type Opts struct {
	// InputPath is the name-grouped BAM or SAM input. "-" reads Stdin.
	InputPath string
	// OutputPath is where the representatives are written. "" or "-" writes
	// to Stdout.
	OutputPath string
	// Format of the output. If Unknown, it is guessed from OutputPath, and
	// falls back to BAM.
	Format gbam.FileType
	// Parallelism for BGZF decompression and compression.
	Parallelism int

	Stdin  io.Reader
	Stdout io.Writer
}

// Stats summarizes one run.
type Stats struct {
	// Records is the number of input records.
	Records int64
	// Groups is the number of name groups, and also the number of output
	// records.
	Groups int64
	// FivePrime is the number of groups represented by a 5'-matching record.
	FivePrime int64
	// Unmapped is the number of groups represented by their first record with
	// the unmapped flag forced on.
	Unmapped int64
}

// group accumulates one run of records with the same name. The zero value is
// an empty group.
//
// The group owns at most two records, first and fivePrime, which may be the
// same record. Any other record passed to add is returned to the free pool
// immediately.
type group struct {
	name      string
	count     int
	first     *sam.Record
	fivePrime *sam.Record
}

func (g *group) empty() bool { return g.count == 0 }

func (g *group) add(r *sam.Record) {
	if g.count == 0 {
		g.name = r.Name
		g.first = r
	}
	g.count++
	if g.fivePrime == nil && gbam.IsFivePrimeMatch(r) {
		g.fivePrime = r
	}
	if r != g.first && r != g.fivePrime {
		sam.PutInFreePool(r)
	}
}

// close picks the representative of the group and resets g to empty. It
// returns nil if the group is empty. The bool result is true if the
// representative is a 5'-matching record, false if it is the first record
// marked unmapped. The caller owns the returned record; the record that was
// not chosen is released.
func (g *group) close() (*sam.Record, bool) {
	if g.count == 0 {
		return nil, false
	}
	var (
		rep       *sam.Record
		fivePrime bool
	)
	if g.fivePrime != nil && g.count <= 2 {
		rep, fivePrime = g.fivePrime, true
	} else {
		rep = g.first
		gbam.SetUnmapped(rep)
	}
	if g.first != rep {
		sam.PutInFreePool(g.first)
	}
	if g.fivePrime != nil && g.fivePrime != rep && g.fivePrime != g.first {
		sam.PutInFreePool(g.fivePrime)
	}
	*g = group{}
	return rep, fivePrime
}

// Filter reads iter to the end and writes one representative per name group
// to out, in input order. It does not close iter.
//
// A read or write error stops the filter. Records already written stay
// written.
func Filter(ctx context.Context, iter bamprovider.Iterator, out RecordWriter) (Stats, error) {
	var (
		stats Stats
		g     group
	)
	flush := func() error {
		rep, fivePrime := g.close()
		if rep == nil {
			return nil
		}
		stats.Groups++
		if fivePrime {
			stats.FivePrime++
		} else {
			stats.Unmapped++
		}
		err := out.Write(rep)
		sam.PutInFreePool(rep)
		return err
	}
	for iter.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		r := iter.Record()
		stats.Records++
		if !g.empty() && r.Name != g.name {
			if err := flush(); err != nil {
				sam.PutInFreePool(r)
				return stats, err
			}
		}
		g.add(r)
	}
	if err := iter.Err(); err != nil {
		return stats, errors.E(err, "read input")
	}
	if err := flush(); err != nil {
		return stats, err
	}
	log.Debug.Printf("fiveend: %+v", stats)
	return stats, nil
}

// Run opens opts.InputPath, filters it, and writes the result to
// opts.OutputPath. The output header is a copy of the input header.
func Run(ctx context.Context, opts Opts) (Stats, error) {
	provider := bamprovider.NewProvider(opts.InputPath, bamprovider.ProviderOpts{
		Parallelism: opts.Parallelism,
		Stdin:       opts.Stdin,
	})
	var e errors.Once
	header, err := provider.GetHeader()
	if err != nil {
		e.Set(err)
		e.Set(provider.Close())
		return Stats{}, e.Err()
	}
	w, err := gbam.CreateWriter(ctx, opts.OutputPath, opts.Stdout, header, gbam.WriterOpts{
		Format:      opts.Format,
		Parallelism: opts.Parallelism,
	})
	if err != nil {
		e.Set(err)
		e.Set(provider.Close())
		return Stats{}, e.Err()
	}
	iter := provider.NewIterator()
	stats, err := Filter(ctx, iter, w)
	e.Set(err)
	e.Set(iter.Close())
	e.Set(w.Close())
	e.Set(provider.Close())
	if err := e.Err(); err != nil {
		return stats, err
	}
	log.Printf("%s: %d records in %d groups, %d written, %d five-prime, %d unmapped",
		opts.InputPath, stats.Records, stats.Groups, w.NumRecords(), stats.FivePrime, stats.Unmapped)
	return stats, nil
}
