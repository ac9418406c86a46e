// Package hicstats computes contact statistics of a paired Hi-C alignment
// stream, such as the output of pairmerge.
package hicstats

import (
	"context"
	"io"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/tsv"
	gbam "github.com/grailbio/hictools/encoding/bam"
	"github.com/grailbio/hictools/encoding/bamprovider"
	"github.com/grailbio/hts/sam"
)

// Minimum absolute insert sizes of the intra-reference distance bins.
const (
	dist1kb  = 1000
	dist10kb = 10000
	dist15kb = 15000
	dist20kb = 20000
)

// RefStats is the number of valid pairs on one reference.
type RefStats struct {
	Name       string
	Length     int64
	ValidPairs int64
}

// ValidPairsPerMb returns the valid pair density of the reference. It is zero
// for a reference of unknown length.
func (s RefStats) ValidPairsPerMb() float64 {
	return perMb(s.ValidPairs, s.Length)
}

// Report summarizes a paired stream. The All, Intra* and Inter counters count
// pairs, i.e., half the number of records, rounded down.
type Report struct {
	All       int64
	Intra     int64
	Intra1kb  int64
	Intra10kb int64
	Intra15kb int64
	Intra20kb int64
	Inter     int64

	// ValidPairs is the number of first reads flagged as proper pairs.
	ValidPairs int64
	// AssemblyLength is the total length of the references.
	AssemblyLength int64
	// Refs lists the references in header order.
	Refs []RefStats
}

// ValidPairsPerMb returns the valid pair density over the whole assembly.
func (r Report) ValidPairsPerMb() float64 {
	return perMb(r.ValidPairs, r.AssemblyLength)
}

func perMb(n, length int64) float64 {
	if length <= 0 {
		return 0
	}
	return float64(n) / (float64(length) / 1e6)
}

// Collector accumulates statistics one record at a time. Thread compatible.
type Collector struct {
	all, intra, inter                         int64
	intra1kb, intra10kb, intra15kb, intra20kb int64
	validPairs                                int64
	refs                                      []RefStats
}

// NewCollector creates a collector for records of a stream with the given
// header.
func NewCollector(header *sam.Header) *Collector {
	c := &Collector{}
	for _, ref := range header.Refs() {
		c.refs = append(c.refs, RefStats{Name: ref.Name(), Length: int64(ref.Len())})
	}
	return c
}

// Add counts one record.
func (c *Collector) Add(r *sam.Record) {
	c.all++
	refID := r.Ref.ID()
	if gbam.IsRead1(r) && gbam.IsProperPair(r) {
		c.validPairs++
		if refID >= 0 && refID < len(c.refs) {
			c.refs[refID].ValidPairs++
		}
	}
	if refID != -1 && r.MateRef.ID() == refID {
		c.intra++
		dist := r.TempLen
		if dist < 0 {
			dist = -dist
		}
		if dist >= dist1kb {
			c.intra1kb++
		}
		if dist >= dist10kb {
			c.intra10kb++
		}
		if dist >= dist15kb {
			c.intra15kb++
		}
		if dist >= dist20kb {
			c.intra20kb++
		}
	} else {
		c.inter++
	}
}

// Report returns the statistics of the records added so far.
func (c *Collector) Report() Report {
	r := Report{
		All:        c.all / 2,
		Intra:      c.intra / 2,
		Intra1kb:   c.intra1kb / 2,
		Intra10kb:  c.intra10kb / 2,
		Intra15kb:  c.intra15kb / 2,
		Intra20kb:  c.intra20kb / 2,
		Inter:      c.inter / 2,
		ValidPairs: c.validPairs,
		Refs:       append([]RefStats(nil), c.refs...),
	}
	for _, ref := range c.refs {
		r.AssemblyLength += ref.Length
	}
	return r
}

// Write prints the report in text form.
func (r Report) Write(out io.Writer) error {
	w := tsv.NewWriter(out)
	for _, row := range []struct {
		label string
		n     int64
	}{
		{"All", r.All},
		{"All intra", r.Intra},
		{"All intra 1kb", r.Intra1kb},
		{"All intra 10kb", r.Intra10kb},
		{"All intra 15kb", r.Intra15kb},
		{"All intra 20kb", r.Intra20kb},
		{"All inter", r.Inter},
	} {
		w.WriteString(row.label)
		w.WriteInt64(row.n)
		if err := w.EndLine(); err != nil {
			return err
		}
	}
	w.WriteString("Total valid pairs over the whole assembly: " + strconv.FormatInt(r.ValidPairs, 10))
	if err := w.EndLine(); err != nil {
		return err
	}
	w.WriteString("Valid pairs per Mb over the whole assembly: " + strconv.FormatFloat(r.ValidPairsPerMb(), 'f', 2, 64))
	if err := w.EndLine(); err != nil {
		return err
	}
	w.WriteString("Sequence\tValid Pairs\tLength (bp)\tValid Pairs per Mb")
	if err := w.EndLine(); err != nil {
		return err
	}
	for _, ref := range r.Refs {
		w.WriteString(ref.Name)
		w.WriteInt64(ref.ValidPairs)
		w.WriteInt64(ref.Length)
		w.WriteFloat64(ref.ValidPairsPerMb(), 'f', 2)
		if err := w.EndLine(); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Compute reads all the records of provider. It does not close provider.
func Compute(ctx context.Context, provider bamprovider.Provider) (Report, error) {
	header, err := provider.GetHeader()
	if err != nil {
		return Report{}, err
	}
	c := NewCollector(header)
	iter := provider.NewIterator()
	for iter.Scan() {
		if err := ctx.Err(); err != nil {
			iter.Close() // nolint: errcheck
			return Report{}, err
		}
		r := iter.Record()
		c.Add(r)
		sam.PutInFreePool(r)
	}
	if err := iter.Close(); err != nil {
		return Report{}, err
	}
	return c.Report(), nil
}

// Run computes the statistics of the BAM or SAM file at path and writes the
// report to out. Path "-" reads stdin.
func Run(ctx context.Context, path string, stdin io.Reader, out io.Writer) error {
	provider := bamprovider.NewProvider(path, bamprovider.ProviderOpts{Stdin: stdin})
	report, err := Compute(ctx, provider)
	var e errors.Once
	e.Set(err)
	e.Set(provider.Close())
	if err := e.Err(); err != nil {
		return err
	}
	if err := report.Write(out); err != nil {
		return errors.E(err, "write report")
	}
	return nil
}
