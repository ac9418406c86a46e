package bam

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	hbam "github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

func newTestHeader(t *testing.T) (*sam.Header, *sam.Reference) {
	chr1, err := sam.NewReference("chr1", "", "", 1000, nil, nil)
	require.NoError(t, err)
	header, err := sam.NewHeader(nil, []*sam.Reference{chr1})
	require.NoError(t, err)
	return header, chr1
}

func newTestRecord(name string, ref *sam.Reference, pos int, flags sam.Flags) *sam.Record {
	r := sam.GetFromFreePool()
	r.Name = name
	r.Ref = ref
	r.Pos = pos
	r.MapQ = 60
	r.Flags = flags
	r.Cigar = sam.Cigar{sam.NewCigarOp(sam.CigarMatch, 4)}
	r.MatePos = -1
	r.Seq = sam.NewSeq([]byte("ACGT"))
	r.Qual = []byte{30, 30, 30, 30}
	return r
}

func readBAM(t *testing.T, in io.Reader) []*sam.Record {
	reader, err := hbam.NewReader(in, 1)
	require.NoError(t, err)
	defer reader.Close() // nolint: errcheck
	var recs []*sam.Record
	for {
		r, err := reader.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		recs = append(recs, r)
	}
	return recs
}

func TestWriterBAM(t *testing.T) {
	header, chr1 := newTestHeader(t)
	var buf bytes.Buffer
	w, err := NewWriter(&buf, header, WriterOpts{})
	require.NoError(t, err)
	require.NoError(t, w.Write(newTestRecord("r1", chr1, 10, 0)))
	require.NoError(t, w.Write(newTestRecord("r2", chr1, 20, sam.Reverse)))
	expect.EQ(t, w.NumRecords(), int64(2))
	require.NoError(t, w.Close())

	recs := readBAM(t, &buf)
	require.Len(t, recs, 2)
	expect.EQ(t, recs[0].Name, "r1")
	expect.EQ(t, recs[0].Pos, 10)
	expect.EQ(t, recs[1].Name, "r2")
	expect.EQ(t, recs[1].Flags, sam.Reverse)
	expect.EQ(t, recs[1].Ref.Name(), "chr1")
}

func TestWriterSAM(t *testing.T) {
	header, chr1 := newTestHeader(t)
	var buf bytes.Buffer
	w, err := NewWriter(&buf, header, WriterOpts{Format: SAM})
	require.NoError(t, err)
	require.NoError(t, w.Write(newTestRecord("r1", chr1, 10, sam.Unmapped|sam.Paired)))
	require.NoError(t, w.Close())

	text := buf.String()
	expect.HasSubstr(t, text, "@SQ\tSN:chr1\tLN:1000")
	lines := strings.Split(strings.TrimSpace(text), "\n")
	last := lines[len(lines)-1]
	// 0x5 = Paired | Unmapped, POS is 1-based in SAM.
	expect.True(t, strings.HasPrefix(last, "r1\t5\tchr1\t11\t60\t4M\t"), last)
}

func TestCreateWriter(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	header, chr1 := newTestHeader(t)
	ctx := context.Background()

	// The format is guessed from the suffix.
	path := filepath.Join(tempDir, "out.bam")
	w, err := CreateWriter(ctx, path, nil, header, WriterOpts{})
	require.NoError(t, err)
	require.NoError(t, w.Write(newTestRecord("r1", chr1, 10, 0)))
	require.NoError(t, w.Close())
	in, err := os.Open(path)
	require.NoError(t, err)
	recs := readBAM(t, in)
	require.NoError(t, in.Close())
	require.Len(t, recs, 1)
	expect.EQ(t, recs[0].Name, "r1")

	path = filepath.Join(tempDir, "out.sam")
	w, err = CreateWriter(ctx, path, nil, header, WriterOpts{})
	require.NoError(t, err)
	require.NoError(t, w.Write(newTestRecord("r1", chr1, 10, 0)))
	require.NoError(t, w.Close())
	data, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	expect.HasSubstr(t, string(data), "r1\t0\tchr1\t11\t")

	// An empty path means stdout, and stdout defaults to BAM.
	var stdout bytes.Buffer
	w, err = CreateWriter(ctx, "", &stdout, header, WriterOpts{})
	require.NoError(t, err)
	require.NoError(t, w.Write(newTestRecord("r1", chr1, 10, 0)))
	require.NoError(t, w.Close())
	require.Len(t, readBAM(t, &stdout), 1)
}

func TestGuessFileType(t *testing.T) {
	expect.EQ(t, GuessFileType("foo.bam"), BAM)
	expect.EQ(t, GuessFileType("s3://bucket/foo.sam"), SAM)
	expect.EQ(t, GuessFileType("-"), Unknown)
	expect.EQ(t, ParseFileType("SAM"), SAM)
	expect.EQ(t, ParseFileType("bam"), BAM)
	expect.EQ(t, ParseFileType("cram"), Unknown)
	expect.EQ(t, BAM.String(), "bam")
}
