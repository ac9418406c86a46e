package bamprovider_test

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gbam "github.com/grailbio/hictools/encoding/bam"
	"github.com/grailbio/hictools/encoding/bamprovider"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

const testSAM = `@HD	VN:1.3	SO:queryname
@SQ	SN:chr1	LN:10000
@SQ	SN:chr2	LN:9000
read1	0	chr1	123	60	10M	*	0	0	ACGTACGTAC	ABCDEFGHIJ
read1	2048	chr2	111	60	5S5M	*	0	0	ACGTACGTAC	ABCDEFGHIJ
read2	16	chr2	222	30	10M	*	0	0	ACGTACGTAC	ABCDEFGHIJ
`

// writeBAM converts testSAM to a BAM file at path.
func writeBAM(t *testing.T, path string) {
	r, err := sam.NewReader(strings.NewReader(testSAM))
	require.NoError(t, err)
	out, err := os.Create(path)
	require.NoError(t, err)
	w, err := gbam.NewWriter(out, r.Header(), gbam.WriterOpts{})
	require.NoError(t, err)
	for {
		rec, err := r.Read()
		if rec == nil {
			break
		}
		require.NoError(t, err)
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Close())
	require.NoError(t, out.Close())
}

func readAll(t *testing.T, p bamprovider.Provider) (*sam.Header, []*sam.Record) {
	header, err := p.GetHeader()
	require.NoError(t, err)
	iter := p.NewIterator()
	var recs []*sam.Record
	for iter.Scan() {
		recs = append(recs, iter.Record())
	}
	require.NoError(t, iter.Close())
	require.NoError(t, p.Close())
	return header, recs
}

func verifyRecords(t *testing.T, header *sam.Header, recs []*sam.Record) {
	require.Len(t, header.Refs(), 2)
	expect.EQ(t, header.Refs()[1].Name(), "chr2")
	require.Len(t, recs, 3)
	expect.EQ(t, recs[0].Name, "read1")
	expect.EQ(t, recs[0].Pos, 122)
	expect.EQ(t, recs[1].Name, "read1")
	expect.EQ(t, recs[1].Flags, sam.Supplementary)
	expect.EQ(t, recs[1].Cigar.String(), "5S5M")
	expect.EQ(t, recs[2].Name, "read2")
	expect.EQ(t, recs[2].Ref.Name(), "chr2")
	expect.EQ(t, int(recs[2].MapQ), 30)
}

func TestBAMFile(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "in.bam")
	writeBAM(t, path)

	header, recs := readAll(t, bamprovider.NewProvider(path))
	verifyRecords(t, header, recs)
}

func TestSAMFile(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "in.sam")
	require.NoError(t, ioutil.WriteFile(path, []byte(testSAM), 0644))

	header, recs := readAll(t, bamprovider.NewProvider(path))
	verifyRecords(t, header, recs)
}

func TestStdinSniffing(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "in.bam")
	writeBAM(t, path)
	data, err := ioutil.ReadFile(path)
	require.NoError(t, err)

	// BAM on stdin.
	header, recs := readAll(t, bamprovider.NewProvider("-", bamprovider.ProviderOpts{Stdin: bytes.NewReader(data)}))
	verifyRecords(t, header, recs)

	// SAM on stdin.
	header, recs = readAll(t, bamprovider.NewProvider("-", bamprovider.ProviderOpts{Stdin: strings.NewReader(testSAM)}))
	verifyRecords(t, header, recs)

	// An explicit format overrides sniffing.
	p := bamprovider.NewProvider("-", bamprovider.ProviderOpts{
		Stdin:  strings.NewReader(testSAM),
		Format: gbam.BAM,
	})
	_, err = p.GetHeader()
	require.Error(t, err)
	require.Error(t, p.Close())
}

func TestMissingFile(t *testing.T) {
	p := bamprovider.NewProvider("/nonexistent/in.bam")
	_, err := p.GetHeader()
	require.Error(t, err)
	expect.HasSubstr(t, err.Error(), "/nonexistent/in.bam")

	iter := p.NewIterator()
	expect.False(t, iter.Scan())
	require.Error(t, iter.Close())
	require.Error(t, p.Close())
}

func TestIterateOnce(t *testing.T) {
	p := bamprovider.NewProvider("-", bamprovider.ProviderOpts{Stdin: strings.NewReader(testSAM)})
	iter := p.NewIterator()
	n := 0
	for iter.Scan() {
		n++
	}
	require.NoError(t, iter.Close())
	expect.EQ(t, n, 3)

	iter = p.NewIterator()
	expect.False(t, iter.Scan())
	require.Error(t, iter.Err())
	require.Error(t, iter.Close())
	require.NoError(t, p.Close())
}

func TestFakeProvider(t *testing.T) {
	r, err := sam.NewReader(strings.NewReader(testSAM))
	require.NoError(t, err)
	orig, err := r.Read()
	require.NoError(t, err)

	p := bamprovider.NewFakeProvider(r.Header(), []*sam.Record{orig})
	_, recs := readAll(t, p)
	require.Len(t, recs, 1)
	recs[0].Flags |= sam.Unmapped
	expect.EQ(t, orig.Flags, sam.Flags(0))
}
