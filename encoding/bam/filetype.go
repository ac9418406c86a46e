package bam

import (
	"bufio"
	"strings"

	"v.io/x/lib/vlog"
)

// FileType represents the serialization of an alignment stream.
type FileType int

const (
	// Unknown is a sentinel.
	Unknown FileType = iota
	// BAM file
	BAM
	// SAM file
	SAM
)

func (t FileType) String() string {
	switch t {
	case BAM:
		return "bam"
	case SAM:
		return "sam"
	default:
		return "unknown"
	}
}

// ParseFileType parses the file type string. "bam" returns bam.BAM, for
// example. On error, it returns Unknown.
func ParseFileType(name string) FileType {
	switch strings.ToLower(name) {
	case "bam":
		return BAM
	case "sam":
		return SAM
	default:
		return Unknown
	}
}

// GuessFileType returns the file type from the pathname. Returns Unknown if the
// suffix is not recognized, including for "-" (stdin/stdout).
func GuessFileType(path string) FileType {
	switch {
	case strings.HasSuffix(path, ".bam"):
		return BAM
	case strings.HasSuffix(path, ".sam"):
		return SAM
	}
	vlog.VI(1).Infof("%v: could not detect file type from the path.", path)
	return Unknown
}

// SniffFileType peeks at the first bytes of in. BAM is BGZF compressed, so it
// starts with the gzip magic. Anything else is treated as SAM text. An empty
// stream yields BAM so that the BAM reader reports the missing header.
func SniffFileType(in *bufio.Reader) FileType {
	magic, err := in.Peek(2)
	if err != nil || (magic[0] == 0x1f && magic[1] == 0x8b) {
		return BAM
	}
	return SAM
}
