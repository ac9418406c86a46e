package bam

import "github.com/grailbio/hts/sam"

// IsProperPair returns true if record is mapped in a proper pair.
func IsProperPair(record *sam.Record) bool {
	return (record.Flags & sam.ProperPair) != 0
}

// IsUnmapped returns true if record is unmapped.
func IsUnmapped(record *sam.Record) bool {
	return (record.Flags & sam.Unmapped) != 0
}

// IsReverse returns true if record is mapped to the reverse strand.
func IsReverse(record *sam.Record) bool {
	return (record.Flags & sam.Reverse) != 0
}

// IsRead1 returns true if record is the first read of a pair.
func IsRead1(record *sam.Record) bool {
	return (record.Flags & sam.Read1) != 0
}

// The setters below only touch the named bit.

// SetUnmapped marks record as unmapped.
func SetUnmapped(record *sam.Record) {
	record.Flags |= sam.Unmapped
}

// SetPaired marks record as paired in sequencing.
func SetPaired(record *sam.Record) {
	record.Flags |= sam.Paired
}

// SetProperPair marks record as mapped in a proper pair.
func SetProperPair(record *sam.Record) {
	record.Flags |= sam.ProperPair
}

// SetRead1 marks record as the first read of its pair.
func SetRead1(record *sam.Record) {
	record.Flags |= sam.Read1
}

// SetRead2 marks record as the second read of its pair.
func SetRead2(record *sam.Record) {
	record.Flags |= sam.Read2
}

// SetMateReverse marks record's mate as mapped to the reverse strand.
func SetMateReverse(record *sam.Record) {
	record.Flags |= sam.MateReverse
}

// ClearSupplementary removes the supplementary mark from record.
func ClearSupplementary(record *sam.Record) {
	record.Flags &^= sam.Supplementary
}

// IsMatchOp returns true for the CIGAR operations that align a read base to a
// reference base: M, = and X.
func IsMatchOp(t sam.CigarOpType) bool {
	return t == sam.CigarMatch || t == sam.CigarEqual || t == sam.CigarMismatch
}

// IsFivePrimeMatch returns true if the 5' end of the read starts with a match
// operation. For a forward read that is the first CIGAR operation, for a
// reverse read the last one. A record without a CIGAR never matches.
func IsFivePrimeMatch(record *sam.Record) bool {
	n := len(record.Cigar)
	if n == 0 {
		return false
	}
	if IsReverse(record) {
		return IsMatchOp(record.Cigar[n-1].Type())
	}
	return IsMatchOp(record.Cigar[0].Type())
}
