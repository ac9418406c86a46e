// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package fiveend reduces every run of same-named alignment records in a
// name-grouped BAM or SAM stream to one representative record.
//
// Hi-C reads are aligned one end at a time, so a chimeric read may produce a
// primary record and several supplementary records. The representative is the
// record whose 5' end aligns (see bam.IsFivePrimeMatch). Groups that have no
// such record, or that are too ambiguous to resolve, are kept as their first
// record with the unmapped flag set, so that downstream pairing stays in
// lock step with the mate stream.
//
// The input must be grouped by query name, e.g. the raw output of the aligner
// or the result of "samtools sort -n". This is not checked: records of a name
// that appears in two separate runs form two groups.
package fiveend
