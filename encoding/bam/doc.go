// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package bam provides types and functions that augment the BAM and SAM
// packages in github.com/grailbio/hts: named flag predicates and setters,
// CIGAR end tests, file type detection, and a Writer that emits either BAM or
// SAM.
package bam
