// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// bio-hic prepares Hi-C alignments for scaffolding. A typical run is
//
//   bwa mem ref.fa reads_1.fq | bio-hic filter-five-end -o r1.bam -
//   bwa mem ref.fa reads_2.fq | bio-hic filter-five-end -o r2.bam -
//   bio-hic combine -o pairs.bam r1.bam r2.bam 10
//   bio-hic stats pairs.bam
package main

import "github.com/grailbio/hictools/cmd/bio-hic/cmd"

func main() {
	cmd.Run()
}
