// Package pairmerge combines two independently aligned single-end Hi-C
// streams into one stream of proper read pairs.
//
// The two inputs hold the first and second reads of each fragment, in the
// same order, one record per read (see package fiveend). Merge walks them in
// lock step. A step whose two records are both mapped with sufficient mapping
// quality produces two output records whose mate fields, insert sizes and
// pair flags point at each other. Other steps produce nothing.
package pairmerge
