package cmd

import (
	"fmt"
	"log"
	"strconv"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/vcontext"
	gbam "github.com/grailbio/hictools/encoding/bam"
	"github.com/grailbio/hictools/fiveend"
	"github.com/grailbio/hictools/hicstats"
	"github.com/grailbio/hictools/pairmerge"
	"v.io/x/lib/cmdline"
)

type outputFlags struct {
	output      *string
	format      *string
	parallelism *int
}

func addOutputFlags(cmd *cmdline.Command) outputFlags {
	return outputFlags{
		output: cmd.Flags.String("o", "-", `Output path. "-" writes to stdout.`),
		format: cmd.Flags.String("format", "", `Output format, "bam" or "sam".
If empty, the format is guessed from the output path, and defaults to bam.`),
		parallelism: cmd.Flags.Int("parallelism", 1, "Number of BGZF compression and decompression goroutines"),
	}
}

func (f outputFlags) fileType() (gbam.FileType, error) {
	if *f.format == "" {
		return gbam.Unknown, nil
	}
	t := gbam.ParseFileType(*f.format)
	if t == gbam.Unknown {
		return t, fmt.Errorf("unknown output format \"%s\"", *f.format)
	}
	return t, nil
}

func newCmdFilterFiveEnd() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "filter-five-end",
		Short: "Keep one record per read, the one whose 5' end aligns",
		Long: `
filter-five-end reads a BAM or SAM file grouped by read name and writes one
record per read. A read with a single record keeps it if its 5' end aligns. A
read with two records keeps the first one whose 5' end aligns. Any other read
is written as its first record, marked unmapped.`,
		ArgsName: "path",
	}
	flags := addOutputFlags(cmd)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("filter-five-end takes one pathname argument, but got %v", argv)
		}
		format, err := flags.fileType()
		if err != nil {
			return err
		}
		_, err = fiveend.Run(vcontext.Background(), fiveend.Opts{
			InputPath:   argv[0],
			OutputPath:  *flags.output,
			Format:      format,
			Parallelism: *flags.parallelism,
			Stdin:       env.Stdin,
			Stdout:      env.Stdout,
		})
		return err
	})
	return cmd
}

func newCmdCombine() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "combine",
		Short: "Pair up the first and second reads of two single-end alignments",
		Long: `
combine reads two BAM or SAM files holding the first and second reads of the
same fragments, in the same order, and writes the pairs whose two records are
mapped with a mapping quality of at least min-mapq. Both inputs must be aligned
to the same references.`,
		ArgsName: "read1-path read2-path min-mapq",
	}
	flags := addOutputFlags(cmd)
	progress := cmd.Flags.Int64("progress", pairmerge.DefaultProgressInterval,
		"Log progress every this many read pairs. Zero or negative disables progress.")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 3 {
			return fmt.Errorf("combine takes read1-path read2-path min-mapq, but got %v", argv)
		}
		minMapQ, err := strconv.Atoi(argv[2])
		if err != nil || minMapQ < 0 {
			return fmt.Errorf("min-mapq must be a non-negative integer, but got \"%s\"", argv[2])
		}
		format, err := flags.fileType()
		if err != nil {
			return err
		}
		interval := *progress
		if interval <= 0 {
			interval = -1
		}
		_, err = pairmerge.Run(vcontext.Background(), pairmerge.Opts{
			Read1Path:        argv[0],
			Read2Path:        argv[1],
			OutputPath:       *flags.output,
			Format:           format,
			MinMapQ:          minMapQ,
			ProgressInterval: interval,
			Parallelism:      *flags.parallelism,
			Stdin:            env.Stdin,
			Stdout:           env.Stdout,
		})
		return err
	})
	return cmd
}

func newCmdStats() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "stats",
		Short:    "Show contact statistics of a combined BAM or SAM file",
		ArgsName: "path",
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("stats takes one pathname argument, but got %v", argv)
		}
		return hicstats.Run(vcontext.Background(), argv[0], env.Stdin, env.Stdout)
	})
	return cmd
}

func newCmdRoot() *cmdline.Command {
	return &cmdline.Command{
		Name:     "bio-hic",
		Short:    "Tools for preparing Hi-C alignments",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdFilterFiveEnd(),
			newCmdCombine(),
			newCmdStats(),
		},
	}
}

// Run parses the command line and runs the selected subcommand.
func Run() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(newCmdRoot())
}
