package cmd

import (
	"bufio"
	"io"
	"time"

	"github.com/klauspost/compress/zlib"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wegman-software/pbfstream/internal/logger"
	"github.com/wegman-software/pbfstream/internal/pbf"
	"github.com/wegman-software/pbfstream/internal/source"
)

var (
	reframeLevel int
	reframeKeep  bool
)

var reframeCmd = &cobra.Command{
	Use:   "reframe <input.osm.pbf|-> <output.osm.pbf|->",
	Short: "Rewrite a PBF file blob by blob",
	Long: `Frame the input and write every blob to a new PBF file.

Each payload is inflated and deflated again at --level. With --keep the
compressed payloads are copied unchanged, which only normalizes the
framing. Block contents are never decoded.`,
	Args: cobra.ExactArgs(2),
	Run:  runReframe,
}

func init() {
	rootCmd.AddCommand(reframeCmd)
	reframeCmd.Flags().IntVar(&reframeLevel, "level", zlib.BestCompression, "zlib compression level (-2 to 9)")
	reframeCmd.Flags().BoolVar(&reframeKeep, "keep", false, "Copy compressed payloads without recompressing")
}

func runReframe(cmd *cobra.Command, args []string) {
	log := logger.Get()
	start := time.Now()

	src, err := source.Open(args[0], cfg.UseMmap)
	if err != nil {
		exitWithError("failed to open input", err)
	}
	defer src.Close()

	var rc *pbf.Recompressor
	if !reframeKeep {
		if rc, err = pbf.NewRecompressor(reframeLevel); err != nil {
			exitWithError("invalid compression level", err)
		}
	}

	out, closeOut, err := createOutput(args[1])
	if err != nil {
		exitWithError("failed to open output", err)
	}
	bw := bufio.NewWriterSize(out, 1<<20)
	writer := pbf.NewBlobWriter(bw)

	br := pbf.NewBlobReader(src, cfg.ChunkSize)
	blobs := 0
	for {
		rec, err := br.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			exitWithError("framing failed", err)
		}
		if rc != nil {
			if rec, err = rc.Recompress(rec); err != nil {
				exitWithError("recompression failed", err)
			}
		}
		if err := writer.Write(rec); err != nil {
			exitWithError("write failed", err)
		}
		blobs++
	}

	if err := bw.Flush(); err != nil {
		exitWithError("write failed", err)
	}
	if err := closeOut(); err != nil {
		exitWithError("failed to close output", err)
	}

	log.Info("Reframe complete",
		zap.Int("blobs", blobs),
		zap.Uint64("read", br.Offset()),
		zap.Int64("written", writer.Written()),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)),
	)
}
