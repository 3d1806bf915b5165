package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wegman-software/pbfstream/internal/logger"
	"github.com/wegman-software/pbfstream/internal/pbf"
	"github.com/wegman-software/pbfstream/internal/source"
)

var inflateBlobs bool

var blobsCmd = &cobra.Command{
	Use:   "blobs <input.osm.pbf|->",
	Short: "List the framed blobs of a PBF file",
	Long: `List every blob with its offset, type and compressed payload size.

Only the framing is decoded. With --inflate each payload is also
decompressed and its inflated size is shown.`,
	Args: cobra.ExactArgs(1),
	Run:  runBlobs,
}

func init() {
	rootCmd.AddCommand(blobsCmd)
	blobsCmd.Flags().BoolVar(&inflateBlobs, "inflate", false, "Decompress each blob and show its raw size")
}

func runBlobs(cmd *cobra.Command, args []string) {
	log := logger.Get()

	src, err := source.Open(args[0], cfg.UseMmap)
	if err != nil {
		exitWithError("failed to open input", err)
	}
	defer src.Close()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', tabwriter.AlignRight)
	if inflateBlobs {
		fmt.Fprintln(tw, "offset\ttype\tcompressed\traw\t")
	} else {
		fmt.Fprintln(tw, "offset\ttype\tcompressed\t")
	}

	br := pbf.NewBlobReader(src, cfg.ChunkSize)
	d := pbf.NewDecompressor()
	var count int
	var compressed, raw int64
	for {
		rec, err := br.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			tw.Flush()
			exitWithError("framing failed", err)
		}
		count++
		compressed += int64(len(rec.CompressedPayload))

		if !inflateBlobs {
			fmt.Fprintf(tw, "%d\t%s\t%d\t\n", rec.Offset, rec.Type, len(rec.CompressedPayload))
			continue
		}
		block, err := d.Decompress(rec)
		if err != nil {
			tw.Flush()
			exitWithError("decompression failed", err)
		}
		raw += int64(len(block.Data))
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t\n", rec.Offset, rec.Type, len(rec.CompressedPayload), len(block.Data))
	}
	tw.Flush()

	fields := []zap.Field{zap.Int("blobs", count), zap.Int64("compressed_bytes", compressed)}
	if inflateBlobs {
		fields = append(fields, zap.Int64("raw_bytes", raw))
	}
	log.Info("Blob listing complete", fields...)
}
