package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wegman-software/pbfstream/internal/logger"
	"github.com/wegman-software/pbfstream/internal/pbf"
	"github.com/wegman-software/pbfstream/internal/source"
)

var infoCmd = &cobra.Command{
	Use:   "info <input.osm.pbf|->",
	Short: "Show the header block of a PBF file",
	Args:  cobra.ExactArgs(1),
	Run:   runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) {
	src, err := source.Open(args[0], cfg.UseMmap)
	if err != nil {
		exitWithError("failed to open input", err)
	}
	defer src.Close()

	header, err := readHeader(src)
	if err != nil {
		exitWithError("failed to read header", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "file\t%s\n", src.Path)
	if src.Size > 0 {
		fmt.Fprintf(out, "size\t%d\n", src.Size)
	}
	if b := header.BBox; b != nil {
		fmt.Fprintf(out, "bbox\t%g,%g,%g,%g\n", b.Left, b.Bottom, b.Right, b.Top)
	}
	fmt.Fprintf(out, "required_features\t%s\n", strings.Join(header.RequiredFeatures, ","))
	if len(header.OptionalFeatures) > 0 {
		fmt.Fprintf(out, "optional_features\t%s\n", strings.Join(header.OptionalFeatures, ","))
	}
	if header.WritingProgram != "" {
		fmt.Fprintf(out, "writing_program\t%s\n", header.WritingProgram)
	}
	if header.Source != "" {
		fmt.Fprintf(out, "source\t%s\n", header.Source)
	}
	if !header.ReplicationTimestamp.IsZero() {
		fmt.Fprintf(out, "replication_timestamp\t%s\n", header.ReplicationTimestamp.Format(time.RFC3339))
	}
	if header.ReplicationSequenceNumber != 0 {
		fmt.Fprintf(out, "replication_sequence\t%d\n", header.ReplicationSequenceNumber)
	}
	if header.ReplicationBaseURL != "" {
		fmt.Fprintf(out, "replication_url\t%s\n", header.ReplicationBaseURL)
	}
	fmt.Fprintf(out, "historical\t%t\n", header.HasFeature(pbf.FeatureHistoricalInformation))

	logger.Get().Debug("Header read")
}

// readHeader frames r until the first OSMHeader blob and decodes it.
func readHeader(r io.Reader) (*pbf.Header, error) {
	br := pbf.NewBlobReader(r, cfg.ChunkSize)
	d := pbf.NewDecompressor()
	session := pbf.NewSession(logger.Get())

	for {
		rec, err := br.Next()
		if err == io.EOF {
			return nil, errors.New("no OSMHeader blob in input")
		}
		if err != nil {
			return nil, err
		}
		if rec.Type != pbf.BlobTypeHeader {
			continue
		}
		block, err := d.Decompress(rec)
		if err != nil {
			return nil, err
		}
		if _, err := session.Decode(block); err != nil {
			return nil, err
		}
		return session.Header(), nil
	}
}
