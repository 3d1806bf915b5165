package cmd

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wegman-software/pbfstream/internal/logger"
	"github.com/wegman-software/pbfstream/internal/pbf"
	"github.com/wegman-software/pbfstream/internal/sink"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <input.osm.pbf>",
	Short: "Cross-check the decoder against paulmach/osm",
	Long: `Decode a file with both pbfstream and the github.com/paulmach/osm
osmpbf scanner and compare them entity by entity: type, id, coordinates,
refs, members and tags. The first difference is reported and the
command exits non-zero.`,
	Args: cobra.ExactArgs(1),
	Run:  runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) {
	log := logger.Get()
	ctx, stop := signalContext()
	defer stop()

	ours, err := os.Open(args[0])
	if err != nil {
		exitWithError("failed to open input", err)
	}
	defer ours.Close()
	theirs, err := os.Open(args[0])
	if err != nil {
		exitWithError("failed to open input", err)
	}
	defer theirs.Close()

	n, err := verify(ctx, ours, theirs)
	if err != nil {
		exitWithError("verification failed", err)
	}
	log.Info("Verification passed", zap.Int64("entities", n))
}

// verify walks both decoders in lockstep and returns the number of
// matching entities.
func verify(ctx context.Context, ours, theirs io.Reader) (int64, error) {
	sc := pbf.NewScanner(ctx, ours, pbf.WithChunkSize(cfg.ChunkSize), pbf.WithLogger(logger.Get()))
	defer sc.Close()
	ref := osmpbf.New(ctx, theirs, runtime.NumCPU())
	defer ref.Close()

	var n int64
	for {
		gotOK := sc.Scan()
		wantOK := ref.Scan()
		if !gotOK || !wantOK {
			if err := sc.Err(); err != nil {
				return n, err
			}
			if err := ref.Err(); err != nil && err != io.EOF {
				return n, fmt.Errorf("reference decoder: %w", err)
			}
			if gotOK != wantOK {
				return n, fmt.Errorf("entity count differs after %d entities", n)
			}
			return n, nil
		}

		want := sink.ToOSM(sc.Entity())
		if err := compareObjects(want, ref.Object()); err != nil {
			return n, fmt.Errorf("entity %d: %w", n, err)
		}
		n++
	}
}

// compareObjects reports the first field in which got differs from the
// reference decoder's object.
func compareObjects(got, want osm.Object) error {
	if got.ObjectID() != want.ObjectID() {
		return fmt.Errorf("got %s, reference has %s", got.ObjectID(), want.ObjectID())
	}

	switch g := got.(type) {
	case *osm.Node:
		w := want.(*osm.Node)
		if math.Abs(g.Lat-w.Lat) > 1e-7 || math.Abs(g.Lon-w.Lon) > 1e-7 {
			return fmt.Errorf("%s at %f,%f, reference has %f,%f", g.ObjectID(), g.Lat, g.Lon, w.Lat, w.Lon)
		}
		return compareTags(g.ObjectID(), g.Tags, w.Tags)
	case *osm.Way:
		w := want.(*osm.Way)
		if len(g.Nodes) != len(w.Nodes) {
			return fmt.Errorf("%s has %d refs, reference has %d", g.ObjectID(), len(g.Nodes), len(w.Nodes))
		}
		for i := range g.Nodes {
			if g.Nodes[i].ID != w.Nodes[i].ID {
				return fmt.Errorf("%s ref %d is %d, reference has %d", g.ObjectID(), i, g.Nodes[i].ID, w.Nodes[i].ID)
			}
		}
		return compareTags(g.ObjectID(), g.Tags, w.Tags)
	case *osm.Relation:
		w := want.(*osm.Relation)
		if len(g.Members) != len(w.Members) {
			return fmt.Errorf("%s has %d members, reference has %d", g.ObjectID(), len(g.Members), len(w.Members))
		}
		for i := range g.Members {
			gm, wm := g.Members[i], w.Members[i]
			if gm.Type != wm.Type || gm.Ref != wm.Ref || gm.Role != wm.Role {
				return fmt.Errorf("%s member %d is %s/%d/%q, reference has %s/%d/%q",
					g.ObjectID(), i, gm.Type, gm.Ref, gm.Role, wm.Type, wm.Ref, wm.Role)
			}
		}
		return compareTags(g.ObjectID(), g.Tags, w.Tags)
	}
	return nil
}

func compareTags(id osm.ObjectID, got, want osm.Tags) error {
	if len(got) != len(want) {
		return fmt.Errorf("%s has %d tags, reference has %d", id, len(got), len(want))
	}
	wantMap := want.Map()
	for _, t := range got {
		if v, ok := wantMap[t.Key]; !ok || v != t.Value {
			return fmt.Errorf("%s tag %s=%q, reference has %q", id, t.Key, t.Value, v)
		}
	}
	return nil
}
