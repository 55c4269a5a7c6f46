package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/collections-lab/georef-cli/internal/exporter"
	"github.com/collections-lab/georef-cli/internal/matcher"
	"github.com/collections-lab/georef-cli/internal/resolver"
)

var resolveRec matcher.Record

var (
	resolveFormat string
	resolveShp    string
)

// resolveOutput is the printable form of a resolution.
type resolveOutput struct {
	Latitude        float64           `json:"latitude" yaml:"latitude"`
	Longitude       float64           `json:"longitude" yaml:"longitude"`
	RadiusKm        float64           `json:"radius_km" yaml:"radius_km"`
	Geometry        string            `json:"geometry" yaml:"geometry"`
	Sources         []string          `json:"sources" yaml:"sources"`
	Interpretations map[string]string `json:"interpretations" yaml:"interpretations"`
	Explanation     string            `json:"explanation" yaml:"explanation"`
	Missed          []string          `json:"missed,omitempty" yaml:"missed,omitempty"`
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Georeference a single record given as flags",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("resolve"); err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		matched, err := env.pipeline.Process(ctx, &resolveRec)
		if err != nil {
			return eris.Wrap(err, "resolve: match")
		}

		res, err := resolver.NewEvaluator(cfg.Resolver.Evaluator(), &resolveRec, matched).Resolve()
		if err != nil {
			return eris.Wrap(err, "resolve")
		}

		if resolveShp != "" {
			feats := exporter.FromResolution(res, matched.Sites())
			if err := exporter.WriteShapefile(resolveShp, feats); err != nil {
				return err
			}
			zap.L().Info("wrote diagnostic shapefile",
				zap.String("path", resolveShp),
				zap.Int("features", len(feats)))
		}

		return printResolution(res)
	},
}

func printResolution(res *resolver.Result) error {
	wkt, err := res.Geometry.WKT()
	if err != nil {
		return eris.Wrap(err, "resolve: encode geometry")
	}
	interps := make(map[string]string, len(res.Interpretations))
	for id, status := range res.Interpretations {
		interps[id] = string(status)
	}
	lat, lng := res.Geometry.Centroid()
	out := resolveOutput{
		Latitude:        lat,
		Longitude:       lng,
		RadiusKm:        res.RadiusKm,
		Geometry:        wkt,
		Sources:         res.Sources,
		Interpretations: interps,
		Explanation:     res.Explanation,
		Missed:          res.Missed,
	}

	switch resolveFormat {
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(out)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	default:
		return eris.Errorf("unknown output format %q", resolveFormat)
	}
}

func init() {
	f := resolveCmd.Flags()
	f.StringVar(&resolveRec.LocationID, "id", "", "record identifier")
	f.StringVar(&resolveRec.Continent, "continent", "", "continent name")
	f.StringVar(&resolveRec.Country, "country", "", "country name")
	f.StringSliceVar(&resolveRec.StateProvince, "state", nil, "state or province")
	f.StringSliceVar(&resolveRec.County, "county", nil, "county or district")
	f.StringVar(&resolveRec.Municipality, "municipality", "", "municipality")
	f.StringVar(&resolveRec.Island, "island", "", "island name")
	f.StringVar(&resolveRec.IslandGroup, "island-group", "", "island group name")
	f.StringSliceVar(&resolveRec.WaterBody, "water-body", nil, "river, lake, or other water body")
	f.StringVar(&resolveRec.Mine, "mine", "", "mine name")
	f.StringVar(&resolveRec.MiningDistrict, "mining-district", "", "mining district name")
	f.StringVar(&resolveRec.Volcano, "volcano", "", "volcano name")
	f.StringVar(&resolveRec.Ocean, "ocean", "", "ocean name")
	f.StringVar(&resolveRec.SeaGulf, "sea", "", "sea or gulf name")
	f.StringVar(&resolveRec.BaySound, "bay", "", "bay or sound name")
	f.StringSliceVar(&resolveRec.Features, "feature", nil, "named feature outside the locality string")
	f.StringVar(&resolveRec.Locality, "locality", "", "verbatim locality string")
	f.StringVar(&resolveFormat, "format", "json", "output format (json or yaml)")
	f.StringVar(&resolveShp, "shp", "", "write candidate geometries to this shapefile")
	rootCmd.AddCommand(resolveCmd)
}
