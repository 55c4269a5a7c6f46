package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/collections-lab/georef-cli/internal/gazetteer"
)

var gazetteerCmd = &cobra.Command{
	Use:   "gazetteer",
	Short: "Manage the place-name database",
}

var gazetteerLoadCmd = &cobra.Command{
	Use:   "load <geonames dump>",
	Short: "Load a GeoNames text dump into the gazetteer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("load"); err != nil {
			return err
		}

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Migrate(ctx); err != nil {
			return eris.Wrap(err, "gazetteer load: migrate")
		}

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "gazetteer load: open %s", args[0])
		}
		defer f.Close()

		n, err := gazetteer.LoadTSV(ctx, store, f)
		if err != nil {
			return eris.Wrap(err, "gazetteer load")
		}

		zap.L().Info("gazetteer load complete",
			zap.String("dump", args[0]),
			zap.Int("sites", n))
		fmt.Printf("loaded %d sites\n", n)
		return nil
	},
}

var (
	shpIDField   string
	shpNameField string
	shpClass     string
	shpKind      string
	shpCountry   string
	shpAdmin1    string
	shpSource    string
)

var gazetteerLoadShpCmd = &cobra.Command{
	Use:   "load-shp <shapefile>",
	Short: "Load feature polygons from a shapefile",
	Long: "Imports polygon features, for example protected-area or " +
		"watershed boundaries, so named sites resolve to their real " +
		"outline rather than a point with a nominal radius.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("load"); err != nil {
			return err
		}

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Migrate(ctx); err != nil {
			return eris.Wrap(err, "gazetteer load-shp: migrate")
		}

		n, err := gazetteer.LoadShapefile(ctx, store, args[0], gazetteer.ShapefileOptions{
			IDField:     shpIDField,
			NameField:   shpNameField,
			SiteClass:   shpClass,
			SiteKind:    shpKind,
			CountryCode: shpCountry,
			Admin1:      shpAdmin1,
			Source:      shpSource,
		})
		if err != nil {
			return eris.Wrap(err, "gazetteer load-shp")
		}

		zap.L().Info("shapefile load complete",
			zap.String("shapefile", args[0]),
			zap.Int("sites", n))
		fmt.Printf("loaded %d sites\n", n)
		return nil
	},
}

func init() {
	f := gazetteerLoadShpCmd.Flags()
	f.StringVar(&shpIDField, "id-field", "", "attribute column holding the location id")
	f.StringVar(&shpNameField, "name-field", "NAME", "attribute column holding the feature name")
	f.StringVar(&shpClass, "class", "L", "feature class for loaded sites")
	f.StringVar(&shpKind, "kind", "", "feature code for loaded sites")
	f.StringVar(&shpCountry, "country", "", "country code for loaded sites")
	f.StringVar(&shpAdmin1, "admin1", "", "admin1 code for loaded sites")
	f.StringVar(&shpSource, "source", "", "source label recorded on loaded sites")

	gazetteerCmd.AddCommand(gazetteerLoadCmd)
	gazetteerCmd.AddCommand(gazetteerLoadShpCmd)
	rootCmd.AddCommand(gazetteerCmd)
}
