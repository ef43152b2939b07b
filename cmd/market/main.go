package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rxtech-lab/pulse-trading/pkg/marketdata"
	"github.com/rxtech-lab/pulse-trading/pkg/marketdata/provider"
	"github.com/urfave/cli/v3"
)

// downloadAction parses the flags, builds the market data client and runs one
// download. The resulting Parquet file lands in the data directory, named
// after the instrument and range, ready for engine warmup.
func downloadAction(ctx context.Context, cmd *cli.Command) error {
	instrument := cmd.String("instrument")
	start := cmd.Timestamp("start")
	end := cmd.Timestamp("end")
	source := cmd.String("source")
	interval := cmd.String("interval")
	dataDir := cmd.String("data")

	parsedInterval, err := marketdata.ParseInterval(interval)
	if err != nil {
		return err
	}

	client, err := marketdata.NewClient(marketdata.ClientConfig{
		Source:        provider.Source(source),
		DataDir:       dataDir,
		PolygonAPIKey: os.Getenv("POLYGON_API_KEY"),
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to create market data client: %w", err)
	}

	log.Printf("Downloading %s candles for %s from %s to %s via %s...",
		interval, instrument, start.Format("2006-01-02"), end.Format("2006-01-02"), source)

	path, err := client.Download(ctx, marketdata.DownloadParams{
		Instrument: instrument,
		Start:      start,
		End:        end,
		Interval:   parsedInterval,
	})
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	log.Printf("Wrote %s", path)

	return nil
}

// newCommand builds the CLI definition.
func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "market",
		Usage: "Download historical candles for engine warmup",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "instrument",
				Aliases:  []string{"i"},
				Usage:    "Instrument symbol (e.g. BTCUSDT, AAPL)",
				Required: true,
			},
			&cli.TimestampFlag{
				Name:     "start",
				Aliases:  []string{"s"},
				Usage:    "Start date in `YYYY-MM-DD` format",
				Required: true,
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.TimestampFlag{
				Name:    "end",
				Aliases: []string{"e"},
				Usage:   "End date in `YYYY-MM-DD` format. Defaults to today.",
				Value:   time.Now(),
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.StringFlag{
				Name:    "source",
				Aliases: []string{"p"},
				Usage:   fmt.Sprintf("Candle source, one of %v", provider.SupportedSources()),
				Value:   string(provider.SourceBinance),
			},
			&cli.StringFlag{
				Name:  "interval",
				Usage: "Candle interval (1m, 5m, 15m, 1h, 1d)",
				Value: string(marketdata.IntervalOneMinute),
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Output directory for Parquet files",
				Value:   "data",
			},
		},
		Action: downloadAction,
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
