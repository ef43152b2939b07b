package writer

import (
	"github.com/rxtech-lab/pulse-trading/internal/types"
)

// MarketDataWriter persists downloaded candles to a destination file or
// store. Writers are single-use: Initialize, Write any number of candles,
// then Finalize to produce the output and Close to release resources.
type MarketDataWriter interface {
	// Initialize sets up the destination, creating tables or files as needed.
	Initialize() error
	// Write persists a single candle.
	Write(data types.MarketData) error
	// Finalize completes the write and returns the output path.
	Finalize() (outputPath string, err error)
	// Close releases the writer's resources. Safe to call after Finalize and
	// after errors.
	Close() error
	// OutputPath returns the configured output file path.
	OutputPath() string
}
