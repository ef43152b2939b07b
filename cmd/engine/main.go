package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rxtech-lab/pulse-trading/internal/config"
	"github.com/rxtech-lab/pulse-trading/internal/logger"
	"github.com/rxtech-lab/pulse-trading/internal/orchestrator"
	"github.com/rxtech-lab/pulse-trading/internal/strategy/builtin"
	"github.com/rxtech-lab/pulse-trading/internal/types"
	"github.com/rxtech-lab/pulse-trading/internal/version"
	"github.com/rxtech-lab/pulse-trading/pkg/utils"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const shutdownTimeout = 30 * time.Second

// runAction loads the config, wires the builtin strategies and the console
// callbacks into the engine, and runs it until an interrupt arrives.
func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.LoadConfig(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	appLog, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	defer appLog.Sync() //nolint:errcheck

	app := orchestrator.NewApplication(cfg, appLog)

	momentumConfig, err := readOptionalFile(cmd.String("momentum-config"))
	if err != nil {
		return fmt.Errorf("failed to read momentum strategy config: %w", err)
	}

	volumeConfig, err := readOptionalFile(cmd.String("volume-spike-config"))
	if err != nil {
		return fmt.Errorf("failed to read volume spike strategy config: %w", err)
	}

	meanReversionConfig, err := readOptionalFile(cmd.String("mean-reversion-config"))
	if err != nil {
		return fmt.Errorf("failed to read mean reversion strategy config: %w", err)
	}

	if err := app.RegisterStrategy(builtin.NewMomentum(), momentumConfig); err != nil {
		return fmt.Errorf("failed to register momentum strategy: %w", err)
	}

	if err := app.RegisterStrategy(builtin.NewVolumeSpike(), volumeConfig); err != nil {
		return fmt.Errorf("failed to register volume spike strategy: %w", err)
	}

	if err := app.RegisterStrategy(builtin.NewMeanReversion(), meanReversionConfig); err != nil {
		return fmt.Errorf("failed to register mean reversion strategy: %w", err)
	}

	if err := app.SetCallbacks(consoleCallbacks()); err != nil {
		return fmt.Errorf("failed to set callbacks: %w", err)
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Initialize(sigCtx); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	if err := app.Start(); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	fmt.Printf("Engine running with %d instruments, press Ctrl+C to stop\n", len(cfg.Engine.Instruments))
	<-sigCtx.Done()
	stop()
	fmt.Println("\nReceived interrupt signal, stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if cmd.Bool("flatten-on-exit") {
		closed, err := app.ForceCloseAll(shutdownCtx, "engine shutdown")
		if err != nil {
			fmt.Printf("Force close failed: %v\n", err)
		} else if closed > 0 {
			fmt.Printf("Closed %d open positions\n", closed)
		}
	}

	if err := app.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop engine: %w", err)
	}

	fmt.Println("Engine stopped")

	return nil
}

// consoleCallbacks prints every engine event to stdout.
func consoleCallbacks() orchestrator.Callbacks {
	onState := orchestrator.OnStateChangeCallback(func(state types.EngineState) {
		fmt.Printf("Engine state: %s\n", state)
	})
	onSignal := orchestrator.OnSignalCallback(func(signal types.Signal) {
		fmt.Printf("Signal: %s %s confidence=%.2f strategy=%s\n",
			signal.Action, signal.Instrument, signal.Confidence, signal.StrategyID)
	})
	onOrderFilled := orchestrator.OnOrderFilledCallback(func(order types.Order) {
		fmt.Printf("Order %s: %s %s x%.2f (%s)\n",
			order.Status, order.Side, order.Instrument, order.Quantity, order.Reason.Reason)
	})
	onExit := orchestrator.OnExitCallback(func(position types.Position, reason types.Reason) {
		fmt.Printf("Exit %s: %s (realized %.2f)\n",
			position.Instrument, reason.Message, position.RealizedPnL)
	})
	onError := orchestrator.OnErrorCallback(func(err error) {
		fmt.Printf("Error: %v\n", err)
	})

	return orchestrator.Callbacks{
		OnStateChange: &onState,
		OnSignal:      &onSignal,
		OnOrderFilled: &onOrderFilled,
		OnExit:        &onExit,
		OnError:       &onError,
	}
}

// readOptionalFile returns the file's contents, or empty when no path is set.
func readOptionalFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// schemaAction writes the config JSON schema and, when missing, a sample
// config annotated for yaml-language-server.
func schemaAction(_ context.Context, cmd *cli.Command) error {
	outputDir := cmd.String("output")

	cfg := config.DefaultConfig()

	schemaJSON, err := cfg.GenerateSchemaJSON()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	schemaName := "engine-config-schema.json"
	schemaPath := filepath.Join(outputDir, schemaName)

	if err := os.WriteFile(schemaPath, []byte(schemaJSON), 0644); err != nil {
		return fmt.Errorf("failed to write schema: %w", err)
	}

	samplePath := filepath.Join(outputDir, "engine.yaml")
	if _, err := os.Stat(samplePath); os.IsNotExist(err) {
		yamlBytes, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal sample config: %w", err)
		}

		yamlBytes = append([]byte("# yaml-language-server: $schema="+schemaName+"\n"), yamlBytes...)
		if err := os.WriteFile(samplePath, yamlBytes, 0644); err != nil {
			return fmt.Errorf("failed to write sample config: %w", err)
		}

		log.Printf("Sample config generated at %s", samplePath)
	}

	//nolint:exhaustruct
	strategyConfigs := map[string]any{
		"momentum":       builtin.MomentumConfig{},
		"volume-spike":   builtin.VolumeSpikeConfig{},
		"mean-reversion": builtin.MeanReversionConfig{},
	}

	for name, strategyConfig := range strategyConfigs {
		schemaJSON, err := utils.GetSchemaFromConfig(strategyConfig)
		if err != nil {
			return fmt.Errorf("failed to generate %s strategy schema: %w", name, err)
		}

		path := filepath.Join(outputDir, name+"-strategy-schema.json")
		if err := os.WriteFile(path, []byte(schemaJSON), 0644); err != nil {
			return fmt.Errorf("failed to write %s strategy schema: %w", name, err)
		}
	}

	log.Printf("Schema generated at %s", schemaPath)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "pulse",
		Usage:   "Automated intraday trading engine",
		Version: version.GetVersion(),
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run the trading engine until interrupted",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to the engine config file",
						Value:   "config/engine.yaml",
					},
					&cli.StringFlag{
						Name:  "momentum-config",
						Usage: "Path to the momentum strategy config file",
					},
					&cli.StringFlag{
						Name:  "volume-spike-config",
						Usage: "Path to the volume spike strategy config file",
					},
					&cli.StringFlag{
						Name:  "mean-reversion-config",
						Usage: "Path to the mean reversion strategy config file",
					},
					&cli.BoolFlag{
						Name:  "flatten-on-exit",
						Usage: "Force close all open positions before stopping",
					},
				},
				Action: runAction,
			},
			{
				Name:  "schema",
				Usage: "Generate the config JSON schema and a sample config",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Directory for the generated files",
						Value:   "config",
					},
				},
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
