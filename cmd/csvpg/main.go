// csvpg imports delimited files and HTML tables into relational stores,
// inferring the table schema from the data on the way in.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"csvpg/internal/dbconfig"
	"csvpg/internal/logging"
	"csvpg/internal/metrics"
	"csvpg/internal/metrics/datadog"

	// register all storage backends with the factory; profiles pick one
	// at runtime.
	_ "csvpg/internal/storage/all"
)

var (
	configPath  string
	envPath     string
	logLevel    string
	logJSON     bool
	metricsName string

	driverFlag string
	dsnFlag    string

	log          *zap.Logger
	closeMetrics func()
)

var rootCmd = &cobra.Command{
	Use:   "csvpg",
	Short: "Import CSV files and HTML tables into PostgreSQL, SQLite or SQL Server",
	Long: `csvpg samples a delimited file, infers column names and types from the
headers and data, creates or reuses the target table, and streams the rows
in batches inside one transaction. Connection settings come from a YAML
profile, PG*/DB_* environment variables or a DSN.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		log, err = logging.New(logLevel, logJSON)
		if err != nil {
			return err
		}
		setupMetrics(cmd)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeMetrics != nil {
			closeMetrics()
		}
		_ = log.Sync()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "YAML connection profile")
	pf.StringVar(&envPath, "env", "", "env file to load before reading the environment")
	pf.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	pf.BoolVar(&logJSON, "log-json", false, "emit JSON logs instead of console output")
	pf.StringVar(&metricsName, "metrics", "", "metrics backend: datadog or none (default $METRICS_BACKEND)")
	pf.StringVar(&driverFlag, "driver", "", "storage driver: postgres, sqlite or sqlserver (overrides profile)")
	pf.StringVar(&dsnFlag, "dsn", "", "connection string (overrides profile and environment)")
}

// setupMetrics wires the process-wide metrics backend: flag wins over the
// METRICS_BACKEND environment variable, and anything but datadog leaves
// the nop backend in place. The Datadog backend flushes on its own clock,
// so shutdown has to stop it for the final submit.
func setupMetrics(cmd *cobra.Command) {
	name := metricsName
	if name == "" {
		name = os.Getenv("METRICS_BACKEND")
	}
	switch name {
	case "datadog":
		b, err := datadog.NewBackend(cmd.Context(), datadog.Options{
			Tags:       datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS")),
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			log.Warn("metrics disabled", zap.Error(err))
			return
		}
		metrics.SetBackend(b)
		closeMetrics = func() {
			if err := b.Close(); err != nil {
				log.Warn("metrics flush failed", zap.Error(err))
			}
		}
	case "", "none":
	default:
		log.Warn("unknown metrics backend, metrics disabled", zap.String("backend", name))
	}
}

// loadConfig reads the connection profile with the connection flags
// applied on top.
func loadConfig() (*dbconfig.Config, error) {
	return dbconfig.Load(configPath, envPath, dbconfig.Overrides{
		Driver: driverFlag,
		DSN:    dsnFlag,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "csvpg: %v\n", err)
		os.Exit(1)
	}
}
