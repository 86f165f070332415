package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ralborta/pdf-microservice/internal/common"
	"github.com/ralborta/pdf-microservice/internal/repository"
	"github.com/ralborta/pdf-microservice/internal/services/extraction"
)

var version = "dev"

// errResultNotOK marks a command that ran but produced a failed or invalid extraction.
var errResultNotOK = errors.New("extraction did not succeed")

type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string

	cfg    *common.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "pricelist",
		Short:         "Extract product records from supplier price lists",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "YAML or TOML config file")
	f.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	f.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	f.StringVar(&opts.logFormat, "log-format", "", "text, json or plain")

	cmd.AddCommand(
		newExtractCmd(opts),
		newBatchCmd(opts),
		newServeCmd(opts),
		newMCPCmd(opts),
		newRunsCmd(opts),
		newDBHealthCmd(opts),
	)
	return cmd
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", o.envFile, err)
		}
	}
	cfg, err := common.LoadConfigFile(o.configPath)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	if err := cfg.Validate(false); err != nil {
		return err
	}
	o.cfg = cfg
	// stdout belongs to command output and, for mcp, to the protocol.
	o.logger = common.NewLogger(cfg.Log, cmd.ErrOrStderr())
	slog.SetDefault(o.logger)
	return nil
}

// newService wires the cascade and, when a DSN is configured, the run log.
// The returned cleanup is never nil.
func (o *rootOptions) newService(ctx context.Context) (*extraction.Service, *repository.DB, func(), error) {
	proc := extraction.NewProcessor(o.cfg, o.logger)
	if o.cfg.Database.DSN == "" {
		return extraction.NewService(proc, nil, o.logger), nil, func() {}, nil
	}

	d := o.cfg.Database
	db, err := repository.Open(ctx, repository.Config{
		DSN:             d.DSN,
		MaxConns:        d.MaxConns,
		MinConns:        d.MinConns,
		MaxConnLifetime: d.MaxConnLifetime,
		MaxConnIdleTime: d.MaxConnIdleTime,
		DialTimeout:     d.DialTimeout,
	}, o.logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open run log: %w", err)
	}
	runs := repository.NewRunRepository(db, o.logger)
	return extraction.NewService(proc, runs, o.logger), db, func() { repository.Close(db, o.logger) }, nil
}

func writeOutput(w io.Writer, format string, v any) error {
	if err := common.NewValidator().Field("format", format, common.OneOf("json", "yaml", "yml")).Error(); err != nil {
		return err
	}
	switch format {
	case "yaml", "yml":
		b, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, errResultNotOK):
		return 1
	case errors.Is(err, context.Canceled):
		return 130
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
		return 2
	}
}
