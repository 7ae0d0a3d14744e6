// CLAUDE:SUMMARY taxonav binary: serve (HTTP + MCP + uploads watcher), ingest, export and template subcommands; config from YAML, .env and environment.
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
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/merceaemil/taxonomy-navigator/chassis"
	"github.com/merceaemil/taxonomy-navigator/export"
	"github.com/merceaemil/taxonomy-navigator/ingest"
	"github.com/merceaemil/taxonomy-navigator/navigator"
	"github.com/merceaemil/taxonomy-navigator/sheet"
	"github.com/merceaemil/taxonomy-navigator/taxonomy"
	"github.com/merceaemil/taxonomy-navigator/workbook"
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("taxonav", "error", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	cfg        *navigator.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "taxonav",
		Short:         "Ingest green-taxonomy workbooks and serve them for browsing",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			cfg, err := loadConfig(opts.configPath, os.Getenv)
			if err != nil {
				return err
			}
			lvl, err := navigator.ParseLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			opts.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
			slog.SetDefault(opts.logger)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (default: $TAXONAV_CONFIG)")

	cmd.AddCommand(
		newServeCmd(opts),
		newIngestCmd(opts),
		newExportCmd(opts),
		newTemplateCmd(),
	)
	return cmd
}

// loadConfig reads the YAML file named by path or TAXONAV_CONFIG, then
// applies environment overrides.
func loadConfig(path string, getenv func(string) string) (*navigator.Config, error) {
	if path == "" {
		path = getenv("TAXONAV_CONFIG")
	}
	cfg := navigator.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = navigator.LoadConfig(path); err != nil {
			return nil, err
		}
	}
	if v := getenv("PORT"); v != "" {
		cfg.Listen = ":" + v
	}
	if v := getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("TAXONAV_STORE"); v != "" {
		cfg.Store = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, /mcp and the uploads watcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			navigator.Version = version
			svc, err := navigator.New(opts.cfg, navigator.WithLogger(opts.logger))
			if err != nil {
				return err
			}
			defer svc.Close()

			srv, err := chassis.New(chassis.Config{
				Addr:    opts.cfg.Listen,
				Handler: svc.Handler(),
				Logger:  opts.logger,
			})
			if err != nil {
				return err
			}

			go svc.Watch(ctx)

			opts.logger.Info("taxonav starting",
				"listen", opts.cfg.Listen,
				"uploads", opts.cfg.Uploads(),
				"store", opts.cfg.Store,
				"mcp", opts.cfg.MCP)
			return srv.Run(ctx)
		},
	}
}

func newIngestCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [file]",
		Short: "Process pending uploads, or one workbook given by path",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := navigator.New(opts.cfg, navigator.WithLogger(opts.logger))
			if err != nil {
				return err
			}
			defer svc.Close()

			var runs []*ingest.Result
			if len(args) == 1 {
				res, err := ingestFile(ctx, svc.Orchestrator(), args[0])
				if res != nil {
					runs = append(runs, res)
				}
				if err != nil {
					return err
				}
			} else if runs, err = svc.Ingest(ctx); err != nil {
				return err
			}
			if runs == nil {
				runs = []*ingest.Result{}
			}
			return writeJSON(cmd.OutOrStdout(), runs)
		},
	}
}

// ingestFile ingests a workbook outside the uploads directory. The file is
// left in place.
func ingestFile(ctx context.Context, orch *ingest.Orchestrator, path string) (*ingest.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return orch.Ingest(ctx, filepath.Base(path), f)
}

type exportOptions struct {
	category string
	format   string
	output   string
	filters  taxonomy.Filters
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var eo exportOptions
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the newest snapshot as JSON, or one category as a markdown outline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := navigator.New(opts.cfg, navigator.WithLogger(opts.logger))
			if err != nil {
				return err
			}
			defer svc.Close()

			w := cmd.OutOrStdout()
			if eo.output != "" && eo.output != "-" {
				f, err := os.Create(eo.output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return runExport(ctx, svc, eo, w)
		},
	}
	cmd.Flags().StringVar(&eo.category, "category", "", "Category: mitigation, adaptation or various (required for markdown)")
	cmd.Flags().StringVar(&eo.format, "format", "json", "Output format: json or markdown")
	cmd.Flags().StringVarP(&eo.output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&eo.filters.Type, "type", "", "Markdown: keep records of this type")
	cmd.Flags().StringVar(&eo.filters.Level, "level", "", "Markdown: keep records of this level")
	cmd.Flags().StringVar(&eo.filters.CriteriaType, "criteria-type", "", "Markdown: keep records of this criteria type")
	cmd.Flags().StringVar(&eo.filters.ISICCodes, "isic", "", "Markdown: keep records whose ISIC codes contain this")
	return cmd
}

func runExport(ctx context.Context, svc *navigator.Service, eo exportOptions, w io.Writer) error {
	switch eo.format {
	case "json":
		_, doc, err := svc.Latest(ctx)
		if err != nil {
			return err
		}
		return export.JSON(w, doc)
	case "markdown", "md":
		c, err := taxonomy.ParseCategory(eo.category)
		if err != nil {
			return fmt.Errorf("--category: %w", err)
		}
		tree, err := svc.Hierarchy(ctx, c, eo.filters)
		if err != nil {
			return err
		}
		return export.Markdown(w, tree)
	default:
		return fmt.Errorf("unsupported format %q (use json or markdown)", eo.format)
	}
}

func newTemplateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "template <file.xlsx>",
		Short: "Write an empty workbook with the three taxonomy sheets and their header rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			if err := writeTemplate(f); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
}

func writeTemplate(w io.Writer) error {
	sheets := make([]workbook.Sheet, 0, len(taxonomy.Categories))
	for _, c := range taxonomy.Categories {
		sheets = append(sheets, workbook.Sheet{Name: c.Label(), Grid: sheet.Grid{sheet.Headers(c)}})
	}
	return workbook.WriteXLSX(w, sheets)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
