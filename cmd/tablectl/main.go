package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-table/pkg/config"
	"github.com/ajitpratap0/nebula-table/pkg/connector"
	"github.com/ajitpratap0/nebula-table/pkg/logger"
	"github.com/ajitpratap0/nebula-table/pkg/observability"
	"github.com/ajitpratap0/nebula-table/pkg/table"
)

var version = "0.1.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string
	var trace bool
	var shutdown observability.ShutdownFunc

	root := &cobra.Command{
		Use:   "tablectl",
		Short: "tablectl - inspect and convert tabular files",
		Long: `tablectl reads tables from CSV, JSON, Avro, Parquet, Arrow and HTML files
or URLs, and writes them back out in any of those formats.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(configFile)
			if err != nil {
				return err
			}
			config.SetCurrent(settings)
			if err := logger.Init(logger.Config{
				Level:       settings.Log.Level,
				Encoding:    settings.Log.Encoding,
				Development: settings.Log.Development,
			}); err != nil {
				return err
			}
			if trace {
				shutdown, err = observability.InitTracing(observability.TracingConfig{
					ServiceName:    "tablectl",
					ServiceVersion: version,
					SamplingRate:   1,
					Writer:         cmd.ErrOrStderr(),
					Pretty:         true,
				})
			}
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if shutdown == nil {
				return nil
			}
			return shutdown(context.Background())
		},
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a YAML settings file (optional)")
	root.PersistentFlags().BoolVar(&trace, "trace", false, "Print OpenTelemetry spans to stderr")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tablectl v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	var stats bool
	convertCmd := &cobra.Command{
		Use:   "convert <input> <output>",
		Short: "Convert a table between formats",
		Long: `Convert reads the input file or URL and writes it to output. Both formats are
chosen from the file extension, after any .gz, .zst, .lz4 or .s2 suffix.

Example:
  tablectl convert people.csv.gz people.parquet`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd.OutOrStdout(), args[0], args[1], stats)
		},
	}
	convertCmd.Flags().BoolVar(&stats, "stats", false, "Log row count and process resource usage when done")
	root.AddCommand(convertCmd)

	var rows int
	headCmd := &cobra.Command{
		Use:   "head <input>",
		Short: "Print the first rows of a table as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHead(cmd.OutOrStdout(), args[0], rows)
		},
	}
	headCmd.Flags().IntVarP(&rows, "rows", "n", 10, "Number of rows to print")
	root.AddCommand(headCmd)

	root.AddCommand(&cobra.Command{
		Use:   "columns <input>",
		Short: "List a table's columns and the value types seen in each",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runColumns(cmd.OutOrStdout(), args[0])
		},
	})

	root.AddCommand(newFetchCommand())

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage settings files",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "init <path>",
		Short: "Write the default settings to a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Save(args[0], config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	})
	root.AddCommand(configCmd)

	return root
}

func newFetchCommand() *cobra.Command {
	var dataKey, paginationKey, tokenEnv string
	var headers []string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "fetch <url> <output>",
		Short: "Page through a JSON API and save the results as a table",
		Long: `Fetch issues GET requests starting at url, following the next-page link under
--pagination-key, and saves the rows found under --data-key.

Example:
  tablectl fetch https://api.example.com/v1/people people.csv \
    --data-key data --pagination-key links.next --token-env EXAMPLE_API_TOKEN`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []connector.Option{
				connector.WithDataKey(dataKey),
				connector.WithPaginationKey(paginationKey),
			}
			hdrs, err := parseHeaders(headers)
			if err != nil {
				return err
			}
			if tokenEnv != "" {
				token, err := config.CheckEnv(tokenEnv, "", false)
				if err != nil {
					return err
				}
				hdrs["Authorization"] = "Bearer " + token
			}
			opts = append(opts, connector.WithHeaders(hdrs))

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runFetch(ctx, cmd.OutOrStdout(), args[0], args[1], opts...)
		},
	}
	cmd.Flags().StringVar(&dataKey, "data-key", "", "Response key holding the rows, dotted for nested objects")
	cmd.Flags().StringVar(&paginationKey, "pagination-key", "", "Response key holding the next page URL")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Extra request header as Name=Value (repeatable)")
	cmd.Flags().StringVar(&tokenEnv, "token-env", "", "Environment variable holding a bearer token")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Overall timeout for all pages")
	return cmd
}

func parseHeaders(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, want Name=Value", p)
		}
		out[name] = value
	}
	return out, nil
}

func runConvert(out io.Writer, input, output string, stats bool) error {
	log := logger.Get().With(zap.String("component", "tablectl"))

	var monitor *observability.ResourceMonitor
	if stats {
		var err error
		if monitor, err = observability.NewResourceMonitor(); err != nil {
			log.Warn("resource usage unavailable", zap.Error(err))
		}
	}

	tbl, err := table.Open(input)
	if err != nil {
		return err
	}
	written, err := tbl.Save(output)
	if err != nil {
		return err
	}

	fields := []zap.Field{zap.String("input", input), zap.String("output", written)}
	if stats {
		if n, err := tbl.NumRows(); err == nil {
			fields = append(fields, zap.Int("rows", n))
		}
		if monitor != nil {
			fields = append(fields, monitor.Usage().Fields()...)
		}
	}
	log.Info("converted table", fields...)
	fmt.Fprintln(out, written)
	return nil
}

func runHead(out io.Writer, input string, n int) error {
	tbl, err := table.Open(input)
	if err != nil {
		return err
	}
	if err := tbl.Head(n); err != nil {
		return err
	}
	s, err := tbl.ToCSVString(table.CSVOptions{})
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, s)
	return err
}

func runColumns(out io.Writer, input string) error {
	tbl, err := table.Open(input)
	if err != nil {
		return err
	}
	// one pass over the source feeds every ColumnTypes call
	if err := tbl.Materialize(); err != nil {
		return err
	}
	cols, err := tbl.Columns()
	if err != nil {
		return err
	}
	for _, col := range cols {
		types, err := tbl.ColumnTypes(col)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\t%s\n", col, strings.Join(types, ","))
	}
	return nil
}

func runFetch(ctx context.Context, out io.Writer, target, output string, opts ...connector.Option) error {
	api := connector.New(target, opts...)
	tbl, err := api.GetTable(ctx, "", nil)
	if err != nil {
		return err
	}
	return runSave(out, tbl, output)
}

func runSave(out io.Writer, tbl *table.Table, output string) error {
	written, err := tbl.Save(output)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, written)
	return nil
}
