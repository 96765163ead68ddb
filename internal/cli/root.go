// Package cli defines the fares command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alex-user-go/fares/internal/app"
	"github.com/alex-user-go/fares/internal/config"
	"github.com/alex-user-go/fares/internal/handler"
	"github.com/alex-user-go/fares/internal/search/types"
)

// BuildInfo is stamped in by the linker.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

type options struct {
	configPath string
}

// NewRootCmd builds the command tree.
func NewRootCmd(info BuildInfo) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "fares",
		Short:         "Multi-country flight fare arbitrage search",
		Long:          "fares shops one flight query from several countries at once and ranks the offers against a home-market baseline.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv(config.EnvPath), "path to config file")

	root.AddCommand(newServeCmd(opts, info))
	root.AddCommand(newSearchCmd(opts, info))
	root.AddCommand(newVersionCmd(info))
	return root
}

// Execute runs the command tree and exits non-zero on failure.
func Execute(info BuildInfo) {
	if err := NewRootCmd(info).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newVersionCmd(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fares %s (commit: %s, built: %s)\n", info.Version, info.Commit, info.Date)
		},
	}
}

func newServeCmd(opts *options, info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}

			logger := app.NewLogger(os.Stdout, cfg.Server.Debug)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return app.Run(ctx, cfg, info.Version, logger)
		},
	}
}

type searchFlags struct {
	date       string
	returnDate string
	passengers int
	cabin      string
	countries  []string
}

func newSearchCmd(opts *options, info BuildInfo) *cobra.Command {
	f := &searchFlags{}

	cmd := &cobra.Command{
		Use:   "search ORIGIN DESTINATION",
		Short: "Run one search and print the JSON result",
		Example: "  fares search LAX NRT --date 2025-03-15\n" +
			"  fares search JFK LHR --date 2025-06-01 --return 2025-06-10 --cabin business",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := f.query(args)
			if err != nil {
				return err
			}

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if len(f.countries) > 0 {
				cfg.Search.Countries = lower(f.countries)
			}

			// Logs go to stderr so stdout stays machine-readable.
			logger := app.NewLogger(cmd.ErrOrStderr(), cfg.Server.Debug)
			svc, err := app.New(cfg, info.Version, logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runSearch(ctx, cmd, svc, q)
		},
	}

	cmd.Flags().StringVar(&f.date, "date", "", "departure date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.returnDate, "return", "", "return date for round trips (YYYY-MM-DD)")
	cmd.Flags().IntVar(&f.passengers, "passengers", 1, "number of passengers (1-9)")
	cmd.Flags().StringVar(&f.cabin, "cabin", string(types.CabinEconomy), "cabin class: economy, premium_economy, business, first")
	cmd.Flags().StringSliceVar(&f.countries, "countries", nil, "override source countries (e.g. in,mx,br)")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func (f *searchFlags) query(args []string) (types.Query, error) {
	q := types.Query{
		Origin:        args[0],
		Destination:   args[1],
		DepartureDate: f.date,
		ReturnDate:    f.returnDate,
		Passengers:    f.passengers,
		CabinClass:    types.CabinClass(f.cabin),
	}.Normalize()
	if err := q.Validate(); err != nil {
		return types.Query{}, err
	}
	return q, nil
}

func runSearch(ctx context.Context, cmd *cobra.Command, svc *app.Service, q types.Query) error {
	result, err := svc.Engine.Search(ctx, q)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(handler.SearchResponse{Success: true, Result: result})
}

func lower(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			out = append(out, c)
		}
	}
	return out
}
