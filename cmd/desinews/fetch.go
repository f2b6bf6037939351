package main

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/deusflow/desinews/internal/app"
	"github.com/deusflow/desinews/internal/config"
	"github.com/deusflow/desinews/internal/logger"
	"github.com/deusflow/desinews/internal/news"
)

var (
	flagCategory  string
	flagRegion    string
	flagTimeRange string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run one aggregation and print the articles as JSON",
	Long: `Fetch runs the same pipeline the server uses for /api/v1/news and writes the
result to stdout. Logs go to stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := parseFilter(flagCategory, flagRegion, flagTimeRange)
		if err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		log := logger.NewWithWriter(os.Stderr, cfg.Debug, cfg.LogFormat)
		a, err := app.New(cmd.Context(), cfg, app.WithLogger(log))
		if err != nil {
			return err
		}
		defer a.Close()

		articles := a.Aggregator().GetAggregatedNews(cmd.Context(), f)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(articles)
	},
}

func init() {
	fetchCmd.Flags().StringVar(&flagCategory, "category", "", "ai, startup or all")
	fetchCmd.Flags().StringVar(&flagRegion, "region", "", "world, india or all")
	fetchCmd.Flags().StringVar(&flagTimeRange, "time-range", "", "today, week, month or all")
}

// parseFilter validates the facet flags; empty means any.
func parseFilter(category, region, timeRange string) (news.Filter, error) {
	f := news.Filter{
		Category:  news.Category(category),
		Region:    news.Region(region),
		TimeRange: news.TimeRange(timeRange),
	}.Normalize()

	if f.Category != "" && !slices.Contains([]news.Category{news.CategoryAI, news.CategoryStartup}, f.Category) {
		return news.Filter{}, fmt.Errorf("unknown category %q", category)
	}
	if f.Region != "" && !slices.Contains([]news.Region{news.RegionWorld, news.RegionIndia}, f.Region) {
		return news.Filter{}, fmt.Errorf("unknown region %q", region)
	}
	if f.TimeRange != "" && !slices.Contains([]news.TimeRange{news.TimeRangeToday, news.TimeRangeWeek, news.TimeRangeMonth}, f.TimeRange) {
		return news.Filter{}, fmt.Errorf("unknown time range %q", timeRange)
	}
	return f, nil
}
