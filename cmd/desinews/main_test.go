package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/desinews/internal/news"
)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		category, region, timeRange string
		want                        news.Filter
		err                         bool
	}{
		{"", "", "", news.Filter{}, false},
		{"AI", "India", "today", news.Filter{Category: news.CategoryAI, Region: news.RegionIndia, TimeRange: news.TimeRangeToday}, false},
		{"all", "all", "all", news.Filter{}, false},
		{"startup", "world", "week", news.Filter{Category: news.CategoryStartup, Region: news.RegionWorld, TimeRange: news.TimeRangeWeek}, false},
		{"sports", "", "", news.Filter{}, true},
		{"", "mars", "", news.Filter{}, true},
		{"", "", "year", news.Filter{}, true},
	}

	for _, tt := range tests {
		got, err := parseFilter(tt.category, tt.region, tt.timeRange)
		if tt.err {
			assert.Error(t, err, "%s/%s/%s", tt.category, tt.region, tt.timeRange)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "desinews dev (commit: none)\n", out.String())
}

func TestFetchRejectsBadFacetBeforeLoadingConfig(t *testing.T) {
	rootCmd.SetArgs([]string{"fetch", "--category", "sports"})
	rootCmd.SetErr(&bytes.Buffer{})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetErr(nil)
		flagCategory = ""
	})

	err := rootCmd.Execute()
	assert.ErrorContains(t, err, `unknown category "sports"`)
}
