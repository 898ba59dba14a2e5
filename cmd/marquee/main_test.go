package main

import (
	"bufio"
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/marquee/internal/adapter"
	"github.com/mmcdole/marquee/internal/domain"
)

func TestKeyArg(t *testing.T) {
	item, err := keyArg("movie:603")
	require.NoError(t, err)
	assert.Equal(t, domain.MediaItem{ID: 603, MediaType: domain.MediaTypeMovie}, item)

	_, err = keyArg("603")
	assert.Error(t, err)
}

func TestBlockedTitlesFold(t *testing.T) {
	blocked := blockedTitles([]string{"  Amélie ", ""})
	assert.Len(t, blocked, 1)
	_, ok := blocked["amelie"]
	assert.True(t, ok)
}

func TestSetupFlowSavesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := adapter.DefaultConfig()

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	in := bufio.NewReader(strings.NewReader("\nabc123\nhttps://feed.example.com\n\nGB\n"))
	require.NoError(t, runSetupFlow(cmd, cfg, path, in))
	assert.Contains(t, out.String(), "A catalog credential is required")
	assert.Contains(t, out.String(), "Configuration saved")

	loaded, err := adapter.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "abc123", loaded.TMDB.APIKey)
	assert.Equal(t, "https://feed.example.com", loaded.Curated.BaseURL)
	assert.Equal(t, "en-US", loaded.Locale.Language)
	assert.Equal(t, "GB", loaded.Locale.Region)
}

func TestItemLine(t *testing.T) {
	line := itemLine(domain.MediaItem{ID: 603, MediaType: domain.MediaTypeMovie, Title: "The Matrix", ReleaseDate: "1999-03-31"}, 80)
	assert.True(t, strings.HasPrefix(line, "movie:603"))
	assert.Contains(t, line, "The Matrix")
	assert.Contains(t, line, "1999")
}
