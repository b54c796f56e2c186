/*
SPDX-FileCopyrightText: 2025 Deutsche Telekom AG

SPDX-License-Identifier: Apache-2.0
*/

package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gameshake/gameshake/pkg/gameshake/client"
)

func TestDecodeRecords(t *testing.T) {
	games, err := DecodeRecords[client.Game](sampleRecords)
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, "Celeste", games[0].Name)
	assert.Equal(t, 1260, games[0].PlaytimeMinutes)

	_, err = DecodeRecords[client.Game]([]client.Record{client.Record(`"not an object"`)})
	require.Error(t, err)
}

func TestWriteGameTable(t *testing.T) {
	played := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	games := []client.Game{
		{ID: "g1", Name: "Celeste", Platform: "pc", PlaytimeMinutes: 1265, AchievementsUnlocked: 10, AchievementsTotal: 40, LastPlayed: &played},
		{ID: "g2", Name: "Hades", PlaytimeMinutes: 45},
	}

	var buf bytes.Buffer
	WriteGameTable(&buf, games)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "ID")
	assert.Contains(t, lines[0], "ACHIEVEMENTS")
	assert.Contains(t, lines[1], "21h 5m")
	assert.Contains(t, lines[1], "10/40")
	assert.Contains(t, lines[2], "45m")

	buf.Reset()
	WriteGameTableWide(&buf, games)
	assert.Contains(t, buf.String(), "LAST_PLAYED")
	assert.Contains(t, buf.String(), "25%")
	assert.Contains(t, buf.String(), "2026-02-03T04:05:06Z")
}

func TestWriteAchievementTable(t *testing.T) {
	unlocked := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	achievements := []client.Achievement{
		{ID: "a1", Name: "First Steps", Unlocked: true, UnlockedAt: &unlocked, RarityPercent: 87.25, Points: 10},
		{ID: "a2", Name: "Completionist", Description: "Finish everything", Points: 100},
	}

	var buf bytes.Buffer
	WriteAchievementTable(&buf, achievements)
	out := buf.String()
	assert.Contains(t, out, "2026-01-02")
	assert.Contains(t, out, "87.2%")
	assert.Contains(t, out, "no")
	assert.NotContains(t, out, "Finish everything")

	buf.Reset()
	WriteAchievementTableWide(&buf, achievements)
	assert.Contains(t, buf.String(), "Finish everything")
}

func TestWriteLeaderboardTable(t *testing.T) {
	entries := []client.LeaderboardEntry{
		{Rank: 1, Player: "speedy", Score: 99000, Platform: "switch"},
		{Rank: 2, Player: "slowpoke", Score: 12},
	}

	var buf bytes.Buffer
	WriteLeaderboardTable(&buf, entries)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "RANK"))
	assert.Contains(t, lines[1], "speedy")
	assert.Contains(t, lines[1], "99000")

	buf.Reset()
	WriteLeaderboardTableWide(&buf, entries)
	assert.Contains(t, buf.String(), "switch")
}

func TestWriteEmptyTables(t *testing.T) {
	var buf bytes.Buffer
	WriteGameTable(&buf, nil)
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}
