package client

import (
	"fmt"
	"net/url"
	"time"
)

// DefaultLeaderboard is used when no board name is given.
const DefaultLeaderboard = "global"

type Game struct {
	ID                   string     `json:"id" yaml:"id"`
	Name                 string     `json:"name" yaml:"name"`
	Platform             string     `json:"platform,omitempty" yaml:"platform,omitempty"`
	PlaytimeMinutes      int        `json:"playtime_minutes" yaml:"playtimeMinutes"`
	AchievementsUnlocked int        `json:"achievements_unlocked" yaml:"achievementsUnlocked"`
	AchievementsTotal    int        `json:"achievements_total" yaml:"achievementsTotal"`
	LastPlayed           *time.Time `json:"last_played,omitempty" yaml:"lastPlayed,omitempty"`
}

type Achievement struct {
	ID            string     `json:"id" yaml:"id"`
	Name          string     `json:"name" yaml:"name"`
	Description   string     `json:"description,omitempty" yaml:"description,omitempty"`
	Unlocked      bool       `json:"unlocked" yaml:"unlocked"`
	UnlockedAt    *time.Time `json:"unlocked_at,omitempty" yaml:"unlockedAt,omitempty"`
	RarityPercent float64    `json:"rarity_percent" yaml:"rarityPercent"`
	Points        int        `json:"points" yaml:"points"`
}

type LeaderboardEntry struct {
	Rank       int        `json:"rank" yaml:"rank"`
	Player     string     `json:"player" yaml:"player"`
	Score      int64      `json:"score" yaml:"score"`
	Platform   string     `json:"platform,omitempty" yaml:"platform,omitempty"`
	RecordedAt *time.Time `json:"recorded_at,omitempty" yaml:"recordedAt,omitempty"`
}

func GamesPath() string {
	return "/v1/me/games"
}

func AchievementsPath(gameID string) (string, error) {
	if gameID == "" {
		return "", fmt.Errorf("game id is required")
	}
	return "/v1/me/games/" + url.PathEscape(gameID) + "/achievements", nil
}

func LeaderboardPath(gameID, board string) (string, error) {
	if gameID == "" {
		return "", fmt.Errorf("game id is required")
	}
	if board == "" {
		board = DefaultLeaderboard
	}
	return "/v1/games/" + url.PathEscape(gameID) + "/leaderboards/" + url.PathEscape(board) + "/entries", nil
}
