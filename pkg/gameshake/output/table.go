package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/gameshake/gameshake/pkg/gameshake/client"
)

// DecodeRecords unmarshals every record into T.
func DecodeRecords[T any](records []client.Record) ([]T, error) {
	out := make([]T, 0, len(records))
	for i, r := range records {
		var item T
		if err := json.Unmarshal(r, &item); err != nil {
			return nil, fmt.Errorf("failed to decode record %d: %w", i, err)
		}
		out = append(out, item)
	}
	return out, nil
}

func WriteGameTable(w io.Writer, games []client.Game) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tPLATFORM\tPLAYTIME\tACHIEVEMENTS")
	for _, g := range games {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", g.ID, g.Name, orDash(g.Platform), formatPlaytime(g.PlaytimeMinutes), formatProgress(g.AchievementsUnlocked, g.AchievementsTotal))
	}
	_ = tw.Flush()
}

func WriteGameTableWide(w io.Writer, games []client.Game) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tPLATFORM\tPLAYTIME\tACHIEVEMENTS\tCOMPLETION\tLAST_PLAYED")
	for _, g := range games {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", g.ID, g.Name, orDash(g.Platform), formatPlaytime(g.PlaytimeMinutes), formatProgress(g.AchievementsUnlocked, g.AchievementsTotal), formatPercent(g.AchievementsUnlocked, g.AchievementsTotal), formatTimePtr(g.LastPlayed))
	}
	_ = tw.Flush()
}

func WriteAchievementTable(w io.Writer, achievements []client.Achievement) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tUNLOCKED\tRARITY\tPOINTS")
	for _, a := range achievements {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", a.ID, a.Name, formatUnlocked(a), formatRarity(a.RarityPercent), a.Points)
	}
	_ = tw.Flush()
}

func WriteAchievementTableWide(w io.Writer, achievements []client.Achievement) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tUNLOCKED\tRARITY\tPOINTS\tDESCRIPTION")
	for _, a := range achievements {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", a.ID, a.Name, formatUnlocked(a), formatRarity(a.RarityPercent), a.Points, orDash(a.Description))
	}
	_ = tw.Flush()
}

func WriteLeaderboardTable(w io.Writer, entries []client.LeaderboardEntry) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RANK\tPLAYER\tSCORE\tRECORDED")
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", e.Rank, e.Player, e.Score, formatTimePtr(e.RecordedAt))
	}
	_ = tw.Flush()
}

func WriteLeaderboardTableWide(w io.Writer, entries []client.LeaderboardEntry) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RANK\tPLAYER\tSCORE\tPLATFORM\tRECORDED")
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", e.Rank, e.Player, e.Score, orDash(e.Platform), formatTimePtr(e.RecordedAt))
	}
	_ = tw.Flush()
}

func formatUnlocked(a client.Achievement) string {
	if !a.Unlocked {
		return "no"
	}
	if a.UnlockedAt == nil {
		return "yes"
	}
	return a.UnlockedAt.Format("2006-01-02")
}

func formatPlaytime(minutes int) string {
	if minutes <= 0 {
		return "-"
	}
	d := time.Duration(minutes) * time.Minute
	h := int(d.Hours())
	m := minutes - h*60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}

func formatProgress(unlocked, total int) string {
	if total <= 0 {
		return "-"
	}
	return strconv.Itoa(unlocked) + "/" + strconv.Itoa(total)
}

func formatPercent(unlocked, total int) string {
	if total <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", float64(unlocked)*100/float64(total))
}

func formatRarity(p float64) string {
	if p <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", p)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
