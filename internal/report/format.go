package report

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pingsantohq/dailyping/pkg/types"
)

// Discord embed limits, in characters.
const (
	MaxTitleLen       = 256
	MaxDescriptionLen = 4096
	MaxFieldValueLen  = 1024
	MaxFooterLen      = 2048
)

const (
	timeOfDayLayout = "15:04:05"
	ellipsis        = "..."
)

// Meta describes where a report came from.
type Meta struct {
	Target      string
	TargetLabel string
	Source      string
	Interval    time.Duration
	InstanceID  string
	Hostname    string
}

func (m Meta) targetText() string {
	if m.TargetLabel == "" {
		return m.Target
	}
	return fmt.Sprintf("%s (%s)", m.TargetLabel, m.Target)
}

// Webhook renders the report as a webhook message with a single embed. The
// report itself is left untouched.
func Webhook(r types.DailyReport, meta Meta) types.WebhookMessage {
	severity := SeverityFor(r.SuccessRate)

	embed := types.Embed{
		Title: truncate("🌐 Ping Monitor daily report", MaxTitleLen),
		Description: truncate(fmt.Sprintf("**Date**: %s\n**Target**: %s\n**Source**: %s",
			r.Date, meta.targetText(), meta.Source), MaxDescriptionLen),
		Color: severity.Color(),
		Fields: []types.EmbedField{
			{
				Name: "📊 Latency",
				Value: truncate(fmt.Sprintf("**Avg**: %.1fms\n**Max**: %.1fms\n**Min**: %.1fms",
					r.AvgLatencyMillis, r.MaxLatencyMillis, r.MinLatencyMillis), MaxFieldValueLen),
				Inline: true,
			},
			{
				Name: "📈 Reachability",
				Value: truncate(fmt.Sprintf("**Success rate**: %.2f%%\n**Successes**: %d\n**Failures**: %d",
					r.SuccessRate, r.SuccessCount, r.FailureCount), MaxFieldValueLen),
				Inline: true,
			},
			{
				Name: "⏱️ Monitoring",
				Value: truncate(fmt.Sprintf("**Total pings**: %d\n**Interval**: %s\n**Status**: %s",
					r.TotalProbes, meta.Interval, severity), MaxFieldValueLen),
				Inline: true,
			},
		},
		Footer: &types.EmbedFooter{Text: truncate(footerText(meta), MaxFooterLen)},
	}
	if !r.GeneratedAt.IsZero() {
		embed.Timestamp = r.GeneratedAt.Format(time.RFC3339)
	}

	if r.FailureCount > 0 {
		embed.Fields = append(embed.Fields, types.EmbedField{
			Name:   "⚠️ Unreachable at",
			Value:  truncate(UnreachableList(r, "\n"), MaxFieldValueLen),
			Inline: false,
		})
	}

	return types.WebhookMessage{Embeds: []types.Embed{embed}}
}

func footerText(meta Meta) string {
	parts := []string{"dailyping"}
	if meta.Hostname != "" {
		parts = append(parts, meta.Hostname)
	}
	if meta.InstanceID != "" {
		parts = append(parts, "run "+meta.InstanceID)
	}
	return strings.Join(parts, " · ")
}

// UnreachableList renders the listed unreachable times, one per line, with a
// trailing overflow note.
func UnreachableList(r types.DailyReport, sep string) string {
	if len(r.UnreachableTimes) == 0 {
		return "none"
	}
	lines := make([]string, 0, len(r.UnreachableTimes)+1)
	for _, ts := range r.UnreachableTimes {
		lines = append(lines, ts.Format(timeOfDayLayout))
	}
	if r.UnreachableOverflow > 0 {
		lines = append(lines, fmt.Sprintf("... and %d more", r.UnreachableOverflow))
	}
	return strings.Join(lines, sep)
}

// Console renders the plain-text report printed when the webhook is not used.
func Console(r types.DailyReport, meta Meta) string {
	rule := strings.Repeat("=", 50)

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n", rule)
	fmt.Fprintf(&b, "📊 Ping Monitor daily report - %s\n", r.Date)
	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "Target: %s\n", meta.targetText())
	fmt.Fprintf(&b, "Source: %s\n", meta.Source)

	if r.SuccessCount > 0 {
		fmt.Fprintf(&b, "\n📊 Latency:\n")
		fmt.Fprintf(&b, "  Avg: %.1fms\n", r.AvgLatencyMillis)
		fmt.Fprintf(&b, "  Max: %.1fms\n", r.MaxLatencyMillis)
		fmt.Fprintf(&b, "  Min: %.1fms\n", r.MinLatencyMillis)
	}

	fmt.Fprintf(&b, "\n📈 Reachability:\n")
	fmt.Fprintf(&b, "  Success rate: %.2f%% (%s)\n", r.SuccessRate, SeverityFor(r.SuccessRate))
	fmt.Fprintf(&b, "  Successes: %d\n", r.SuccessCount)
	fmt.Fprintf(&b, "  Failures: %d\n", r.FailureCount)
	fmt.Fprintf(&b, "  Total pings: %d\n", r.TotalProbes)

	if r.FailureCount > 0 {
		fmt.Fprintf(&b, "\n⚠️ Unreachable at:\n")
		fmt.Fprintf(&b, "  %s\n", UnreachableList(r, "\n  "))
	}

	fmt.Fprintf(&b, "%s\n\n", rule)
	return b.String()
}

// truncate shortens s to at most limit runes, ending with an ellipsis.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit <= len(ellipsis) {
		return string([]rune(s)[:limit])
	}
	runes := []rune(s)
	return string(runes[:limit-len(ellipsis)]) + ellipsis
}
