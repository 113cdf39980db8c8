package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/model"
)

// Supported destination formats. Anything else falls back to generic.
const (
	FormatGeneric = "generic"
	FormatSlack   = "slack"
	FormatDiscord = "discord"
)

// kindStyle is the color/emoji/title triple for one transition kind.
type kindStyle struct {
	hexColor string // slack attachment color
	decColor int    // discord embed color
	emoji    string
	title    string
}

var kindStyles = map[model.TransitionKind]kindStyle{
	model.KindEntered:   {"#dc3545", 0xdc3545, "🚨", "ALERT TRIGGERED"},
	model.KindActive:    {"#ffc107", 0xffc107, "⚠️", "STILL ALERTING"},
	model.KindRecovered: {"#28a745", 0x28a745, "✅", "RECOVERED"},
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Fields []slackField `json:"fields"`
	Footer string       `json:"footer"`
}

type slackMessage struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title     string         `json:"title"`
	Color     int            `json:"color"`
	Fields    []discordField `json:"fields"`
	Timestamp string         `json:"timestamp"`
}

type discordMessage struct {
	Embeds []discordEmbed `json:"embeds"`
}

// Format renders a notification request as the HTTP body for the given
// format tag. Pure and deterministic: identical input yields byte-identical
// output. Unknown tags render as generic, passing the payload through as
// structured JSON.
func Format(req *model.NotificationRequest, format string) ([]byte, error) {
	switch format {
	case FormatSlack:
		return json.Marshal(slackPayload(req))
	case FormatDiscord:
		return json.Marshal(discordPayload(req))
	default:
		return json.Marshal(req)
	}
}

func slackPayload(req *model.NotificationRequest) slackMessage {
	style := kindStyles[req.Kind]
	counterTitle, counterValue := counter(req)
	return slackMessage{
		Text: fmt.Sprintf("%s *%s* — %s", style.emoji, style.title, req.Alert.Metric),
		Attachments: []slackAttachment{{
			Color: style.hexColor,
			Fields: []slackField{
				{Title: "Metric", Value: req.Alert.Metric, Short: true},
				{Title: "Condition", Value: condition(req), Short: true},
				{Title: "Value", Value: displayValue(req), Short: true},
				{Title: "Tenant", Value: req.TenantID, Short: true},
				{Title: counterTitle, Value: counterValue, Short: true},
			},
			Footer: isoTime(req.Timestamp),
		}},
	}
}

func discordPayload(req *model.NotificationRequest) discordMessage {
	style := kindStyles[req.Kind]
	counterTitle, counterValue := counter(req)
	return discordMessage{
		Embeds: []discordEmbed{{
			Title: fmt.Sprintf("%s %s — %s", style.emoji, style.title, req.Alert.Metric),
			Color: style.decColor,
			Fields: []discordField{
				{Name: "Metric", Value: req.Alert.Metric, Inline: true},
				{Name: "Condition", Value: condition(req), Inline: true},
				{Name: "Value", Value: displayValue(req), Inline: true},
				{Name: "Tenant", Value: req.TenantID, Inline: true},
				{Name: counterTitle, Value: counterValue, Inline: true},
			},
			Timestamp: isoTime(req.Timestamp),
		}},
	}
}

// condition renders the alert rule, e.g. "> 80".
func condition(req *model.NotificationRequest) string {
	return fmt.Sprintf("%s %s", req.Alert.Condition, req.Alert.Threshold)
}

// displayValue renders the sample value, flagging synthetic breaches.
func displayValue(req *model.NotificationRequest) string {
	if req.Reason == model.ReasonMissingData {
		return model.MissingValue
	}
	return req.Value
}

// counter picks whichever consecutive counter is relevant to the
// transition kind.
func counter(req *model.NotificationRequest) (title, value string) {
	if req.Kind == model.KindRecovered {
		return "Consecutive recoveries", fmt.Sprintf("%d", req.ConsecutiveRecoveries)
	}
	return "Consecutive breaches", fmt.Sprintf("%d", req.ConsecutiveBreaches)
}

// isoTime formats a unix-seconds timestamp as ISO-8601 in UTC.
func isoTime(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}
