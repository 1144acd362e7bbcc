// internal/rules/rules.go
package rules

import (
	"fmt"

	appErrors "github.com/unclebandit/reachline-backend/internal/errors"
	"github.com/unclebandit/reachline-backend/internal/model"
)

// ChannelRule is an immutable catalogue entry describing the legal and
// technical constraints of one channel type. Loaded at process start,
// never mutated at runtime.
type ChannelRule struct {
	Channel                  string   `json:"channel"`
	MaxMessageLength         int      `json:"max_message_length"`
	MaxButtons               int      `json:"max_buttons"`
	SupportsButtons          bool     `json:"supports_buttons"`
	HasMessagingWindow       bool     `json:"has_messaging_window"`
	MessagingWindowHours     int      `json:"messaging_window_hours"`
	RequiresTemplateApproval bool     `json:"requires_template_approval"`
	SupportedCampaignTypes   []string `json:"supported_campaign_types"`
	Warnings                 []string `json:"warnings"`
}

// ValidationResult separates fatal violations from non-fatal warnings.
type ValidationResult struct {
	OK         bool     `json:"ok"`
	Violations []string `json:"violations"`
	Warnings   []string `json:"warnings"`
}

var catalogue = map[string]ChannelRule{
	"instagram": {
		Channel:                "instagram",
		MaxMessageLength:       1000,
		MaxButtons:             3,
		SupportsButtons:        true,
		HasMessagingWindow:     true,
		MessagingWindowHours:   24,
		SupportedCampaignTypes: []string{"broadcast", "evergreen"},
		Warnings: []string{
			"Messages can only be sent to contacts active within the last 24 hours",
		},
	},
	"messenger": {
		Channel:                "messenger",
		MaxMessageLength:       2000,
		MaxButtons:             3,
		SupportsButtons:        true,
		HasMessagingWindow:     true,
		MessagingWindowHours:   24,
		SupportedCampaignTypes: []string{"broadcast", "evergreen"},
		Warnings: []string{
			"Messages can only be sent to contacts active within the last 24 hours",
		},
	},
	"whatsapp": {
		Channel:                  "whatsapp",
		MaxMessageLength:         4096,
		MaxButtons:               3,
		SupportsButtons:          true,
		HasMessagingWindow:       true,
		MessagingWindowHours:     24,
		RequiresTemplateApproval: true,
		SupportedCampaignTypes:   []string{"broadcast", "evergreen"},
		Warnings: []string{
			"Broadcasts outside the 24-hour window require an approved template",
		},
	},
	"telegram": {
		Channel:                "telegram",
		MaxMessageLength:       4096,
		MaxButtons:             8,
		SupportsButtons:        true,
		SupportedCampaignTypes: []string{"broadcast", "evergreen"},
	},
	"sms": {
		Channel:                "sms",
		MaxMessageLength:       1600,
		SupportsButtons:        false,
		SupportedCampaignTypes: []string{"broadcast"},
		Warnings: []string{
			"Messages over 160 characters are billed as multiple segments",
		},
	},
}

// Get returns the rule for a channel type.
func Get(channel string) (ChannelRule, error) {
	rule, ok := catalogue[channel]
	if !ok {
		return ChannelRule{}, appErrors.NewUnknownChannel(channel)
	}
	return rule, nil
}

// List returns the full catalogue for the rules endpoint.
func List() []ChannelRule {
	out := make([]ChannelRule, 0, len(catalogue))
	for _, ch := range []string{"instagram", "messenger", "whatsapp", "telegram", "sms"} {
		out = append(out, catalogue[ch])
	}
	return out
}

// ValidateContent checks content blocks against the channel's constraints.
// Length and button violations are fatal; template approval is a warning.
// Pure function, no side effects.
func ValidateContent(channel string, blocks []model.ContentBlock) (ValidationResult, error) {
	rule, err := Get(channel)
	if err != nil {
		return ValidationResult{}, err
	}

	result := ValidationResult{OK: true}
	for i, block := range blocks {
		if len(block.Text) > rule.MaxMessageLength {
			result.Violations = append(result.Violations, fmt.Sprintf(
				"block %d: message length %d exceeds %s limit of %d characters",
				i+1, len(block.Text), rule.Channel, rule.MaxMessageLength))
		}
		if len(block.Buttons) > 0 {
			if !rule.SupportsButtons {
				result.Violations = append(result.Violations, fmt.Sprintf(
					"block %d: %s does not support buttons", i+1, rule.Channel))
			} else if len(block.Buttons) > rule.MaxButtons {
				result.Violations = append(result.Violations, fmt.Sprintf(
					"block %d: %d buttons exceeds %s limit of %d",
					i+1, len(block.Buttons), rule.Channel, rule.MaxButtons))
			}
		}
	}

	if rule.RequiresTemplateApproval {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s requires an approved message template for sends outside the messaging window", rule.Channel))
	}

	result.OK = len(result.Violations) == 0
	return result, nil
}
