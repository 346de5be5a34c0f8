package discord

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

func customID(parts ...string) string {
	return strings.Join(parts, customIDSeparator)
}

// splitCustomID returns the component prefix and the remaining argument.
func splitCustomID(id string) (string, string) {
	prefix, arg, _ := strings.Cut(id, customIDSeparator)
	return prefix, arg
}

func encodeIDs(ids []int) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.Itoa(id))
	}
	return strings.Join(parts, ",")
}

func decodeIDs(raw string) []int {
	var ids []int
	for _, p := range strings.Split(raw, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err == nil && id > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

func interactionUserID(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func commandOptions(i *discordgo.Interaction) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption)
	for _, opt := range i.ApplicationCommandData().Options {
		out[opt.Name] = opt
	}
	return out
}

func optionString(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if opt, ok := opts[name]; ok {
		return strings.TrimSpace(opt.StringValue())
	}
	return ""
}

// modalValue finds a text input by custom id in a submitted modal.
func modalValue(data discordgo.ModalSubmitInteractionData, id string) string {
	for _, row := range data.Components {
		actions, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, c := range actions.Components {
			if input, ok := c.(*discordgo.TextInput); ok && input.CustomID == id {
				return strings.TrimSpace(input.Value)
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func actionsRow(components ...discordgo.MessageComponent) discordgo.ActionsRow {
	return discordgo.ActionsRow{Components: components}
}
