package discord

import (
	"github.com/bwmarrin/discordgo"
)

func (b *Bot) isAdmin(i *discordgo.Interaction) bool {
	if i.Member == nil {
		return false
	}
	if _, ok := b.adminIDs[i.Member.User.ID]; ok {
		return true
	}
	return i.Member.Permissions&discordgo.PermissionAdministrator != 0
}

func (b *Bot) respondMessage(s *discordgo.Session, i *discordgo.Interaction, msg string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	if err := s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
			Flags:   flags,
		},
	}); err != nil {
		b.logger.Warn("respond to interaction %s failed: %v", i.ID, err)
	}
}

// deferResponse acknowledges slow work. Component interactions update the
// message they came from, everything else gets a new ephemeral reply.
func (b *Bot) deferResponse(s *discordgo.Session, i *discordgo.Interaction, update bool) {
	resp := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}
	if update {
		resp = &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredMessageUpdate}
	}
	if err := s.InteractionRespond(i, resp); err != nil {
		b.logger.Warn("defer interaction %s failed: %v", i.ID, err)
	}
}

func (b *Bot) editResponse(s *discordgo.Session, i *discordgo.Interaction, msg string, embeds []*discordgo.MessageEmbed, components []discordgo.MessageComponent) {
	if embeds == nil {
		embeds = []*discordgo.MessageEmbed{}
	}
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	if _, err := s.InteractionResponseEdit(i, &discordgo.WebhookEdit{
		Content:    &msg,
		Embeds:     &embeds,
		Components: &components,
	}); err != nil {
		b.logger.Warn("edit interaction %s failed: %v", i.ID, err)
	}
}

func (b *Bot) ensureAdmin(s *discordgo.Session, i *discordgo.Interaction, handler func(*discordgo.Session, *discordgo.Interaction)) {
	if !b.isAdmin(i) {
		b.respondMessage(s, i, msgNoPermission, true)
		return
	}
	handler(s, i)
}

func (b *Bot) ensureGuild(s *discordgo.Session, i *discordgo.Interaction, handler func(*discordgo.Session, *discordgo.Interaction)) {
	if i.GuildID == "" || i.Member == nil {
		b.respondMessage(s, i, msgGuildOnly, true)
		return
	}
	handler(s, i)
}
