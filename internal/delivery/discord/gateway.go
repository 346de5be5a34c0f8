package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"kadan/internal/application"
	"kadan/internal/models"

	"github.com/bwmarrin/discordgo"
)

// Gateway performs guild side effects on behalf of the application layer:
// member edits, dispute tickets and audit posts.
type Gateway struct {
	session  *discordgo.Session
	settings application.SettingsService
	logger   application.Logger
}

func NewGateway(session *discordgo.Session, settings application.SettingsService, logger application.Logger) *Gateway {
	return &Gateway{session: session, settings: settings, logger: logger}
}

func (g *Gateway) GrantRole(ctx context.Context, guildID, userID, roleID string) error {
	return g.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx))
}

func (g *Gateway) RevokeRole(ctx context.Context, guildID, userID, roleID string) error {
	err := g.session.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx))
	if isNotFound(err) {
		return nil
	}
	return err
}

func (g *Gateway) SetNickname(ctx context.Context, guildID, userID, nickname string) error {
	err := g.session.GuildMemberNickname(guildID, userID, truncate(nickname, 32), discordgo.WithContext(ctx))
	if isNotFound(err) {
		return nil
	}
	return err
}

func (g *Gateway) RemoveMember(ctx context.Context, guildID, userID string, ban bool, reason string) error {
	if ban {
		return g.session.GuildBanCreateWithReason(guildID, userID, reason, 0, discordgo.WithContext(ctx))
	}
	err := g.session.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx))
	if isNotFound(err) {
		return nil
	}
	return err
}

// IsMember reports whether the user is still in the guild. Lookup errors
// other than "unknown member" count as membership.
func (g *Gateway) IsMember(ctx context.Context, guildID, userID string) bool {
	_, err := g.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	return err == nil || !isNotFound(err)
}

// OpenDispute creates a private channel under the ticket category that the
// user and admins can see, listing the blocks with an unblock button.
func (g *Gateway) OpenDispute(ctx context.Context, d models.Dispute) error {
	settings, err := g.settings.GuildSettings(ctx, d.GuildID)
	if err != nil {
		return err
	}

	channel, err := g.session.GuildChannelCreateComplex(d.GuildID, discordgo.GuildChannelCreateData{
		Name:     ticketChannelPrefix + d.UserID,
		Type:     discordgo.ChannelTypeGuildText,
		ParentID: settings[models.SettingTicketCategory],
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			{ID: d.GuildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
			{
				ID:    d.UserID,
				Type:  discordgo.PermissionOverwriteTypeMember,
				Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory,
			},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to create ticket channel: %w", err)
	}

	ids := make([]int, 0, len(d.Blocks))
	for _, b := range d.Blocks {
		ids = append(ids, b.ID)
	}
	msg := &discordgo.MessageSend{
		Content: mentionOr(d.UserID),
		Embeds:  []*discordgo.MessageEmbed{disputeEmbed(d)},
	}
	if len(ids) > 0 {
		msg.Components = []discordgo.MessageComponent{actionsRow(discordgo.Button{
			Label:    "차단 해제 (관리자)",
			Style:    discordgo.DangerButton,
			CustomID: truncate(customID(idBlockUnblock, encodeIDs(ids)), 100),
		})}
	}
	if _, err := g.session.ChannelMessageSendComplex(channel.ID, msg, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to post ticket message: %w", err)
	}

	if logChannel := settings[models.SettingTicketLogChannel]; logChannel != "" {
		text := fmt.Sprintf("🎫 %s 님의 이의제기 채널이 생성되었습니다: <#%s>", mentionOr(d.UserID), channel.ID)
		if _, err := g.session.ChannelMessageSend(logChannel, text, discordgo.WithContext(ctx)); err != nil {
			g.logger.Warn("post ticket log for %s failed: %v", d.UserID, err)
		}
	}
	return nil
}

// Notify posts an audit embed. Block and unblock events go to the blocked
// channel of every registered guild, the rest to the origin guild's log.
func (g *Gateway) Notify(ctx context.Context, ev models.Event) error {
	embed := eventEmbed(ev)

	if ev.Kind == models.EventBlocked || ev.Kind == models.EventUnblocked {
		guilds, err := g.settings.GuildIDs(ctx)
		if err != nil {
			return err
		}
		var errs []error
		for _, guildID := range guilds {
			channel, _, _ := g.settings.Get(ctx, guildID, models.SettingBlockedChannel)
			if channel == "" {
				continue
			}
			if _, err := g.session.ChannelMessageSendEmbed(channel, embed, discordgo.WithContext(ctx)); err != nil {
				errs = append(errs, fmt.Errorf("guild %s: %w", guildID, err))
			}
		}
		return errors.Join(errs...)
	}

	channel, _, err := g.settings.Get(ctx, ev.GuildID, models.SettingVerifyLogChannel)
	if err != nil || channel == "" {
		return err
	}
	_, err = g.session.ChannelMessageSendEmbed(channel, embed, discordgo.WithContext(ctx))
	return err
}

func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	return errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}
