package discord

import (
	"fmt"
	"strings"

	"kadan/internal/application"
	"kadan/internal/models"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) handleBlock(s *discordgo.Session, i *discordgo.Interaction) {
	opts := commandOptions(i)
	req := application.BlockRequest{
		GuildID: i.GuildID,
		Reason:  optionString(opts, "reason"),
		ActorID: interactionUserID(i),
		Removal: application.RemovalAction(optionString(opts, "action")),
	}

	switch i.ApplicationCommandData().Name {
	case cmdBlockID:
		req.Kind = models.AttrDiscordID
		req.Value = optionString(opts, "discord_id")
	case cmdBlockMember:
		req.Kind = models.AttrDiscordID
		if opt, ok := opts["member"]; ok {
			req.Value = opt.UserValue(nil).ID
		}
	case cmdBlockNickname:
		req.Kind = models.AttrNickname
		req.Value = optionString(opts, "nickname")
	}
	if req.Value == "" {
		b.respondMessage(s, i, "⚠️ 차단할 데이터가 없습니다.", true)
		return
	}

	b.deferResponse(s, i, false)
	res, err := b.services.Blocks.BlockUser(b.ctx, req)
	if err != nil {
		b.logger.Error("block %s=%s failed: %v", req.Kind, req.Value, err)
		b.editResponse(s, i, msgInternalError, nil, nil)
		return
	}

	var sb strings.Builder
	if len(res.Newly) > 0 {
		sb.WriteString("✅ 새로 차단된 정보:\n")
		sb.WriteString(candidateLines(res.Newly))
	}
	if len(res.Already) > 0 {
		sb.WriteString("⚠️ 이미 차단된 정보:\n")
		sb.WriteString(candidateLines(res.Already))
	}
	if len(res.AffectedUsers) > 0 {
		fmt.Fprintf(&sb, "\n인증 정보가 삭제된 유저: %d명", len(res.AffectedUsers))
	}
	b.editResponse(s, i, truncate(sb.String(), 2000), nil, nil)
}

func (b *Bot) handleUnblock(s *discordgo.Session, i *discordgo.Interaction, rawIDs string) {
	ids := decodeIDs(rawIDs)
	if len(ids) == 0 {
		b.respondMessage(s, i, msgNothingToUnblock, true)
		return
	}

	b.deferResponse(s, i, true)
	released, err := b.services.Blocks.UnblockByIDs(b.ctx, i.GuildID, ids, interactionUserID(i))
	if err != nil {
		b.logger.Error("unblock %v failed: %v", ids, err)
		b.editResponse(s, i, msgInternalError, nil, nil)
		return
	}
	if len(released) == 0 {
		b.editResponse(s, i, msgNothingToUnblock, nil, nil)
		return
	}
	b.editResponse(s, i, fmt.Sprintf("✅ %d개의 차단 항목이 해제되었습니다. (해제자: <@%s>)", len(released), interactionUserID(i)), nil, nil)
}
