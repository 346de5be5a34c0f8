package discord

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"kadan/internal/application"
	"kadan/internal/models"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) handleSetting(s *discordgo.Session, i *discordgo.Interaction) {
	opts := commandOptions(i)
	key := optionString(opts, "key")
	value := optionString(opts, "value")

	old, err := b.services.Settings.Update(b.ctx, i.GuildID, key, value, interactionUserID(i), optionString(opts, "reason"))
	switch {
	case errors.Is(err, application.ErrUnknownSetting), errors.Is(err, application.ErrInvalidSetting):
		b.respondMessage(s, i, "❌ 설정 값이 올바르지 않습니다: `"+key+"`", true)
		return
	case err != nil:
		b.logger.Error("update setting %s failed: %v", key, err)
		b.respondMessage(s, i, msgInternalError, true)
		return
	}

	prev := "없음"
	if old != nil {
		prev = *old
	}
	b.respondMessage(s, i, fmt.Sprintf("✅ `%s` 설정이 `%s` → `%s` (으)로 변경되었습니다.", key, prev, value), true)
}

func (b *Bot) handleRegisterGuild(s *discordgo.Session, i *discordgo.Interaction) {
	server := optionString(commandOptions(i), "server")
	if err := b.services.Settings.RegisterGuild(b.ctx, i.GuildID, server, interactionUserID(i)); err != nil {
		if errors.Is(err, application.ErrInvalidSetting) {
			b.respondMessage(s, i, "❌ 알 수 없는 서버입니다: `"+server+"`", true)
			return
		}
		b.logger.Error("register guild %s failed: %v", i.GuildID, err)
		b.respondMessage(s, i, msgInternalError, true)
		return
	}
	b.respondMessage(s, i, "✅ 이 디스코드 서버가 **"+server+"** 서버로 등록되었습니다.", true)
}

func (b *Bot) handleExport(s *discordgo.Session, i *discordgo.Interaction) {
	b.deferResponse(s, i, false)

	data, err := b.services.Reports.ExportWorkbook(b.ctx, i.GuildID)
	if err != nil {
		b.logger.Error("Export error: %v", err)
		b.editResponse(s, i, msgInternalError, nil, nil)
		return
	}

	content := "✅ 인증 정보 내보내기가 완료되었습니다."
	if _, err := s.InteractionResponseEdit(i, &discordgo.WebhookEdit{
		Content: &content,
		Files: []*discordgo.File{
			{Name: fmt.Sprintf("인증목록_%s.xlsx", time.Now().Format("20060102")), Reader: bytes.NewReader(data)},
		},
	}); err != nil {
		b.logger.Warn("send export failed: %v", err)
	}
}

func (b *Bot) handleBlockSheet(s *discordgo.Session, i *discordgo.Interaction) {
	b.deferResponse(s, i, false)

	url, err := b.services.Reports.SyncBlockSheet(b.ctx, i.GuildID)
	if errors.Is(err, application.ErrSheetNotConfigured) {
		b.editResponse(s, i, msgSheetNotConfigured, nil, nil)
		return
	}
	if err != nil {
		b.logger.Error("sync block sheet failed: %v", err)
		b.editResponse(s, i, msgInternalError, nil, nil)
		return
	}
	b.editResponse(s, i, "✅ 차단 목록이 동기화되었습니다.\n링크: "+url, nil, nil)
}

func (b *Bot) handleCleanup(s *discordgo.Session, i *discordgo.Interaction) {
	b.deferResponse(s, i, false)

	isMember := func(userID string) bool {
		time.Sleep(cleanupMemberDelay)
		return b.gateway.IsMember(b.ctx, i.GuildID, userID)
	}
	n, err := b.services.Accounts.Cleanup(b.ctx, i.GuildID, isMember, interactionUserID(i))
	if err != nil {
		b.logger.Error("cleanup of guild %s failed: %v", i.GuildID, err)
		b.editResponse(s, i, msgInternalError, nil, nil)
		return
	}
	if n == 0 {
		b.editResponse(s, i, "✅ 정리할 인증 기록이 없습니다.", nil, nil)
		return
	}
	b.editResponse(s, i, fmt.Sprintf("✅ 인증 정리가 완료되었습니다. (%d명)", n), nil, nil)
}

func (b *Bot) handleAccountCheck(s *discordgo.Session, i *discordgo.Interaction) {
	opts := commandOptions(i)
	member := opts["member"].UserValue(nil)
	nickname := optionString(opts, "nickname")

	b.deferResponse(s, i, false)
	check, err := b.services.Accounts.CheckNickname(b.ctx, i.GuildID, member.ID, nickname)
	if err != nil {
		b.editResponse(s, i, accountErrorMessage(err), nil, nil)
		if !isUserFacing(err) {
			b.logger.Error("account check for %s failed: %v", member.ID, err)
		}
		return
	}

	switch {
	case !check.Found:
		b.editResponse(s, i, fmt.Sprintf("❌ `%s` 은(는) <@%s> 님의 인증 계정 캐릭터 목록에 없습니다.", nickname, member.ID), nil, nil)
	case check.AuthType == models.AuthSecondary:
		b.editResponse(s, i, fmt.Sprintf("✅ `%s` 은(는) 해당 유저의 **부계정** 캐릭터 목록에 존재합니다.", nickname), nil, nil)
	default:
		b.editResponse(s, i, fmt.Sprintf("✅ `%s` 은(는) 해당 유저의 **본계정** 캐릭터 목록에 존재합니다.", nickname), nil, nil)
	}
}
