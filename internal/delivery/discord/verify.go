package discord

import (
	"errors"

	"kadan/internal/application"
	"kadan/internal/integration/lostark"
	"kadan/internal/models"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) handlePanel(s *discordgo.Session, i *discordgo.Interaction) {
	level := "1680"
	if v, ok, _ := b.services.Settings.Get(b.ctx, i.GuildID, models.SettingMainMinLevel); ok {
		level = v
	}
	embed := &discordgo.MessageEmbed{
		Title: panelTitle,
		Description: "전투정보실 대표 캐릭터 변경으로 계정 소유를 확인합니다.\n\n" +
			"• 아이템 레벨 **" + level + " 이상**\n" +
			"• 인증 과정에서 **대표 캐릭터 변경** 가능\n\n" +
			"1. 부계정은 반드시 본계정 인증을 완료한 유저만 등록 가능합니다.\n" +
			"2. 인증 완료 시 닉네임에 **'| 부계정O'** 표시가 추가됩니다.",
		Color: colorBlue,
	}
	components := []discordgo.MessageComponent{actionsRow(
		discordgo.Button{Label: "본계정 인증", Style: discordgo.PrimaryButton, CustomID: customID(idVerifyStart, string(models.AuthPrimary))},
		discordgo.Button{Label: "부계정 인증", Style: discordgo.SecondaryButton, CustomID: customID(idVerifyStart, string(models.AuthSecondary))},
		discordgo.Button{Label: "인증 계정 관리", Style: discordgo.SecondaryButton, CustomID: idAccountManage},
	)}

	if _, err := s.ChannelMessageSendComplex(i.ChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
	}); err != nil {
		b.logger.Error("post panel in %s failed: %v", i.ChannelID, err)
		b.respondMessage(s, i, msgInternalError, true)
		return
	}
	b.respondMessage(s, i, "✅ 인증 패널을 게시했습니다.", true)
}

// handleVerifyStart opens the profile link form.
func (b *Bot) handleVerifyStart(s *discordgo.Session, i *discordgo.Interaction, authType string) {
	title := "본계정 인증 - 마이페이지 입력"
	if models.AuthType(authType) == models.AuthSecondary {
		title = "부계정 인증 - 마이페이지 입력"
	}
	err := s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: customID(idVerifyModal, authType),
			Title:    title,
			Components: []discordgo.MessageComponent{actionsRow(discordgo.TextInput{
				CustomID:    idProfileLink,
				Label:       "스토브 마이페이지 링크",
				Style:       discordgo.TextInputShort,
				Placeholder: "https://profile.onstove.com/ko/123456789",
				Required:    true,
				MaxLength:   100,
			})},
		},
	})
	if err != nil {
		b.logger.Warn("open verify modal failed: %v", err)
	}
}

func (b *Bot) handleVerifySubmit(s *discordgo.Session, i *discordgo.Interaction, authType string) {
	link := modalValue(i.ModalSubmitData(), idProfileLink)
	ref, ok := lostark.ParseProfileLink(link)
	if !ok {
		b.respondMessage(s, i, msgInvalidLink, true)
		return
	}

	b.deferResponse(s, i, false)
	sess, err := b.services.Verification.Start(b.ctx, application.StartRequest{
		GuildID:    i.GuildID,
		UserID:     interactionUserID(i),
		AuthType:   models.AuthType(authType),
		AccountRef: ref,
	})
	if err != nil {
		b.logger.Error("start verification for %s failed: %v", interactionUserID(i), err)
		b.editResponse(s, i, msgInternalError, nil, nil)
		return
	}
	b.renderSession(s, i, sess)
}

func (b *Bot) handleVerifyConfirm(s *discordgo.Session, i *discordgo.Interaction, sessionID string) {
	b.deferResponse(s, i, true)
	sess, err := b.services.Verification.ConfirmSwitch(b.ctx, sessionID, interactionUserID(i))
	if err != nil {
		b.renderVerifyError(s, i, sess, err)
		return
	}
	b.renderSession(s, i, sess)
}

func (b *Bot) handleVerifyCancel(s *discordgo.Session, i *discordgo.Interaction, sessionID string) {
	if err := b.services.Verification.Cancel(sessionID, interactionUserID(i)); errors.Is(err, application.ErrNotSessionOwner) {
		b.respondMessage(s, i, msgNotSessionOwner, true)
		return
	}
	if err := s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    msgVerifyCancelled,
			Embeds:     []*discordgo.MessageEmbed{},
			Components: []discordgo.MessageComponent{},
		},
	}); err != nil {
		b.logger.Warn("cancel response failed: %v", err)
	}
}

func (b *Bot) handleVerifyNickname(s *discordgo.Session, i *discordgo.Interaction, sessionID string) {
	values := i.MessageComponentData().Values
	if len(values) == 0 {
		b.respondMessage(s, i, "❌ 닉네임을 선택해주세요.", true)
		return
	}

	b.deferResponse(s, i, true)
	sess, err := b.services.Verification.SelectNickname(b.ctx, sessionID, interactionUserID(i), values[0])
	if err != nil {
		b.renderVerifyError(s, i, sess, err)
		return
	}
	b.renderSession(s, i, sess)
}

// renderSession shows the screen for the session's current state.
func (b *Bot) renderSession(s *discordgo.Session, i *discordgo.Interaction, sess models.VerificationSession) {
	switch sess.State {
	case models.StateRejected:
		region, _, _ := b.services.Settings.Get(b.ctx, sess.GuildID, models.SettingServer)
		b.editResponse(s, i, truncate(rejectionMessage(sess.Rejection, region), 2000), nil, nil)

	case models.StateAwaitingSwitch:
		b.editResponse(s, i, "", []*discordgo.MessageEmbed{challengeEmbed(sess)}, []discordgo.MessageComponent{actionsRow(
			discordgo.Button{Label: "확인", Style: discordgo.SuccessButton, CustomID: customID(idVerifyConfirm, sess.ID)},
			discordgo.Button{Label: "취소", Style: discordgo.DangerButton, CustomID: customID(idVerifyCancel, sess.ID)},
		)})

	case models.StateNicknameSelection:
		options := make([]discordgo.SelectMenuOption, 0, len(sess.Roster))
		for _, c := range sess.Roster {
			if len(options) == maxSelectOptions {
				break
			}
			options = append(options, discordgo.SelectMenuOption{
				Label:       c.Name,
				Value:       c.Name,
				Description: c.ClassName + " · " + c.ItemAvgLevel,
			})
		}
		b.editResponse(s, i, "✅ 대표 캐릭터 변경이 확인되었습니다. 사용할 닉네임을 선택해주세요.", nil,
			[]discordgo.MessageComponent{actionsRow(discordgo.SelectMenu{
				MenuType:    discordgo.StringSelectMenu,
				CustomID:    customID(idVerifyNickname, sess.ID),
				Placeholder: "닉네임 선택",
				Options:     options,
			})})

	case models.StatePersisted:
		msg := "✅ 닉네임 `" + sess.Nickname + "` 로 본계정 인증이 완료되었습니다!"
		if sess.AuthType == models.AuthSecondary {
			msg = "✅ `" + sess.Nickname + "` 부계정 인증이 완료되었습니다!"
		}
		b.editResponse(s, i, msg, nil, nil)

	default:
		b.editResponse(s, i, msgInternalError, nil, nil)
	}
}

func (b *Bot) renderVerifyError(s *discordgo.Session, i *discordgo.Interaction, sess models.VerificationSession, err error) {
	switch {
	case errors.Is(err, application.ErrSessionNotFound), errors.Is(err, application.ErrSessionExpired):
		b.editResponse(s, i, msgSessionGone, nil, nil)
	case errors.Is(err, application.ErrProfileUnavailable):
		b.renderSession(s, i, sess)
		if _, ferr := s.FollowupMessageCreate(i, false, &discordgo.WebhookParams{
			Content: msgProfileUnavailable,
			Flags:   discordgo.MessageFlagsEphemeral,
		}); ferr != nil {
			b.logger.Warn("followup failed: %v", ferr)
		}
	case errors.Is(err, application.ErrNotSessionOwner):
		if _, ferr := s.FollowupMessageCreate(i, false, &discordgo.WebhookParams{
			Content: msgNotSessionOwner,
			Flags:   discordgo.MessageFlagsEphemeral,
		}); ferr != nil {
			b.logger.Warn("followup failed: %v", ferr)
		}
	case errors.Is(err, application.ErrNicknameNotInRoster):
		b.editResponse(s, i, msgNicknameNotRoster, nil, nil)
	case errors.Is(err, application.ErrAlreadyRegistered), errors.Is(err, application.ErrSecondaryLimit):
		b.renderSession(s, i, sess)
	case errors.Is(err, application.ErrInvalidState):
		b.renderSession(s, i, sess)
	default:
		b.logger.Error("verification %s failed: %v", sess.ID, err)
		b.editResponse(s, i, msgInternalError, nil, nil)
	}
}
