package discord

import (
	"errors"
	"fmt"
	"strconv"

	"kadan/internal/application"
	"kadan/internal/repository"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) handleAccountManage(s *discordgo.Session, i *discordgo.Interaction) {
	b.deferResponse(s, i, false)
	userID := interactionUserID(i)

	orphaned, err := b.services.Accounts.IsOrphaned(b.ctx, i.GuildID, userID)
	if err != nil {
		b.logger.Error("orphan check for %s failed: %v", userID, err)
		b.editResponse(s, i, msgInternalError, nil, nil)
		return
	}
	if orphaned {
		b.editResponse(s, i, "⚠️ 본계정 인증이 누락되어 있습니다.\n인증 정보를 초기화한 뒤 본계정 인증부터 다시 진행해주세요.", nil,
			[]discordgo.MessageComponent{actionsRow(discordgo.Button{Label: "인증 초기화", Style: discordgo.DangerButton, CustomID: idOrphanReset})})
		return
	}

	overview, err := b.services.Accounts.Overview(b.ctx, i.GuildID, userID)
	if err != nil {
		b.logger.Error("load accounts of %s failed: %v", userID, err)
		b.editResponse(s, i, msgInternalError, nil, nil)
		return
	}
	if overview.Primary == nil {
		b.editResponse(s, i, msgNotVerified, nil, nil)
		return
	}

	components := []discordgo.MessageComponent{actionsRow(
		discordgo.Button{Label: "✏️ 닉네임 변경", Style: discordgo.PrimaryButton, CustomID: idNicknameChange},
		discordgo.Button{Label: "전체 인증 삭제", Style: discordgo.DangerButton, CustomID: idAccountDelAll},
	)}
	if len(overview.Secondaries) > 0 {
		options := make([]discordgo.SelectMenuOption, 0, len(overview.Secondaries))
		for _, sub := range overview.Secondaries {
			options = append(options, discordgo.SelectMenuOption{
				Label: fmt.Sprintf("%d번 부계정: %s", sub.SubNumber, valueOr(sub.Nickname, "닉네임 없음")),
				Value: strconv.Itoa(sub.SubNumber),
			})
		}
		components = append(components, actionsRow(discordgo.SelectMenu{
			MenuType:    discordgo.StringSelectMenu,
			CustomID:    idAccountSubs,
			Placeholder: "삭제할 부계정 선택",
			Options:     options,
		}))
	}
	b.editResponse(s, i, "", []*discordgo.MessageEmbed{overviewEmbed(overview.Primary, overview.Secondaries)}, components)
}

func (b *Bot) handleSecondaryDelete(s *discordgo.Session, i *discordgo.Interaction) {
	values := i.MessageComponentData().Values
	if len(values) == 0 {
		b.respondMessage(s, i, msgSecondaryMissing, true)
		return
	}
	n, err := strconv.Atoi(values[0])
	if err != nil {
		b.respondMessage(s, i, msgSecondaryMissing, true)
		return
	}

	b.deferResponse(s, i, true)
	nick, err := b.services.Accounts.RemoveSecondary(b.ctx, i.GuildID, interactionUserID(i), n)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		b.editResponse(s, i, msgSecondaryMissing, nil, nil)
	case err != nil:
		b.logger.Error("remove secondary %d of %s failed: %v", n, interactionUserID(i), err)
		b.editResponse(s, i, "❌ `"+strconv.Itoa(n)+"`번 부계정 삭제 중 오류가 발생했습니다.", nil, nil)
	default:
		b.editResponse(s, i, "✅ `"+nick+"` 부계정이 성공적으로 삭제되었습니다.", nil, nil)
	}
}

func (b *Bot) handleDeleteAllPrompt(s *discordgo.Session, i *discordgo.Interaction) {
	if err := s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content: msgDeleteAllWarning,
			Embeds:  []*discordgo.MessageEmbed{},
			Components: []discordgo.MessageComponent{actionsRow(
				discordgo.Button{Label: "삭제", Style: discordgo.DangerButton, CustomID: idAccountDelYes},
			)},
		},
	}); err != nil {
		b.logger.Warn("delete prompt failed: %v", err)
	}
}

func (b *Bot) handleDeleteAll(s *discordgo.Session, i *discordgo.Interaction) {
	b.deferResponse(s, i, true)
	userID := interactionUserID(i)
	removed, err := b.services.Accounts.RemoveAll(b.ctx, i.GuildID, userID, application.CauseUserRequest, userID)
	if err != nil {
		b.logger.Error("remove all accounts of %s failed: %v", userID, err)
		b.editResponse(s, i, msgInternalError, nil, nil)
		return
	}
	if removed.Empty() {
		b.editResponse(s, i, msgNothingRemoved, nil, nil)
		return
	}
	b.editResponse(s, i, msgAllRemoved, nil, nil)
}

func (b *Bot) handleOrphanReset(s *discordgo.Session, i *discordgo.Interaction) {
	b.deferResponse(s, i, true)
	userID := interactionUserID(i)
	if _, err := b.services.Accounts.ResetOrphaned(b.ctx, i.GuildID, userID); err != nil {
		b.logger.Error("reset orphaned records of %s failed: %v", userID, err)
		b.editResponse(s, i, msgInternalError, nil, nil)
		return
	}
	b.editResponse(s, i, msgOrphanReset, nil, nil)
}

func (b *Bot) handleNicknameOptions(s *discordgo.Session, i *discordgo.Interaction) {
	b.deferResponse(s, i, true)
	roster, err := b.services.Accounts.NicknameOptions(b.ctx, i.GuildID, interactionUserID(i))
	if err != nil {
		b.editResponse(s, i, accountErrorMessage(err), nil, nil)
		if !isUserFacing(err) {
			b.logger.Error("nickname options for %s failed: %v", interactionUserID(i), err)
		}
		return
	}
	if len(roster) == 0 {
		b.editResponse(s, i, msgNicknameNotRoster, nil, nil)
		return
	}

	options := make([]discordgo.SelectMenuOption, 0, len(roster))
	for _, c := range roster {
		if len(options) == maxSelectOptions {
			break
		}
		options = append(options, discordgo.SelectMenuOption{Label: c.Name, Value: c.Name, Description: c.ClassName + " · " + c.ItemAvgLevel})
	}
	b.editResponse(s, i, "✏️ 변경할 닉네임을 선택해주세요.", nil, []discordgo.MessageComponent{actionsRow(discordgo.SelectMenu{
		MenuType:    discordgo.StringSelectMenu,
		CustomID:    idNicknameSelect,
		Placeholder: "닉네임 선택",
		Options:     options,
	})})
}

func (b *Bot) handleNicknameSelect(s *discordgo.Session, i *discordgo.Interaction) {
	values := i.MessageComponentData().Values
	if len(values) == 0 {
		b.respondMessage(s, i, "⚠️ 닉네임을 먼저 선택해주세요.", true)
		return
	}

	b.deferResponse(s, i, true)
	prev, err := b.services.Accounts.ChangeNickname(b.ctx, i.GuildID, interactionUserID(i), values[0])
	if err != nil {
		b.editResponse(s, i, accountErrorMessage(err), nil, nil)
		if !isUserFacing(err) {
			b.logger.Error("change nickname of %s failed: %v", interactionUserID(i), err)
		}
		return
	}
	b.editResponse(s, i, fmt.Sprintf("✅ 닉네임 변경 완료: `%s` → `%s`", prev, values[0]), nil, nil)
}

func accountErrorMessage(err error) string {
	switch {
	case errors.Is(err, application.ErrNotVerified):
		return msgNotVerified
	case errors.Is(err, application.ErrNicknameUnchanged):
		return msgNicknameUnchanged
	case errors.Is(err, application.ErrNicknameNotInRoster):
		return msgNicknameNotRoster
	case errors.Is(err, application.ErrProfileUnavailable):
		return msgProfileUnavailable
	case errors.Is(err, application.ErrGuildNotRegistered):
		return msgGuildNotRegistered
	}
	return msgInternalError
}

func isUserFacing(err error) bool {
	return accountErrorMessage(err) != msgInternalError
}
