package discord

import (
	"fmt"
	"strings"

	"kadan/internal/application"
	"kadan/internal/models"

	"github.com/bwmarrin/discordgo"
)

const (
	msgNoPermission       = "❌ 관리자만 사용할 수 있는 명령어입니다."
	msgGuildOnly          = "❌ 서버에서만 사용할 수 있습니다."
	msgInvalidLink        = "❌ 마이페이지 링크 형식이 올바르지 않습니다.\n예시: `https://profile.onstove.com/ko/123456789`"
	msgSessionGone        = "❌ 인증 세션이 만료되었습니다. 처음부터 다시 진행해주세요."
	msgProfileUnavailable = "⚠️ 전투정보실 조회에 실패했습니다. 잠시 후 다시 확인 버튼을 눌러주세요."
	msgNicknameNotRoster  = "❌ 선택할 수 있는 캐릭터를 찾지 못했습니다. 다시 인증을 진행해 주세요."
	msgAlreadyRegistered  = "❌ 이미 인증된 계정입니다. 인증 계정 설정 혹은 부계정 인증을 진행해주세요."
	msgInternalError      = "❌ 처리 중 오류가 발생했습니다. 잠시 후 다시 시도해주세요."
	msgVerifyCancelled    = "⛔ 인증이 취소되었습니다."
	msgNotSessionOwner    = "❌ 본인이 시작한 인증만 진행할 수 있습니다."
	msgGuildNotRegistered = "⚠️ 서버 등록이 되어 있지 않습니다. 관리자에게 `/서버등록`을 요청해주세요."
	msgNotVerified        = "❌ 먼저 본계정 인증을 완료해 주세요."
	msgNicknameUnchanged  = "⚠️ 기존 닉네임과 동일합니다."
	msgNoSecondaries      = "❌ 등록된 부계정이 없습니다."
	msgSecondaryMissing   = "❌ 삭제할 부계정 정보를 찾을 수 없습니다."
	msgAllRemoved         = "✅ 본계정 및 모든 부계정 인증이 삭제되었습니다."
	msgNothingRemoved     = "⚠️ 인증 내역을 찾을 수 없습니다."
	msgOrphanReset        = "✅ 인증 정보를 초기화했습니다. 본계정 인증부터 다시 진행해주세요."
	msgNothingToUnblock   = "⚠️ 해제할 차단 항목이 없습니다."
	msgSheetNotConfigured = "❌ 구글 시트 연동이 설정되어 있지 않습니다."
	msgDeleteAllWarning   = "⚠️ **본 계정**을 삭제하시면 **부계정을 포함한 모든 인증 정보가 삭제됩니다.**\n정말 삭제하시겠습니까?"
)

// rejectionMessage renders why a verification attempt was refused.
func rejectionMessage(rej *models.Rejection, region string) string {
	if rej == nil {
		return msgInternalError
	}
	switch rej.Reason {
	case models.RejectAPIUnavailable:
		return "❌ 전투정보실에서 계정 정보를 불러오지 못했습니다. 링크를 확인하고 잠시 후 다시 시도해주세요."
	case models.RejectInsufficientCharacters:
		if region == "" {
			return "❌ 이 계정에는 캐릭터가 2개 이상 있어야 인증이 가능합니다."
		}
		return fmt.Sprintf("❌ 이 계정에는 **%s 서버 캐릭터**가 2개 이상 있어야 인증이 가능합니다.", region)
	case models.RejectDuplicate:
		return "❌ 이미 다른 유저가 인증한 계정 또는 캐릭터입니다.\n" + duplicateLines(rej.Duplicates)
	case models.RejectDuplicateSub:
		return "❌ 이미 등록된 계정입니다.\n" + duplicateLines(rej.Duplicates)
	case models.RejectItemLevel:
		return fmt.Sprintf("⚠️ 아이템 레벨 조건을 충족하지 못했습니다.\n최소 요구 레벨: **%.2f** / 최고 레벨: **%.2f**",
			rej.MinItemLevel, rej.MaxItemLevel)
	case models.RejectBlocked:
		return "⛔ 차단된 정보가 확인되어 인증할 수 없습니다.\n이의제기 채널이 생성되었습니다.\n\n" + blockLines(rej.Blocks)
	case models.RejectAlreadyVerified:
		return msgAlreadyRegistered
	case models.RejectPrimaryRequired:
		return "❌ 먼저 본계정 인증을 완료해야 부계정 인증이 가능합니다."
	case models.RejectGuildNotRegistered:
		return msgGuildNotRegistered
	case models.RejectSecondaryLimit:
		if rej.Limit <= 0 {
			return "⚠️ 이 서버는 부계정 인증을 사용하지 않습니다."
		}
		return fmt.Sprintf("⚠️ 최대 부계정 수(%d)를 초과하여 등록할 수 없습니다.", rej.Limit)
	}
	return msgInternalError
}

func duplicateLines(matches []models.DuplicateMatch) string {
	var sb strings.Builder
	for _, m := range matches {
		label := "본계정"
		if m.Table == models.TableSecondary {
			label = "부계정"
		}
		fmt.Fprintf(&sb, "- %s `%s` (<@%s>)\n", label, m.Nickname, m.DiscordUserID)
	}
	return sb.String()
}

func blockLines(blocks []models.BlockedAttribute) string {
	if len(blocks) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("**차단 내역:**\n")
	for _, b := range blocks {
		fmt.Fprintf(&sb, "- %s `%s` (사유:%s, 차단자:%s)\n", kindLabel(b.Kind), b.Value, valueOr(b.Reason, "-"), mentionOr(b.BlockedBy))
	}
	return sb.String()
}

func candidateLines(candidates []models.BlockCandidate) string {
	var sb strings.Builder
	for _, c := range candidates {
		fmt.Fprintf(&sb, "- %s `%s`\n", kindLabel(c.Kind), c.Value)
	}
	return sb.String()
}

func kindLabel(k models.AttributeKind) string {
	switch k {
	case models.AttrDiscordID:
		return "디스코드ID"
	case models.AttrAccountRef:
		return "memberNo"
	case models.AttrNickname:
		return "닉네임"
	}
	return string(k)
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func mentionOr(id string) string {
	if id == "" {
		return "-"
	}
	return "<@" + id + ">"
}

func challengeEmbed(sess models.VerificationSession) *discordgo.MessageEmbed {
	desc := fmt.Sprintf("1️⃣ 게임에 접속해 대표 캐릭터를 **%s** (으)로 변경해주세요.\n"+
		"2️⃣ 변경 후 아래 **확인** 버튼을 눌러주세요.\n\n현재 대표 캐릭터: `%s`", sess.Target, sess.CurrentMain)
	color := colorBlue
	if sess.ObservedMain != "" && sess.ObservedMain != sess.Target {
		desc += fmt.Sprintf("\n\n⚠️ 확인된 대표 캐릭터가 `%s` 입니다. 변경 후 다시 확인해주세요.", sess.ObservedMain)
		color = colorOrange
	}
	title := "본계정 인증"
	if sess.AuthType == models.AuthSecondary {
		title = "부계정 인증"
	}
	return &discordgo.MessageEmbed{Title: title, Description: desc, Color: color}
}

func overviewEmbed(primary *models.AccountLink, subs []models.SecondarySummary) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{Title: "⚙️ 인증 계정 관리", Color: colorBlue}
	if primary == nil {
		embed.Description = "본계정 인증 내역이 없습니다."
	} else {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "본계정", Value: "`" + primary.Nickname + "`"})
	}
	if len(subs) > 0 {
		lines := make([]string, 0, len(subs))
		for _, s := range subs {
			lines = append(lines, fmt.Sprintf("#%d `%s`", s.SubNumber, valueOr(s.Nickname, "닉네임 없음")))
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "부계정", Value: strings.Join(lines, "\n")})
	}
	return embed
}

// eventEmbed renders an audit event for the log channels.
func eventEmbed(ev models.Event) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{Color: colorGray}
	if !ev.At.IsZero() {
		embed.Timestamp = ev.At.Format("2006-01-02T15:04:05Z07:00")
	}
	user := mentionOr(ev.UserID)

	switch ev.Kind {
	case models.EventVerified:
		embed.Color = colorGreen
		if ev.AuthType == models.AuthSecondary {
			embed.Title = "✅ 부계정 인증 완료"
			embed.Description = fmt.Sprintf("%s 님이 **부계정 %d번**을 인증했습니다.", user, ev.SubNumber)
		} else {
			embed.Title = "✅ 본계정 인증 완료"
			embed.Description = fmt.Sprintf("%s 님이 본계정을 인증했습니다.", user)
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "닉네임", Value: ev.Nickname, Inline: true})
		if ev.Character != nil {
			embed.Fields = append(embed.Fields,
				&discordgo.MessageEmbedField{Name: "서버", Value: valueOr(ev.Character.ServerName, "-"), Inline: true},
				&discordgo.MessageEmbedField{Name: "직업", Value: valueOr(ev.Character.ClassName, "-"), Inline: true},
				&discordgo.MessageEmbedField{Name: "아이템 레벨", Value: valueOr(ev.Character.ItemAvgLevel, "-"), Inline: true})
		}

	case models.EventAccountsRemoved:
		embed.Color = colorOrange
		embed.Title = "🗑️ 인증 삭제"
		var lines []string
		if ev.Removed.PrimaryNickname != nil {
			lines = append(lines, "- 본계정 삭제: `"+*ev.Removed.PrimaryNickname+"`")
		}
		for _, s := range ev.Removed.Secondaries {
			lines = append(lines, fmt.Sprintf("- 부계정 삭제: #%d `%s`", s.SubNumber, s.Nickname))
		}
		embed.Description = fmt.Sprintf("%s 님의 인증 정보가 삭제되었습니다. (%s)\n%s", user, causeLabel(ev.Cause), strings.Join(lines, "\n"))

	case models.EventBlocked:
		embed.Color = colorRed
		embed.Title = "⛔ 차단"
		embed.Description = fmt.Sprintf("대상: %s\n차단자: %s\n사유: %s\n\n✅ 새로 차단된 정보:\n%s",
			user, mentionOr(ev.ActorID), valueOr(ev.Reason, "-"), truncate(candidateLines(ev.Blocked), 3500))

	case models.EventUnblocked:
		embed.Color = colorGreen
		embed.Title = "🔓 차단 해제"
		lines := make([]string, 0, len(ev.Unblocked))
		for _, b := range ev.Unblocked {
			lines = append(lines, fmt.Sprintf("- %s `%s`", kindLabel(b.Kind), b.Value))
		}
		embed.Description = fmt.Sprintf("✅ %d개의 차단 항목이 해제되었습니다. (해제자: %s)\n%s",
			len(ev.Unblocked), mentionOr(ev.ActorID), truncate(strings.Join(lines, "\n"), 3500))

	case models.EventNicknameChanged:
		embed.Color = colorBlue
		embed.Title = "✏️ 닉네임 변경"
		embed.Description = fmt.Sprintf("%s 님의 닉네임이 `%s` → `%s` (으)로 변경되었습니다.", user, ev.PreviousNickname, ev.Nickname)
	}
	return embed
}

func causeLabel(cause string) string {
	switch cause {
	case application.CauseUserRequest:
		return "본인 요청"
	case application.CauseMemberLeft:
		return "서버 퇴장"
	case application.CauseCleanup:
		return "인증 정리"
	case application.CauseBlocked:
		return "차단"
	case application.CauseOrphanReset:
		return "인증 초기화"
	}
	return cause
}

func disputeEmbed(d models.Dispute) *discordgo.MessageEmbed {
	label := "본계정"
	if d.AuthType == models.AuthSecondary {
		label = "부계정"
	}
	return &discordgo.MessageEmbed{
		Title: "⛔ 차단 인증 시도",
		Description: fmt.Sprintf("%s 님이 차단된 정보로 %s 인증을 시도했습니다.\n이의가 있다면 이 채널에 사유를 남겨주세요.\n\n%s",
			mentionOr(d.UserID), label, truncate(blockLines(d.Blocks), 3500)),
		Color: colorRed,
	}
}
