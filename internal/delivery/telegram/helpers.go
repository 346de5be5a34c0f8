package telegram

import (
	"fmt"
	"strings"

	"kadan/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) isAdmin(id int64) bool {
	_, ok := b.adminIDs[id]
	return ok
}

func (b *Bot) sendMessage(chatID int64, text string) {
	if text == "" {
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.bot.Send(msg); err != nil {
		b.logger.Warn("telegram send to %d failed: %v", chatID, err)
	}
}

// formatAlert renders an event as plain text. Events moderators do not
// follow render as "".
func formatAlert(ev models.Event) string {
	switch ev.Kind {
	case models.EventBlocked:
		var sb strings.Builder
		fmt.Fprintf(&sb, "[차단] guild=%s user=%s by=%s\n사유: %s\n", ev.GuildID, ev.UserID, ev.ActorID, ev.Reason)
		for _, c := range ev.Blocked {
			fmt.Fprintf(&sb, "- %s: %s\n", c.Kind, c.Value)
		}
		return sb.String()
	case models.EventUnblocked:
		var sb strings.Builder
		fmt.Fprintf(&sb, "[차단 해제] guild=%s by=%s\n", ev.GuildID, ev.ActorID)
		for _, u := range ev.Unblocked {
			fmt.Fprintf(&sb, "- %s: %s\n", u.Kind, u.Value)
		}
		return sb.String()
	case models.EventAccountsRemoved:
		if ev.Cause == "" || ev.Removed.Empty() {
			return ""
		}
		return fmt.Sprintf("[인증 삭제] guild=%s user=%s cause=%s 부계정=%d", ev.GuildID, ev.UserID, ev.Cause, len(ev.Removed.Secondaries))
	case models.EventVerified:
		return fmt.Sprintf("[인증] guild=%s user=%s type=%s nickname=%s", ev.GuildID, ev.UserID, ev.AuthType, ev.Nickname)
	}
	return ""
}

func formatLookup(c models.BlockCandidate, hits []models.BlockedAttribute) string {
	if len(hits) == 0 {
		return fmt.Sprintf("%s %s: 차단 내역 없음", c.Kind, c.Value)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s: 차단됨\n", c.Kind, c.Value)
	for _, h := range hits {
		fmt.Fprintf(&sb, "- #%d %s (by %s, %s)\n", h.ID, h.Reason, h.BlockedBy, h.CreatedAt.Format("2006-01-02"))
	}
	return sb.String()
}
