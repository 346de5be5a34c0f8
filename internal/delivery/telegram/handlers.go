package telegram

import (
	"context"
	"fmt"
	"strings"

	"kadan/internal/models"
)

const helpText = "관리자 명령어:\n\n" +
	"/check [guild_id] [discord_id|memberNo|nickname] [값] - 차단 여부 조회\n" +
	"/blocks [guild_id] - 활성 차단 수"

func (b *Bot) handleCommand(ctx context.Context, chatID int64, command, args string) {
	switch command {
	case "start", "help":
		b.sendMessage(chatID, helpText)

	case "check":
		guildID, candidate, ok := parseCheckArgs(args)
		if !ok {
			b.sendMessage(chatID, "형식: /check [guild_id] [discord_id|memberNo|nickname] [값]")
			return
		}
		hits, err := b.blocks.Lookup(ctx, guildID, []models.BlockCandidate{candidate})
		if err != nil {
			b.logger.Error("telegram lookup failed: %v", err)
			b.sendMessage(chatID, "조회 중 오류가 발생했습니다.")
			return
		}
		b.sendMessage(chatID, formatLookup(candidate, hits))

	case "blocks":
		guildID := strings.TrimSpace(args)
		if guildID == "" {
			b.sendMessage(chatID, "형식: /blocks [guild_id]")
			return
		}
		active, err := b.blocks.ListActive(ctx, guildID)
		if err != nil {
			b.logger.Error("telegram list blocks failed: %v", err)
			b.sendMessage(chatID, "조회 중 오류가 발생했습니다.")
			return
		}
		b.sendMessage(chatID, fmt.Sprintf("활성 차단: %d건", len(active)))
	}
}

func parseCheckArgs(args string) (string, models.BlockCandidate, bool) {
	fields := strings.Fields(args)
	if len(fields) < 3 {
		return "", models.BlockCandidate{}, false
	}
	kind := models.AttributeKind(fields[1])
	if !kind.Valid() {
		return "", models.BlockCandidate{}, false
	}
	return fields[0], models.BlockCandidate{Kind: kind, Value: strings.Join(fields[2:], " ")}, true
}
