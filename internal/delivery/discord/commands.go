package discord

import (
	"kadan/internal/models"

	"github.com/bwmarrin/discordgo"
)

const (
	cmdPanel         = "인증패널"
	cmdSetting       = "설정"
	cmdRegisterGuild = "서버등록"
	cmdExport        = "인증내보내기"
	cmdBlockSheet    = "차단시트"
	cmdCleanup       = "인증정리"
	cmdAccountCheck  = "계정확인"
	cmdBlockID       = "차단id"
	cmdBlockMember   = "차단맴버"
	cmdBlockNickname = "차단닉네임"
)

func (b *Bot) addCommands(commands ...*discordgo.ApplicationCommand) {
	b.commands = append(b.commands, commands...)
}

func (b *Bot) newPanelCommand() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        cmdPanel,
		Description: "인증 안내 패널을 이 채널에 게시합니다 (관리자)",
	}
}

func (b *Bot) newSettingCommand() *discordgo.ApplicationCommand {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(models.EditableSettings))
	for _, key := range models.EditableSettings {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: key, Value: key})
	}
	return &discordgo.ApplicationCommand{
		Name:        cmdSetting,
		Description: "서버 설정을 변경합니다 (관리자)",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "key", Description: "설정 항목", Required: true, Choices: choices},
			{Type: discordgo.ApplicationCommandOptionString, Name: "value", Description: "값 (숫자 또는 ID)", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "변경 사유", Required: false},
		},
	}
}

func (b *Bot) newRegisterGuildCommand() *discordgo.ApplicationCommand {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(models.GameServers))
	for _, server := range models.GameServers {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: server, Value: server})
	}
	return &discordgo.ApplicationCommand{
		Name:        cmdRegisterGuild,
		Description: "이 디스코드 서버의 게임 서버를 등록합니다 (관리자)",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "server", Description: "게임 서버", Required: true, Choices: choices},
		},
	}
}

func (b *Bot) newExportCommand() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        cmdExport,
		Description: "인증 정보와 차단 목록을 엑셀로 내보냅니다 (관리자)",
	}
}

func (b *Bot) newBlockSheetCommand() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        cmdBlockSheet,
		Description: "차단 목록을 구글 시트에 동기화합니다 (관리자)",
	}
}

func (b *Bot) newCleanupCommand() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        cmdCleanup,
		Description: "서버를 떠난 유저의 인증 기록을 정리합니다 (관리자)",
	}
}

func (b *Bot) newAccountCheckCommand() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        cmdAccountCheck,
		Description: "닉네임이 유저의 인증 계정 캐릭터인지 확인합니다 (관리자)",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionUser, Name: "member", Description: "대상 유저", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "nickname", Description: "확인할 캐릭터 닉네임", Required: true},
		},
	}
}

func removalOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "action",
		Description: "차단 후 조치",
		Required:    false,
		Choices: []*discordgo.ApplicationCommandOptionChoice{
			{Name: "없음", Value: "none"},
			{Name: "추방", Value: "kick"},
			{Name: "밴", Value: "ban"},
		},
	}
}

func reasonOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "차단 사유", Required: false}
}

func (b *Bot) newBlockIDCommand() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        cmdBlockID,
		Description: "디스코드 ID로 차단합니다 (관리자)",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "discord_id", Description: "디스코드 유저 ID", Required: true},
			reasonOption(),
			removalOption(),
		},
	}
}

func (b *Bot) newBlockMemberCommand() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        cmdBlockMember,
		Description: "서버 멤버를 차단합니다 (관리자)",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionUser, Name: "member", Description: "대상 멤버", Required: true},
			reasonOption(),
			removalOption(),
		},
	}
}

func (b *Bot) newBlockNicknameCommand() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        cmdBlockNickname,
		Description: "인게임 닉네임으로 차단합니다 (관리자)",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "nickname", Description: "캐릭터 닉네임", Required: true},
			reasonOption(),
		},
	}
}
