package discord

import (
	"context"
	"strings"
	"time"

	"kadan/internal/application"
	"kadan/pkg/config"

	"github.com/bwmarrin/discordgo"
)

type Bot struct {
	session  *discordgo.Session
	services *application.Service
	gateway  *Gateway
	logger   application.Logger

	adminIDs       map[string]struct{}
	commandGuildID string
	commands       []*discordgo.ApplicationCommand

	ctx    context.Context
	cancel context.CancelFunc
}

func NewBot(cfg *config.Config, session *discordgo.Session, gateway *Gateway, services *application.Service, logger application.Logger) *Bot {
	admins := make(map[string]struct{})
	for _, id := range cfg.AdminUserIDs {
		cleanID := strings.TrimSpace(id)
		if cleanID != "" {
			admins[cleanID] = struct{}{}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Bot{
		session:        session,
		services:       services,
		gateway:        gateway,
		logger:         logger,
		adminIDs:       admins,
		commandGuildID: cfg.CommandGuildID,
		ctx:            ctx,
		cancel:         cancel,
	}
}

func (b *Bot) Init() error {
	b.session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onInteraction)
	b.session.AddHandler(b.onMemberRemove)

	b.addCommands(
		b.newPanelCommand(),
		b.newSettingCommand(),
		b.newRegisterGuildCommand(),
		b.newExportCommand(),
		b.newBlockSheetCommand(),
		b.newCleanupCommand(),
		b.newAccountCheckCommand(),
		b.newBlockIDCommand(),
		b.newBlockMemberCommand(),
		b.newBlockNicknameCommand(),
	)
	return nil
}

func (b *Bot) Run(ctx context.Context) {
	if err := b.session.Open(); err != nil {
		b.logger.Error("failed to open discord session: %v", err)
		return
	}

	b.logger.Info("Discord Bot Started. Registering slash commands...")
	if _, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, b.commandGuildID, b.commands); err != nil {
		b.logger.Error("Failed to register commands: %v", err)
	} else {
		b.logger.Info("Slash commands registered successfully")
	}

	b.sweepSessions(ctx)
}

func (b *Bot) Stop() {
	b.cancel()
	if err := b.session.Close(); err != nil {
		b.logger.Warn("close discord session: %v", err)
	}
}

// sweepSessions drops abandoned verification sessions until ctx or the bot stops.
func (b *Bot) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			if n := b.services.Verification.Sweep(); n > 0 {
				b.logger.Debug("swept %d expired verification sessions", n)
			}
		}
	}
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.services.Actor.Set(r.User.ID)
	if err := b.services.Settings.Refresh(b.ctx); err != nil {
		b.logger.Warn("initial settings load failed: %v", err)
	}
	b.logger.Info("logged in as %s in %d guilds", r.User.Username, len(r.Guilds))
}

func (b *Bot) onMemberRemove(s *discordgo.Session, m *discordgo.GuildMemberRemove) {
	if m.Member == nil || m.User == nil {
		return
	}
	b.services.Accounts.HandleMemberLeave(b.ctx, m.GuildID, m.User.ID)
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.ensureGuild(s, i.Interaction, b.routeCommand)
	case discordgo.InteractionMessageComponent:
		b.ensureGuild(s, i.Interaction, b.routeComponent)
	case discordgo.InteractionModalSubmit:
		b.ensureGuild(s, i.Interaction, b.routeModal)
	}
}

func (b *Bot) routeCommand(s *discordgo.Session, i *discordgo.Interaction) {
	switch i.ApplicationCommandData().Name {
	case cmdPanel:
		b.ensureAdmin(s, i, b.handlePanel)
	case cmdSetting:
		b.ensureAdmin(s, i, b.handleSetting)
	case cmdRegisterGuild:
		b.ensureAdmin(s, i, b.handleRegisterGuild)
	case cmdExport:
		b.ensureAdmin(s, i, b.handleExport)
	case cmdBlockSheet:
		b.ensureAdmin(s, i, b.handleBlockSheet)
	case cmdCleanup:
		b.ensureAdmin(s, i, b.handleCleanup)
	case cmdAccountCheck:
		b.ensureAdmin(s, i, b.handleAccountCheck)
	case cmdBlockID, cmdBlockMember, cmdBlockNickname:
		b.ensureAdmin(s, i, b.handleBlock)
	}
}

func (b *Bot) routeComponent(s *discordgo.Session, i *discordgo.Interaction) {
	prefix, arg := splitCustomID(i.MessageComponentData().CustomID)
	switch prefix {
	case idVerifyStart:
		b.handleVerifyStart(s, i, arg)
	case idVerifyConfirm:
		b.handleVerifyConfirm(s, i, arg)
	case idVerifyCancel:
		b.handleVerifyCancel(s, i, arg)
	case idVerifyNickname:
		b.handleVerifyNickname(s, i, arg)
	case idAccountManage:
		b.handleAccountManage(s, i)
	case idAccountSubs:
		b.handleSecondaryDelete(s, i)
	case idAccountDelAll:
		b.handleDeleteAllPrompt(s, i)
	case idAccountDelYes:
		b.handleDeleteAll(s, i)
	case idNicknameChange:
		b.handleNicknameOptions(s, i)
	case idNicknameSelect:
		b.handleNicknameSelect(s, i)
	case idOrphanReset:
		b.handleOrphanReset(s, i)
	case idBlockUnblock:
		b.ensureAdmin(s, i, func(s *discordgo.Session, i *discordgo.Interaction) {
			b.handleUnblock(s, i, arg)
		})
	}
}

func (b *Bot) routeModal(s *discordgo.Session, i *discordgo.Interaction) {
	prefix, arg := splitCustomID(i.ModalSubmitData().CustomID)
	if prefix == idVerifyModal {
		b.handleVerifySubmit(s, i, arg)
	}
}
