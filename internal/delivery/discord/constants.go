package discord

import "time"

const (
	// Component custom ids. Dynamic parts follow the colon.
	idVerifyStart     = "verify_start"
	idVerifyModal     = "verify_modal"
	idVerifyConfirm   = "verify_confirm"
	idVerifyCancel    = "verify_cancel"
	idVerifyNickname  = "verify_nick"
	idProfileLink     = "profile_link"
	idAccountManage   = "account_manage"
	idAccountSubs     = "account_subs"
	idAccountDelAll   = "account_delete_all"
	idAccountDelYes   = "account_delete_all_confirm"
	idNicknameChange  = "nick_change"
	idNicknameSelect  = "nick_select"
	idOrphanReset     = "orphan_reset"
	idBlockUnblock    = "block_unblock"
	customIDSeparator = ":"

	maxSelectOptions = 25

	sessionSweepInterval = time.Minute
	cleanupMemberDelay   = 200 * time.Millisecond

	colorBlue   = 0x3498DB
	colorGreen  = 0x2ECC71
	colorRed    = 0xE74C3C
	colorOrange = 0xE67E22
	colorGray   = 0x95A5A6

	ticketChannelPrefix = "이의제기-"
	panelTitle          = "로스트아크 계정 인증"
)
