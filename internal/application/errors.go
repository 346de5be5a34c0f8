package application

import "errors"

var (
	ErrSessionNotFound     = errors.New("verification session not found")
	ErrSessionExpired      = errors.New("verification session expired")
	ErrNotSessionOwner     = errors.New("verification session belongs to another user")
	ErrInvalidState        = errors.New("verification session is not in the expected state")
	ErrProfileUnavailable  = errors.New("profile service unavailable")
	ErrNicknameNotInRoster = errors.New("nickname is not part of the roster")
	ErrAlreadyRegistered   = errors.New("account already registered")
	ErrSecondaryLimit      = errors.New("secondary account limit reached")
	ErrNicknameUnchanged   = errors.New("nickname unchanged")
	ErrNotVerified         = errors.New("primary account not verified")
	ErrUnknownSetting      = errors.New("unknown setting")
	ErrInvalidSetting      = errors.New("invalid setting value")
	ErrSheetNotConfigured  = errors.New("block list spreadsheet not configured")
	ErrGuildNotRegistered  = errors.New("guild region not registered")
)
