package application

const (
	// Setting defaults
	defaultMainMinLevel   = 1680.0
	defaultMaxSubAccounts = 1

	// Reason stored on blocks created when a blocked identity retries verification
	AutoBlockReason = "차단 인증 시도(봇자동탐지)"

	// Display name marker for members with secondary accounts
	secondaryTag = " | 부계정O"

	// Report export
	excelAccountsSheet    = "본계정"
	excelSecondariesSheet = "부계정"
	excelBlocksSheet      = "차단목록"
	excelTimeLayout       = "2006-01-02 15:04"

	// Google Sheets mirror
	blockSheetRange      = "A1"
	blockSheetClearRange = "A:Z"
	sheetsPermissionRole = "writer"
)
