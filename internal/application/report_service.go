package application

import (
	"context"
	"fmt"
	"sync"

	"kadan/internal/models"
	"kadan/internal/repository"
	"kadan/pkg/sheets"

	"github.com/xuri/excelize/v2"
)

type ReportService interface {
	ExportWorkbook(ctx context.Context, guildID string) ([]byte, error)
	SyncBlockSheet(ctx context.Context, guildID string) (string, error)
}

type ReportServiceImpl struct {
	identity      repository.Identity
	blocks        repository.Block
	sheetsClient  sheets.Client
	ownerEmail    string
	logger        Logger
	mu            sync.Mutex
	spreadsheetID string
}

func NewReportServiceImpl(identity repository.Identity, blocks repository.Block, sheetsClient sheets.Client, spreadsheetID, ownerEmail string, logger Logger) *ReportServiceImpl {
	return &ReportServiceImpl{
		identity:      identity,
		blocks:        blocks,
		sheetsClient:  sheetsClient,
		spreadsheetID: spreadsheetID,
		ownerEmail:    ownerEmail,
		logger:        logger,
	}
}

// ExportWorkbook writes live accounts, secondaries and active blocks of a
// guild into one xlsx file.
func (s *ReportServiceImpl) ExportWorkbook(ctx context.Context, guildID string) ([]byte, error) {
	accounts, err := s.identity.ListAccounts(ctx, guildID)
	if err != nil {
		return nil, err
	}
	subs, err := s.identity.ListAllSecondaries(ctx, guildID)
	if err != nil {
		return nil, err
	}
	blocks, err := s.blocks.ListActive(ctx, guildID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	accountRows := make([][]interface{}, 0, len(accounts))
	for _, a := range accounts {
		verifiedAt := ""
		if a.VerifiedAt != nil {
			verifiedAt = a.VerifiedAt.Format(excelTimeLayout)
		}
		accountRows = append(accountRows, []interface{}{a.DiscordUserID, a.AccountRef, a.Nickname, a.CreatedAt.Format(excelTimeLayout), verifiedAt})
	}
	if err := writeSheet(f, excelAccountsSheet, []string{"디스코드 ID", "memberNo", "닉네임", "등록일", "인증일"}, accountRows); err != nil {
		return nil, err
	}

	subRows := make([][]interface{}, 0, len(subs))
	for _, sub := range subs {
		subRows = append(subRows, []interface{}{sub.DiscordUserID, sub.SubNumber, sub.AccountRef, sub.Nickname, sub.CreatedAt.Format(excelTimeLayout)})
	}
	if err := writeSheet(f, excelSecondariesSheet, []string{"디스코드 ID", "번호", "memberNo", "닉네임", "등록일"}, subRows); err != nil {
		return nil, err
	}

	if err := writeSheet(f, excelBlocksSheet, blockHeaders(), blockRows(blocks)); err != nil {
		return nil, err
	}

	f.DeleteSheet("Sheet1")

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SyncBlockSheet mirrors the guild's active blocks into a tab named after
// the guild. The spreadsheet is created on first use.
func (s *ReportServiceImpl) SyncBlockSheet(ctx context.Context, guildID string) (string, error) {
	if s.sheetsClient == nil {
		return "", ErrSheetNotConfigured
	}

	spreadsheetID, err := s.ensureSpreadsheet(ctx)
	if err != nil {
		return "", err
	}

	blocks, err := s.blocks.ListActive(ctx, guildID)
	if err != nil {
		return "", err
	}

	if err := s.sheetsClient.EnsureTab(ctx, spreadsheetID, guildID); err != nil {
		return "", err
	}

	rows := [][]interface{}{toRow(blockHeaders())}
	rows = append(rows, blockRows(blocks)...)

	if err := s.sheetsClient.ClearRange(ctx, spreadsheetID, guildID+"!"+blockSheetClearRange); err != nil {
		s.logger.Error("failed to clear block sheet: %v", err)
	}
	if err := s.sheetsClient.UpdateValues(ctx, spreadsheetID, guildID+"!"+blockSheetRange, rows); err != nil {
		return "", fmt.Errorf("failed to update block sheet: %w", err)
	}

	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s", spreadsheetID), nil
}

func (s *ReportServiceImpl) ensureSpreadsheet(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.spreadsheetID != "" {
		return s.spreadsheetID, nil
	}

	id, _, err := s.sheetsClient.CreateSpreadsheet(ctx, "Kadan Block List")
	if err != nil {
		return "", err
	}
	if s.ownerEmail != "" {
		if err := s.sheetsClient.AddPermission(ctx, id, s.ownerEmail, sheetsPermissionRole); err != nil {
			s.logger.Warn("share block sheet with %s failed: %v", s.ownerEmail, err)
		}
	}
	s.spreadsheetID = id
	s.logger.Info("created block list spreadsheet %s", id)
	return id, nil
}

func blockHeaders() []string {
	return []string{"ID", "종류", "값", "사유", "차단자", "차단일"}
}

func blockRows(blocks []models.BlockedAttribute) [][]interface{} {
	rows := make([][]interface{}, 0, len(blocks))
	for _, b := range blocks {
		rows = append(rows, []interface{}{b.ID, string(b.Kind), b.Value, b.Reason, b.BlockedBy, b.CreatedAt.Format(excelTimeLayout)})
	}
	return rows
}

func toRow(values []string) []interface{} {
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]interface{}) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			f.SetCellValue(sheet, cell, v)
		}
	}
	last, _ := excelize.ColumnNumberToName(len(headers))
	f.SetColWidth(sheet, "A", last, 18)
	return nil
}
