package backendservice

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	backenddto "github.com/Black-And-White-Club/arena-sync/app/modules/backend/dto"
	"github.com/Black-And-White-Club/arena-sync/internal/observability"
)

const leaderboardSheet = "Leaderboard"

var leaderboardHeader = []any{"Rank", "Username", "Wallet", "Score", "Kills", "Submitted"}

// ExportLeaderboard renders a room's leaderboard as an XLSX workbook.
func (s *BackendService) ExportLeaderboard(ctx context.Context, roomID string) ([]byte, error) {
	return observability.WithTelemetry(ctx, s.tel, serviceName, "export_leaderboard", func(ctx context.Context) ([]byte, error) {
		entries, err := s.Leaderboard(ctx, roomID)
		if err != nil {
			return nil, err
		}
		return LeaderboardWorkbook(roomID, entries)
	})
}

// LeaderboardWorkbook writes entries, already ranked, into a single-sheet workbook.
func LeaderboardWorkbook(roomID string, entries []backenddto.LeaderboardEntry) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", leaderboardSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetCellValue(leaderboardSheet, "A1", "Room"); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(leaderboardSheet, "B1", roomID); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(leaderboardSheet, "A3", &leaderboardHeader); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(leaderboardSheet, "A3", "F3", bold); err != nil {
		return nil, err
	}

	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+4)
		if err != nil {
			return nil, err
		}
		row := []any{i + 1, e.Username, e.WalletAddress, e.Score, e.Kills, e.CreatedAt.UTC().Format("2006-01-02 15:04:05")}
		if err := f.SetSheetRow(leaderboardSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	if err := f.SetColWidth(leaderboardSheet, "B", "C", 24); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
