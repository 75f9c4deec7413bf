package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/ledger"
)

const (
	summarySheet = "Summary"
	tradesSheet  = "Trades"
)

var tradeHeader = []any{
	"ID", "Opened", "Closed", "Side", "Entry", "Exit", "Stop", "Target",
	"Quantity", "Size USD", "Leverage", "P&L USD", "P&L %", "Reason", "Cycle", "Confidence",
}

type styles struct {
	header   int
	currency int
	gain     int
	loss     int
}

func newStyles(fx *excelize.File) (styles, error) {
	var s styles
	var err error
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	if s.header, err = fx.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Border:    border,
	}); err != nil {
		return s, err
	}
	if s.currency, err = fx.NewStyle(&excelize.Style{NumFmt: 4, Border: border}); err != nil {
		return s, err
	}
	if s.gain, err = fx.NewStyle(&excelize.Style{NumFmt: 4, Font: &excelize.Font{Color: "008000"}, Border: border}); err != nil {
		return s, err
	}
	s.loss, err = fx.NewStyle(&excelize.Style{NumFmt: 4, Font: &excelize.Font{Color: "C00000"}, Border: border})
	return s, err
}

// WriteXLSX writes a workbook with a summary sheet and one row per trade.
func WriteXLSX(w io.Writer, symbol string, st ledger.Statistics, trades []domain.TradeRecord) error {
	fx := excelize.NewFile()
	defer fx.Close()

	if err := fx.SetSheetName(fx.GetSheetName(0), summarySheet); err != nil {
		return fmt.Errorf("report: rename sheet: %w", err)
	}
	if _, err := fx.NewSheet(tradesSheet); err != nil {
		return fmt.Errorf("report: add sheet: %w", err)
	}
	s, err := newStyles(fx)
	if err != nil {
		return fmt.Errorf("report: styles: %w", err)
	}
	if err := writeSummarySheet(fx, symbol, st, s); err != nil {
		return fmt.Errorf("report: summary sheet: %w", err)
	}
	if err := writeTradesSheet(fx, trades, s); err != nil {
		return fmt.Errorf("report: trades sheet: %w", err)
	}
	if err := fx.Write(w); err != nil {
		return fmt.Errorf("report: write workbook: %w", err)
	}
	return nil
}

func writeSummarySheet(fx *excelize.File, symbol string, st ledger.Statistics, s styles) error {
	rows := [][]any{
		{"Symbol", symbol},
		{"Balance", st.CurrentBalance},
		{"Total P&L", st.TotalPnLUSD},
		{"Total P&L %", st.TotalPnLPercent},
		{"Trades", st.TotalTrades},
		{"Wins", st.Wins},
		{"Losses", st.Losses},
		{"Win rate %", st.WinRate},
		{"Average win", st.AvgWin},
		{"Average loss", st.AvgLoss},
		{"Largest win", st.LargestWin},
		{"Largest loss", st.LargestLoss},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := fx.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}
	if err := fx.SetCellStyle(summarySheet, "A1", fmt.Sprintf("A%d", len(rows)), s.header); err != nil {
		return err
	}
	return fx.SetColWidth(summarySheet, "A", "B", 18)
}

func writeTradesSheet(fx *excelize.File, trades []domain.TradeRecord, s styles) error {
	header := tradeHeader
	if err := fx.SetSheetRow(tradesSheet, "A1", &header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(tradeHeader), 1)
	if err != nil {
		return err
	}
	if err := fx.SetCellStyle(tradesSheet, "A1", last, s.header); err != nil {
		return err
	}

	for i, tr := range trades {
		r := i + 2
		row := []any{
			tr.ID,
			tr.OpenedAt.UTC().Format("2006-01-02 15:04:05"),
			tr.ClosedAt.UTC().Format("2006-01-02 15:04:05"),
			string(tr.Side),
			tr.EntryPrice, tr.ExitPrice, tr.StopLoss, tr.TakeProfit,
			tr.Quantity, tr.PositionSizeUSD, tr.Leverage,
			tr.PnLUSD, tr.PnLPercent,
			string(tr.CloseReason), tr.CycleNumber, tr.Confidence,
		}
		if err := fx.SetSheetRow(tradesSheet, fmt.Sprintf("A%d", r), &row); err != nil {
			return err
		}
		style := s.gain
		if !tr.Win() {
			style = s.loss
		}
		if err := fx.SetCellStyle(tradesSheet, fmt.Sprintf("L%d", r), fmt.Sprintf("L%d", r), style); err != nil {
			return err
		}
		if err := fx.SetCellStyle(tradesSheet, fmt.Sprintf("J%d", r), fmt.Sprintf("J%d", r), s.currency); err != nil {
			return err
		}
	}
	if err := fx.SetColWidth(tradesSheet, "A", "A", 28); err != nil {
		return err
	}
	return fx.SetColWidth(tradesSheet, "B", "C", 20)
}
