// Package export renders imported declarations as XLSX workbooks.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/triad3/irpf-import/internal/domain"
	"github.com/triad3/irpf-import/internal/logger"
)

const (
	SheetSummary      = "Resumo"
	SheetIncome       = "Rendimentos"
	SheetAssetsRights = "Bens e Direitos"
	SheetDebts        = "Dívidas"
)

// Reader is the storage the export needs.
type Reader interface {
	GetDeclaration(ctx context.Context, accountID, id string) (*domain.Declaration, error)
	ListIncomeItems(ctx context.Context, accountID, declarationID string) ([]domain.IncomeItem, error)
	ListAssetRights(ctx context.Context, accountID, declarationID string) ([]domain.AssetRightItem, error)
	ListDeclarationDebts(ctx context.Context, accountID, declarationID string) ([]domain.DeclarationDebtItem, error)
}

// Service produces XLSX bytes for one declaration.
type Service struct {
	store Reader
}

func NewService(store Reader) *Service {
	return &Service{store: store}
}

// DeclarationXLSX returns a workbook with the declaration summary and its
// declaration-linked items. It returns domain.ErrNotFound for another
// account's declaration.
func (s *Service) DeclarationXLSX(ctx context.Context, accountID, declarationID string) ([]byte, error) {
	start := time.Now()

	d, err := s.store.GetDeclaration(ctx, accountID, declarationID)
	if err != nil {
		return nil, fmt.Errorf("get declaration: %w", err)
	}
	income, err := s.store.ListIncomeItems(ctx, accountID, declarationID)
	if err != nil {
		return nil, fmt.Errorf("list income items: %w", err)
	}
	assets, err := s.store.ListAssetRights(ctx, accountID, declarationID)
	if err != nil {
		return nil, fmt.Errorf("list asset rights: %w", err)
	}
	debts, err := s.store.ListDeclarationDebts(ctx, accountID, declarationID)
	if err != nil {
		return nil, fmt.Errorf("list declaration debts: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	writeSummary(f, d)

	incomeRows := make([][]any, 0, len(income))
	for _, it := range income {
		incomeRows = append(incomeRows, []any{it.PayerName, it.PayerTaxID, it.Category, it.GrossValue, it.WithheldTax, it.SocialSecurity, it.Year})
	}
	if err := writeTable(f, SheetIncome,
		[]string{"Fonte pagadora", "CNPJ/CPF", "Categoria", "Valor", "IRRF", "Contribuição previdenciária", "Ano"},
		incomeRows); err != nil {
		return nil, err
	}

	assetRows := make([][]any, 0, len(assets))
	for _, it := range assets {
		assetRows = append(assetRows, []any{it.Code, it.Category, it.Description, it.PriorYearValue, it.CurrentYearValue})
	}
	if err := writeTable(f, SheetAssetsRights,
		[]string{"Código", "Categoria", "Discriminação", "Situação ano anterior", "Situação ano atual"},
		assetRows); err != nil {
		return nil, err
	}

	debtRows := make([][]any, 0, len(debts))
	for _, it := range debts {
		debtRows = append(debtRows, []any{it.Creditor, it.Description, it.PriorYearValue, it.CurrentYearValue})
	}
	if err := writeTable(f, SheetDebts,
		[]string{"Credor", "Discriminação", "Situação ano anterior", "Situação ano atual"},
		debtRows); err != nil {
		return nil, err
	}

	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("declaration_id", declarationID).
		Int("rows", len(income)+len(assets)+len(debts)).
		Dur("elapsed", time.Since(start)).
		Msg("Declaration exported")

	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, d *domain.Declaration) {
	rows := [][]any{
		{"Declaração", d.ID},
		{"Ano", d.TaxYear},
		{"Arquivo", d.Filename},
		{"Status", d.Status.String()},
		{"Valor a pagar", d.AmountToPay},
		{"Valor a restituir", d.AmountToRefund},
		{"Número do recibo", d.ReceiptID},
	}
	if d.SubmissionDeadline != nil {
		rows = append(rows, []any{"Prazo de entrega", d.SubmissionDeadline.Format("2006-01-02")})
	}
	rows = append(rows, []any{}, []any{"Coleção", "Inseridos", "Erro"})
	for _, r := range d.Summary {
		rows = append(rows, []any{string(r.Collection), r.Inserted, r.Error})
	}

	for i, row := range rows {
		for j, v := range row {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+1)
			_ = f.SetCellValue(SheetSummary, cell, v)
		}
	}
	_ = f.SetColWidth(SheetSummary, "A", "A", 24)
	_ = f.SetColWidth(SheetSummary, "B", "B", 40)
	_ = f.SetColWidth(SheetSummary, "C", "C", 48)
}

func writeTable(f *excelize.File, sheet string, headers []string, rows [][]any) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("new sheet %s: %w", sheet, err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	last, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.SetColWidth(sheet, "A", last, 22)
	return nil
}
