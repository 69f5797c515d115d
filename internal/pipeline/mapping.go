package pipeline

import (
	"time"

	"github.com/triad3/irpf-import/internal/domain"
	"github.com/triad3/irpf-import/internal/extraction"
)

// NotInformed fills free-text fields the model left empty.
const NotInformed = "Não informado"

const (
	maxNameLength     = 100
	maxBankCodeLength = 20

	defaultBankName    = "Banco"
	defaultKind        = "outro"
	defaultAccountType = "corrente"
	defaultAssetStatus = "ativo"
	defaultDebtStatus  = "ativa"
)

// mapContext carries what every mapped row takes from the declaration
// rather than from the payload.
type mapContext struct {
	accountID     string
	declarationID string
	taxYear       int
	today         time.Time
	newID         func() string
}

// firstText returns the first present value, or def.
func firstText(def string, values ...extraction.Text) string {
	for _, v := range values {
		if v.Valid {
			return v.Value
		}
	}
	return def
}

func shortName(values ...extraction.Text) string {
	return domain.Truncate(firstText(NotInformed, values...), maxNameLength)
}

func mapIncome(mc mapContext, entries []extraction.IncomeEntry) []domain.IncomeItem {
	rows := make([]domain.IncomeItem, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, domain.IncomeItem{
			ID:             mc.newID(),
			AccountID:      mc.accountID,
			DeclarationID:  mc.declarationID,
			PayerName:      e.PayerName.Or(NotInformed),
			PayerTaxID:     e.PayerTaxID.Or(NotInformed),
			Category:       e.Category.Or(defaultKind),
			GrossValue:     e.GrossValue.Or(0),
			WithheldTax:    e.WithheldTax.Or(0),
			SocialSecurity: e.SocialSecurity.Or(0),
			Year:           e.Year.Or(mc.taxYear),
		})
	}
	return rows
}

func mapAssetRights(mc mapContext, entries []extraction.AssetRightEntry) []domain.AssetRightItem {
	rows := make([]domain.AssetRightItem, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, domain.AssetRightItem{
			ID:               mc.newID(),
			AccountID:        mc.accountID,
			DeclarationID:    mc.declarationID,
			Code:             e.Code.Or(NotInformed),
			Category:         e.Category.Or(NotInformed),
			Description:      firstText(NotInformed, e.Description, e.Category),
			PriorYearValue:   e.PriorYearValue.Or(0),
			CurrentYearValue: e.CurrentYearValue.Or(0),
		})
	}
	return rows
}

func mapDeclarationDebts(mc mapContext, entries []extraction.DeclarationDebtEntry) []domain.DeclarationDebtItem {
	rows := make([]domain.DeclarationDebtItem, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, domain.DeclarationDebtItem{
			ID:               mc.newID(),
			AccountID:        mc.accountID,
			DeclarationID:    mc.declarationID,
			Creditor:         e.Creditor.Or(NotInformed),
			Description:      firstText(NotInformed, e.Description, e.Creditor),
			PriorYearValue:   e.PriorYearValue.Or(0),
			CurrentYearValue: e.CurrentYearValue.Or(0),
		})
	}
	return rows
}

func mapFixedAssets(mc mapContext, entries []extraction.FixedAssetEntry) []domain.FixedAsset {
	rows := make([]domain.FixedAsset, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, domain.FixedAsset{
			ID:               mc.newID(),
			AccountID:        mc.accountID,
			Name:             shortName(e.Name, e.Description, e.Category),
			Category:         e.Category.Or(defaultKind),
			Description:      firstText(NotInformed, e.Description, e.Name),
			AcquisitionValue: e.AcquisitionValue.Or(0),
			CurrentValue:     e.CurrentValue.Or(e.AcquisitionValue.Or(0)),
			AcquisitionDate:  e.AcquisitionDate.Or(mc.today),
			Location:         e.Location.Ptr(),
			Status:           e.Status.Or(defaultAssetStatus),
		})
	}
	return rows
}

func mapFinancialApplications(mc mapContext, entries []extraction.FinancialApplicationEntry) []domain.FinancialApplication {
	rows := make([]domain.FinancialApplication, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, domain.FinancialApplication{
			ID:              mc.newID(),
			AccountID:       mc.accountID,
			Name:            shortName(e.Name, e.Institution, e.Type),
			Type:            e.Type.Or(defaultKind),
			Institution:     e.Institution.Or(NotInformed),
			AppliedValue:    e.AppliedValue.Or(0),
			CurrentValue:    e.CurrentValue.Or(e.AppliedValue.Or(0)),
			ApplicationDate: e.ApplicationDate.Or(mc.today),
			MaturityDate:    e.MaturityDate.Ptr(),
			Rate:            e.Rate.Ptr(),
			RateType:        e.RateType.Ptr(),
			Liquidity:       e.Liquidity.Ptr(),
		})
	}
	return rows
}

func mapPensionPlans(mc mapContext, entries []extraction.PensionPlanEntry) []domain.PensionPlan {
	rows := make([]domain.PensionPlan, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, domain.PensionPlan{
			ID:                  mc.newID(),
			AccountID:           mc.accountID,
			Name:                shortName(e.Name, e.Institution, e.Type),
			Type:                e.Type.Or(defaultKind),
			Institution:         e.Institution.Or(NotInformed),
			AccumulatedValue:    e.AccumulatedValue.Or(0),
			MonthlyContribution: e.MonthlyContribution.Or(0),
			StartDate:           e.StartDate.Or(mc.today),
			RedemptionAge:       e.RedemptionAge.Ptr(),
			AdminFeeRate:        e.AdminFeeRate.Ptr(),
			AccumulatedReturn:   e.AccumulatedReturn.Ptr(),
			Active:              e.Active.Or(true),
		})
	}
	return rows
}

func mapBankAccounts(mc mapContext, entries []extraction.BankAccountEntry) []domain.BankAccount {
	rows := make([]domain.BankAccount, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, domain.BankAccount{
			ID:            mc.newID(),
			AccountID:     mc.accountID,
			BankName:      domain.Truncate(e.BankName.Or(defaultBankName), maxNameLength),
			Branch:        domain.Truncate(e.Branch.Or(NotInformed), maxBankCodeLength),
			AccountNumber: domain.Truncate(e.AccountNumber.Or(NotInformed), maxBankCodeLength),
			AccountType:   e.AccountType.Or(defaultAccountType),
			Balance:       e.Balance.Or(0),
			CreditLimit:   e.CreditLimit.Or(0),
			Active:        e.Active.Or(true),
		})
	}
	return rows
}

func mapDebts(mc mapContext, entries []extraction.GenericDebtEntry) []domain.GenericDebt {
	rows := make([]domain.GenericDebt, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, domain.GenericDebt{
			ID:                 mc.newID(),
			AccountID:          mc.accountID,
			Name:               shortName(e.Name, e.Creditor, e.Type),
			Type:               e.Type.Or(defaultKind),
			Creditor:           e.Creditor.Or(NotInformed),
			OriginalValue:      e.OriginalValue.Or(0),
			OutstandingBalance: e.OutstandingBalance.Or(0),
			InstallmentValue:   e.InstallmentValue.Or(0),
			InstallmentCount:   e.InstallmentCount.Or(0),
			InstallmentsPaid:   e.InstallmentsPaid.Or(0),
			InterestRate:       e.InterestRate.Ptr(),
			ContractDate:       e.ContractDate.Or(mc.today),
			DueDate:            e.DueDate.Ptr(),
			Status:             e.Status.Or(defaultDebtStatus),
		})
	}
	return rows
}
