package domain

import "time"

// Collection names one of the eight destination record collections.
type Collection string

const (
	CollectionIncome                Collection = "rendimentos"
	CollectionAssetsRights          Collection = "bens_direitos"
	CollectionDeclarationDebts      Collection = "dividas_irpf"
	CollectionFixedAssets           Collection = "bens_imobilizados"
	CollectionFinancialApplications Collection = "aplicacoes_financeiras"
	CollectionPensionPlans          Collection = "planos_previdencia"
	CollectionBankAccounts          Collection = "contas_bancarias"
	CollectionDebts                 Collection = "dividas"
)

// AllCollections lists the collections in fan-out order.
var AllCollections = []Collection{
	CollectionIncome,
	CollectionAssetsRights,
	CollectionDeclarationDebts,
	CollectionFixedAssets,
	CollectionFinancialApplications,
	CollectionPensionPlans,
	CollectionBankAccounts,
	CollectionDebts,
}

// CollectionResult reports how one collection fared during fan-out.
// Inserted is zero whenever Error is set.
type CollectionResult struct {
	Collection Collection `json:"collection"`
	Inserted   int        `json:"inserted"`
	Error      string     `json:"error,omitempty"`
}

// IncomeItem is one payer/category line of the declaration (rendimentos).
type IncomeItem struct {
	ID             string  `db:"id" bigquery:"id" json:"id"`
	AccountID      string  `db:"account_id" bigquery:"account_id" json:"account_id"`
	DeclarationID  string  `db:"declaracao_id" bigquery:"declaracao_id" json:"declaracao_id"`
	PayerName      string  `db:"fonte_pagadora" bigquery:"fonte_pagadora" json:"fonte_pagadora"`
	PayerTaxID     string  `db:"cnpj" bigquery:"cnpj" json:"cnpj"`
	Category       string  `db:"categoria" bigquery:"categoria" json:"categoria"`
	GrossValue     float64 `db:"valor" bigquery:"valor" json:"valor"`
	WithheldTax    float64 `db:"irrf" bigquery:"irrf" json:"irrf"`
	SocialSecurity float64 `db:"contribuicao_previdenciaria" bigquery:"contribuicao_previdenciaria" json:"contribuicao_previdenciaria"`
	Year           int     `db:"ano" bigquery:"ano" json:"ano"`
}

// AssetRightItem is one "bens e direitos" line of the declaration.
type AssetRightItem struct {
	ID               string  `db:"id" bigquery:"id" json:"id"`
	AccountID        string  `db:"account_id" bigquery:"account_id" json:"account_id"`
	DeclarationID    string  `db:"declaracao_id" bigquery:"declaracao_id" json:"declaracao_id"`
	Code             string  `db:"codigo" bigquery:"codigo" json:"codigo"`
	Category         string  `db:"categoria" bigquery:"categoria" json:"categoria"`
	Description      string  `db:"discriminacao" bigquery:"discriminacao" json:"discriminacao"`
	PriorYearValue   float64 `db:"situacao_ano_anterior" bigquery:"situacao_ano_anterior" json:"situacao_ano_anterior"`
	CurrentYearValue float64 `db:"situacao_ano_atual" bigquery:"situacao_ano_atual" json:"situacao_ano_atual"`
}

// DeclarationDebtItem is one "dívidas e ônus reais" line of the declaration.
type DeclarationDebtItem struct {
	ID               string  `db:"id" bigquery:"id" json:"id"`
	AccountID        string  `db:"account_id" bigquery:"account_id" json:"account_id"`
	DeclarationID    string  `db:"declaracao_id" bigquery:"declaracao_id" json:"declaracao_id"`
	Creditor         string  `db:"credor" bigquery:"credor" json:"credor"`
	Description      string  `db:"discriminacao" bigquery:"discriminacao" json:"discriminacao"`
	PriorYearValue   float64 `db:"situacao_ano_anterior" bigquery:"situacao_ano_anterior" json:"situacao_ano_anterior"`
	CurrentYearValue float64 `db:"situacao_ano_atual" bigquery:"situacao_ano_atual" json:"situacao_ano_atual"`
}

// FixedAsset is an account-scoped immobilized asset (bens imobilizados).
type FixedAsset struct {
	ID               string    `db:"id" json:"id"`
	AccountID        string    `db:"account_id" json:"account_id"`
	Name             string    `db:"nome" json:"nome"`
	Category         string    `db:"categoria" json:"categoria"`
	Description      string    `db:"descricao" json:"descricao"`
	AcquisitionValue float64   `db:"valor_aquisicao" json:"valor_aquisicao"`
	CurrentValue     float64   `db:"valor_atual" json:"valor_atual"`
	AcquisitionDate  time.Time `db:"data_aquisicao" json:"data_aquisicao"`
	Location         *string   `db:"localizacao" json:"localizacao"`
	Status           string    `db:"status" json:"status"`
}

// FinancialApplication is an account-scoped investment position.
type FinancialApplication struct {
	ID              string     `db:"id" json:"id"`
	AccountID       string     `db:"account_id" json:"account_id"`
	Name            string     `db:"nome" json:"nome"`
	Type            string     `db:"tipo" json:"tipo"`
	Institution     string     `db:"instituicao" json:"instituicao"`
	AppliedValue    float64    `db:"valor_aplicado" json:"valor_aplicado"`
	CurrentValue    float64    `db:"valor_atual" json:"valor_atual"`
	ApplicationDate time.Time  `db:"data_aplicacao" json:"data_aplicacao"`
	MaturityDate    *time.Time `db:"data_vencimento" json:"data_vencimento"`
	Rate            *float64   `db:"taxa" json:"taxa"`
	RateType        *string    `db:"tipo_taxa" json:"tipo_taxa"`
	Liquidity       *string    `db:"liquidez" json:"liquidez"`
}

// PensionPlan is an account-scoped private pension plan (PGBL, VGBL...).
type PensionPlan struct {
	ID                  string    `db:"id" json:"id"`
	AccountID           string    `db:"account_id" json:"account_id"`
	Name                string    `db:"nome" json:"nome"`
	Type                string    `db:"tipo" json:"tipo"`
	Institution         string    `db:"instituicao" json:"instituicao"`
	AccumulatedValue    float64   `db:"valor_acumulado" json:"valor_acumulado"`
	MonthlyContribution float64   `db:"contribuicao_mensal" json:"contribuicao_mensal"`
	StartDate           time.Time `db:"data_inicio" json:"data_inicio"`
	RedemptionAge       *int      `db:"idade_resgate" json:"idade_resgate"`
	AdminFeeRate        *float64  `db:"taxa_administracao" json:"taxa_administracao"`
	AccumulatedReturn   *float64  `db:"rentabilidade_acumulada" json:"rentabilidade_acumulada"`
	Active              bool      `db:"ativo" json:"ativo"`
}

// BankAccount is an account-scoped bank account.
type BankAccount struct {
	ID            string  `db:"id" json:"id"`
	AccountID     string  `db:"account_id" json:"account_id"`
	BankName      string  `db:"banco" json:"banco"`
	Branch        string  `db:"agencia" json:"agencia"`
	AccountNumber string  `db:"numero_conta" json:"numero_conta"`
	AccountType   string  `db:"tipo_conta" json:"tipo_conta"`
	Balance       float64 `db:"saldo_atual" json:"saldo_atual"`
	CreditLimit   float64 `db:"limite_credito" json:"limite_credito"`
	Active        bool    `db:"ativo" json:"ativo"`
}

// GenericDebt is an account-scoped loan or financing.
type GenericDebt struct {
	ID                 string     `db:"id" json:"id"`
	AccountID          string     `db:"account_id" json:"account_id"`
	Name               string     `db:"nome" json:"nome"`
	Type               string     `db:"tipo" json:"tipo"`
	Creditor           string     `db:"credor" json:"credor"`
	OriginalValue      float64    `db:"valor_original" json:"valor_original"`
	OutstandingBalance float64    `db:"saldo_devedor" json:"saldo_devedor"`
	InstallmentValue   float64    `db:"valor_parcela" json:"valor_parcela"`
	InstallmentCount   int        `db:"total_parcelas" json:"total_parcelas"`
	InstallmentsPaid   int        `db:"parcelas_pagas" json:"parcelas_pagas"`
	InterestRate       *float64   `db:"taxa_juros" json:"taxa_juros"`
	ContractDate       time.Time  `db:"data_contratacao" json:"data_contratacao"`
	DueDate            *time.Time `db:"data_vencimento" json:"data_vencimento"`
	Status             string     `db:"status" json:"status"`
}
