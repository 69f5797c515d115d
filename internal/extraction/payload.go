package extraction

import (
	"encoding/json"

	"github.com/triad3/irpf-import/internal/domain"
)

// Payload is the typed form of the model's reply.
type Payload struct {
	Header                *Header                     `json:"declaracao"`
	Income                []IncomeEntry               `json:"rendimentos"`
	AssetsRights          []AssetRightEntry           `json:"bens_direitos"`
	DeclarationDebts      []DeclarationDebtEntry      `json:"dividas_irpf"`
	FixedAssets           []FixedAssetEntry           `json:"bens_imobilizados"`
	FinancialApplications []FinancialApplicationEntry `json:"aplicacoes_financeiras"`
	PensionPlans          []PensionPlanEntry          `json:"planos_previdencia"`
	BankAccounts          []BankAccountEntry          `json:"contas_bancarias"`
	Debts                 []GenericDebtEntry          `json:"dividas"`
}

// Header carries the declaration-level totals.
type Header struct {
	AmountToPay        Amount `json:"valor_pagar"`
	AmountToRefund     Amount `json:"valor_restituir"`
	ReceiptID          Text   `json:"numero_recibo"`
	SubmissionDeadline Date   `json:"prazo_entrega"`
}

type IncomeEntry struct {
	PayerName      Text   `json:"fonte_pagadora"`
	PayerTaxID     Text   `json:"cnpj"`
	Category       Text   `json:"categoria"`
	GrossValue     Amount `json:"valor"`
	WithheldTax    Amount `json:"irrf"`
	SocialSecurity Amount `json:"contribuicao_previdenciaria"`
	Year           Int    `json:"ano"`
}

type AssetRightEntry struct {
	Code             Text   `json:"codigo"`
	Category         Text   `json:"categoria"`
	Description      Text   `json:"discriminacao"`
	PriorYearValue   Amount `json:"situacao_ano_anterior"`
	CurrentYearValue Amount `json:"situacao_ano_atual"`
}

type DeclarationDebtEntry struct {
	Creditor         Text   `json:"credor"`
	Description      Text   `json:"discriminacao"`
	PriorYearValue   Amount `json:"situacao_ano_anterior"`
	CurrentYearValue Amount `json:"situacao_ano_atual"`
}

type FixedAssetEntry struct {
	Name             Text   `json:"nome"`
	Category         Text   `json:"categoria"`
	Description      Text   `json:"descricao"`
	AcquisitionValue Amount `json:"valor_aquisicao"`
	CurrentValue     Amount `json:"valor_atual"`
	AcquisitionDate  Date   `json:"data_aquisicao"`
	Location         Text   `json:"localizacao"`
	Status           Text   `json:"status"`
}

type FinancialApplicationEntry struct {
	Name            Text   `json:"nome"`
	Type            Text   `json:"tipo"`
	Institution     Text   `json:"instituicao"`
	AppliedValue    Amount `json:"valor_aplicado"`
	CurrentValue    Amount `json:"valor_atual"`
	ApplicationDate Date   `json:"data_aplicacao"`
	MaturityDate    Date   `json:"data_vencimento"`
	Rate            Amount `json:"taxa"`
	RateType        Text   `json:"tipo_taxa"`
	Liquidity       Text   `json:"liquidez"`
}

type PensionPlanEntry struct {
	Name                Text   `json:"nome"`
	Type                Text   `json:"tipo"`
	Institution         Text   `json:"instituicao"`
	AccumulatedValue    Amount `json:"valor_acumulado"`
	MonthlyContribution Amount `json:"contribuicao_mensal"`
	StartDate           Date   `json:"data_inicio"`
	RedemptionAge       Int    `json:"idade_resgate"`
	AdminFeeRate        Amount `json:"taxa_administracao"`
	AccumulatedReturn   Amount `json:"rentabilidade_acumulada"`
	Active              Flag   `json:"ativo"`
}

type BankAccountEntry struct {
	BankName      Text   `json:"banco"`
	Branch        Text   `json:"agencia"`
	AccountNumber Text   `json:"numero_conta"`
	AccountType   Text   `json:"tipo_conta"`
	Balance       Amount `json:"saldo_atual"`
	CreditLimit   Amount `json:"limite_credito"`
	Active        Flag   `json:"ativo"`
}

type GenericDebtEntry struct {
	Name               Text   `json:"nome"`
	Type               Text   `json:"tipo"`
	Creditor           Text   `json:"credor"`
	OriginalValue      Amount `json:"valor_original"`
	OutstandingBalance Amount `json:"saldo_devedor"`
	InstallmentValue   Amount `json:"valor_parcela"`
	InstallmentCount   Int    `json:"total_parcelas"`
	InstallmentsPaid   Int    `json:"parcelas_pagas"`
	InterestRate       Amount `json:"taxa_juros"`
	ContractDate       Date   `json:"data_contratacao"`
	DueDate            Date   `json:"data_vencimento"`
	Status             Text   `json:"status"`
}

// Counts returns the number of entries per collection.
func (p *Payload) Counts() map[domain.Collection]int {
	return map[domain.Collection]int{
		domain.CollectionIncome:                len(p.Income),
		domain.CollectionAssetsRights:          len(p.AssetsRights),
		domain.CollectionDeclarationDebts:      len(p.DeclarationDebts),
		domain.CollectionFixedAssets:           len(p.FixedAssets),
		domain.CollectionFinancialApplications: len(p.FinancialApplications),
		domain.CollectionPensionPlans:          len(p.PensionPlans),
		domain.CollectionBankAccounts:          len(p.BankAccounts),
		domain.CollectionDebts:                 len(p.Debts),
	}
}

// Decode converts normalized JSON text into a Payload. Structural mismatches,
// such as a collection that is not an array or an entry that is not an object,
// fail with MappingFailed.
func Decode(clean string) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(clean), &p); err != nil {
		return nil, domain.NewError(domain.CodeMappingFailed, "decode extraction payload", err)
	}
	return &p, nil
}
