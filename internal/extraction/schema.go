package extraction

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/triad3/irpf-import/internal/domain"
)

type fieldKind string

const (
	kindNumber  fieldKind = "number"
	kindInteger fieldKind = "integer"
	kindString  fieldKind = "string"
	kindDate    fieldKind = "date"
	kindBoolean fieldKind = "boolean"
)

type field struct {
	name string
	kind fieldKind
	desc string
}

var headerFields = []field{
	{"valor_pagar", kindNumber, "imposto a pagar"},
	{"valor_restituir", kindNumber, "imposto a restituir"},
	{"numero_recibo", kindString, "número do recibo de entrega"},
	{"prazo_entrega", kindDate, "data limite de entrega"},
}

var collectionFields = map[domain.Collection][]field{
	domain.CollectionIncome: {
		{"fonte_pagadora", kindString, "nome da fonte pagadora"},
		{"cnpj", kindString, "CNPJ/CPF da fonte pagadora"},
		{"categoria", kindString, "tributavel, isento, exclusivo ou outro"},
		{"valor", kindNumber, "rendimento bruto"},
		{"irrf", kindNumber, "imposto retido na fonte"},
		{"contribuicao_previdenciaria", kindNumber, "contribuição previdenciária oficial"},
		{"ano", kindInteger, "ano-calendário"},
	},
	domain.CollectionAssetsRights: {
		{"codigo", kindString, "código do bem"},
		{"categoria", kindString, "grupo do bem"},
		{"discriminacao", kindString, "discriminação"},
		{"situacao_ano_anterior", kindNumber, "valor em 31/12 do ano anterior"},
		{"situacao_ano_atual", kindNumber, "valor em 31/12 do ano-calendário"},
	},
	domain.CollectionDeclarationDebts: {
		{"credor", kindString, "credor"},
		{"discriminacao", kindString, "discriminação"},
		{"situacao_ano_anterior", kindNumber, "saldo em 31/12 do ano anterior"},
		{"situacao_ano_atual", kindNumber, "saldo em 31/12 do ano-calendário"},
	},
	domain.CollectionFixedAssets: {
		{"nome", kindString, "nome curto"},
		{"categoria", kindString, "imovel, veiculo, terreno ou outro"},
		{"descricao", kindString, "descrição"},
		{"valor_aquisicao", kindNumber, "valor de aquisição"},
		{"valor_atual", kindNumber, "valor atual"},
		{"data_aquisicao", kindDate, "data de aquisição"},
		{"localizacao", kindString, "endereço ou cidade"},
		{"status", kindString, "ativo ou vendido"},
	},
	domain.CollectionFinancialApplications: {
		{"nome", kindString, "nome da aplicação"},
		{"tipo", kindString, "CDB, LCI, LCA, Tesouro, Ações, Fundos, Poupança..."},
		{"instituicao", kindString, "instituição financeira"},
		{"valor_aplicado", kindNumber, "valor aplicado"},
		{"valor_atual", kindNumber, "valor atual"},
		{"data_aplicacao", kindDate, "data da aplicação"},
		{"data_vencimento", kindDate, "data de vencimento"},
		{"taxa", kindNumber, "taxa contratada"},
		{"tipo_taxa", kindString, "pre, pos ou hibrida"},
		{"liquidez", kindString, "diaria, no vencimento..."},
	},
	domain.CollectionPensionPlans: {
		{"nome", kindString, "nome do plano"},
		{"tipo", kindString, "PGBL ou VGBL"},
		{"instituicao", kindString, "seguradora ou entidade"},
		{"valor_acumulado", kindNumber, "saldo acumulado"},
		{"contribuicao_mensal", kindNumber, "contribuição mensal"},
		{"data_inicio", kindDate, "data de início"},
		{"idade_resgate", kindInteger, "idade prevista para resgate"},
		{"taxa_administracao", kindNumber, "taxa de administração (%)"},
		{"rentabilidade_acumulada", kindNumber, "rentabilidade acumulada (%)"},
		{"ativo", kindBoolean, "plano ativo"},
	},
	domain.CollectionBankAccounts: {
		{"banco", kindString, "nome do banco"},
		{"agencia", kindString, "agência"},
		{"numero_conta", kindString, "número da conta"},
		{"tipo_conta", kindString, "corrente, poupanca ou investimento"},
		{"saldo_atual", kindNumber, "saldo em 31/12"},
		{"limite_credito", kindNumber, "limite de crédito"},
		{"ativo", kindBoolean, "conta ativa"},
	},
	domain.CollectionDebts: {
		{"nome", kindString, "nome curto da dívida"},
		{"tipo", kindString, "financiamento, emprestimo, cartao ou outro"},
		{"credor", kindString, "credor"},
		{"valor_original", kindNumber, "valor contratado"},
		{"saldo_devedor", kindNumber, "saldo devedor"},
		{"valor_parcela", kindNumber, "valor da parcela"},
		{"total_parcelas", kindInteger, "número total de parcelas"},
		{"parcelas_pagas", kindInteger, "parcelas pagas"},
		{"taxa_juros", kindNumber, "taxa de juros (%)"},
		{"data_contratacao", kindDate, "data de contratação"},
		{"data_vencimento", kindDate, "data de vencimento"},
		{"status", kindString, "ativa ou quitada"},
	},
}

func fieldSchema(f field) map[string]any {
	s := map[string]any{"description": f.desc}
	switch f.kind {
	case kindNumber:
		s["type"] = []string{"number", "string", "null"}
	case kindInteger:
		s["type"] = []string{"integer", "string", "null"}
	case kindBoolean:
		s["type"] = []string{"boolean", "string", "null"}
	case kindDate:
		s["type"] = []string{"string", "null"}
		s["description"] = f.desc + " (YYYY-MM-DD)"
	default:
		s["type"] = []string{"string", "number", "null"}
	}
	return s
}

func objectSchema(fields []field) map[string]any {
	props := make(map[string]any, len(fields))
	for _, f := range fields {
		props[f.name] = fieldSchema(f)
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
	}
}

// Schema returns the JSON Schema of the extraction payload: one header object
// and one array per destination collection.
func Schema() map[string]any {
	props := map[string]any{
		"declaracao": objectSchema(headerFields),
	}
	for _, c := range domain.AllCollections {
		props[string(c)] = map[string]any{
			"type":  []string{"array", "null"},
			"items": objectSchema(collectionFields[c]),
		}
	}
	return map[string]any{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"type":       "object",
		"properties": props,
	}
}

// SystemInstruction builds the instruction sent with every extraction request.
func SystemInstruction(taxYear int) string {
	schemaJSON, err := json.MarshalIndent(Schema(), "", "  ")
	if err != nil {
		// Schema is built from static data.
		panic(fmt.Sprintf("marshal extraction schema: %v", err))
	}

	var b strings.Builder
	b.WriteString("You are an extraction engine for Brazilian IRPF (Imposto de Renda Pessoa Física) declarations.\n\n")
	fmt.Fprintf(&b, "The user message is the text of the declaration for tax year %d.\n\n", taxYear)
	b.WriteString("Task:\n")
	b.WriteString("- Extract every income line (rendimentos), every asset/right line (bens_direitos) and every debt line (dividas_irpf).\n")
	b.WriteString("- Classify the household's patrimony into bens_imobilizados, aplicacoes_financeiras, planos_previdencia, contas_bancarias and dividas.\n")
	b.WriteString("- Fill \"declaracao\" with the amount to pay, the amount to refund, the receipt number and the submission deadline.\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Output STRICT JSON only: a single object matching the schema below.\n")
	b.WriteString("- Numbers use a dot as decimal separator and no thousand separators.\n")
	b.WriteString("- Dates use YYYY-MM-DD.\n")
	b.WriteString("- Use null for values that are not in the document; use [] for empty collections.\n")
	b.WriteString("- Do NOT wrap the response in code fences.\n\n")
	b.WriteString("JSON Schema:\n")
	b.Write(schemaJSON)
	b.WriteString("\n")

	return b.String()
}
