package urgency

import (
	"regexp"

	"github.com/edgard/jaiminho/internal/domain"
)

// Rule names recorded in RuleMatch.RuleName.
const (
	RuleGroupMessage = "group_message"
	RuleSecurity     = "security_content"
	RuleFinancial    = "financial_content"
	RuleMarketing    = "marketing_content"
	RuleEmptyOrShort = "empty_or_short"
	RuleNoMatch      = "no_match"
)

// RuleSet is one row of the evidence table: keyword sets per language plus
// compiled patterns, and how a hit is scored.
type RuleSet struct {
	Name       string
	Label      string
	Decision   domain.Decision
	Keywords   map[string][]string
	Patterns   []*regexp.Regexp
	MinMatches int
	Base       float64
	Step       float64
	Max        float64
}

// DefaultRuleSets returns the content rules in evaluation order. Security runs
// before financial so a verification code inside a banking message is reported
// as security evidence.
func DefaultRuleSets() []RuleSet {
	return []RuleSet{securityRules(), financialRules(), marketingRules()}
}

func securityRules() RuleSet {
	return RuleSet{
		Name:     RuleSecurity,
		Label:    "security",
		Decision: domain.DecisionUrgent,
		Keywords: map[string][]string{
			"pt": {
				"senha", "código", "autenticação", "verificação", "verificar",
				"confirmar", "confirmação", "token", "2fa", "otp",
				"alerta", "aviso", "emergência", "urgente", "crítico",
				"atenção", "ação requerida", "ação necessária", "risco",
				"expira", "expiração", "prazo limite",
			},
			"en": {
				"password", "authentication", "verification", "verify",
				"confirm", "confirmation", "token", "2fa", "otp",
				"alert", "warning", "emergency", "urgent", "critical",
				"attention", "action required", "immediately",
				"expires", "expiration", "deadline", "time limit",
			},
			"es": {
				"contraseña", "código", "autenticación", "verificación", "verificar",
				"confirmar", "confirmación", "token", "2fa",
				"alerta", "advertencia", "emergencia", "urgente", "crítico",
				"atención", "acción requerida", "riesgo",
				"expira", "expiración", "plazo", "límite de tiempo",
			},
		},
		// A bare number is evidence only next to code vocabulary, so years,
		// street numbers and order ids stay undecided.
		Patterns: compileAll(
			`(?i)\b(?:código|codigo|code|otp|pin|token|senha|contraseña|password|verificação|verification|verificación)\b\D{0,30}?\b\d{4,8}\b`,
			`\b(?:[A-Z]+[0-9]|[0-9]+[A-Z])[A-Z0-9]{4,}\b`,
			`(?i)\b(?:senha|código|codigo|contraseña|token|pin|password|code)\b[:=\s]+['"]?\w+`,
			`(?i)\b(?:expira|vence)\s+(?:em|por|até|dentro|en|hasta)`,
			`(?i)\bexpires\s+(?:in|by|on)\b`,
			`(?i)\b(?:confirme|verifique|acesse)\s+(?:sua|seu|a|o)\s+(?:senha|código|conta)`,
			`(?i)\b(?:confirm|verify|access)\s+(?:your|the)\s+(?:password|code|account)\b`,
			`(?i)\b(?:confirma|verifica|accede)\s+(?:su|tu|el|la)\s+(?:contraseña|código|cuenta)`,
		),
		MinMatches: 1,
		Base:       0.80,
		Step:       0.05,
		Max:        0.99,
	}
}

func financialRules() RuleSet {
	return RuleSet{
		Name:     RuleFinancial,
		Label:    "financial",
		Decision: domain.DecisionUrgent,
		Keywords: map[string][]string{
			"pt": {
				"banco", "conta", "saldo", "transferência", "pix",
				"cartão", "crédito", "débito", "fatura", "boleto", "pagamento",
				"transação", "compra", "cobrança", "estorno", "aprovado", "negado",
				"pendente", "processando", "r$", "brl",
				"fraude", "suspeito", "bloqueio", "bloqueado", "tentativa",
				"acesso não autorizado", "roubo", "furto",
			},
			"en": {
				"bank", "account", "balance", "transfer", "credit card", "credit",
				"debit", "invoice", "payment", "transaction", "purchase", "charge",
				"refund", "approved", "denied", "pending", "usd",
				"fraud", "suspicious", "blocked", "unauthorized access", "theft",
			},
			"es": {
				"banco", "cuenta", "saldo", "transferencia", "tarjeta", "crédito",
				"débito", "factura", "pago", "transacción", "cobro", "devolución",
				"aprobado", "pendiente", "procesando", "mxn",
				"fraude", "sospechoso", "bloqueado", "intento", "acceso no autorizado", "hurto",
			},
		},
		Patterns: compileAll(
			`(?i)(?:R\$|US\$|[$€£¥¢₹₽])\s*\d[\d.,]*`,
			`(?i)\d[\d.,]*\s*(?:reais|dólares|dolares|euros|pesos)\b`,
			`\b\d{4}\s*\d{4}\s*\d{4}\s*\d{4}\b`,
			`(?i)\bPIX\b`,
			`(?i)\b(?:transferência|transfer|pago|pagamento)\s+(?:de|no valor)`,
			`(?i)\b(?:fatura|boleto|factura)\s+(?:vence|vencida|venceu)`,
			`(?i)\b(?:transfer|payment|invoice)\s+(?:of|in|amount)\b`,
			`(?i)\b(?:bill|receipt|balance)\s+(?:due|updated)\b`,
			`(?i)\b(?:transferencia|factura)\s+(?:de|en|por)\b`,
			`(?i)\b(?:recibo|saldo|cobro)\s+(?:vencido|actualizado)\b`,
		),
		MinMatches: 1,
		Base:       0.85,
		Step:       0.05,
		Max:        0.99,
	}
}

func marketingRules() RuleSet {
	return RuleSet{
		Name:     RuleMarketing,
		Label:    "marketing",
		Decision: domain.DecisionNotUrgent,
		Keywords: map[string][]string{
			"pt": {
				"promoção", "oferta", "desconto", "newsletter", "campanha", "anúncio",
				"não perca", "black friday", "liquidação", "cupom", "voucher", "grátis",
				"ganhe", "sorteio", "concurso", "cancelar inscrição", "sair da lista",
				"clique aqui", "saiba mais", "conheça", "exclusivo", "limitado",
				"apenas hoje", "enquanto durar", "acesse agora",
			},
			"en": {
				"promotion", "offer", "discount", "newsletter", "campaign", "advertisement",
				"don't miss", "black friday", "cyber monday", "coupon", "voucher", "for free",
				"raffle", "contest", "unsubscribe", "click here", "learn more",
				"exclusive", "limited", "today only", "while stocks last", "access now",
			},
			"es": {
				"promoción", "oferta", "descuento", "boletín", "campaña", "anuncio",
				"no pierda", "viernes negro", "liquidación", "cupón", "gratis",
				"sorteo", "concurso", "cancelar suscripción", "salir de la lista",
				"haz clic aquí", "exclusivo", "limitado", "solo hoy", "accede ahora",
			},
		},
		Patterns: compileAll(
			`(?i)\b\d+%\s*(?:OFF|DESC|DESCONTO|DESCUENTO|DE\s+DESC)`,
			`(?i)\b(?:até|por|com)\s+\d+%`,
			`(?i)\b(?:up\s+to|save|get)\s+\d+%`,
			`(?i)\b(?:hasta|ahorra|consigue)\s+\d+%`,
			`(?i)\b(?:compre\s+\d+\s+leve|buy\s+\d+\s+get|compra\s+\d+\s+lleva)\s+\d+\b`,
			`(?i)\b(?:não perca|aproveite|don't miss|take advantage|no pierdas?|aprovecha)`,
			`(?i)\b(?:apenas\s+hoje|today\s+only|solo\s+hoy|por\s+tempo\s+limitado|while\s+stocks\s+last|mientras\s+dure)`,
		),
		MinMatches: 2,
		Base:       0.75,
		Step:       0.05,
		Max:        0.95,
	}
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		out[i] = regexp.MustCompile(expr)
	}
	return out
}
