package routing

import (
	"strings"
	"unicode"

	"github.com/edgard/jaiminho/internal/domain"
)

// categoryKeywords maps each category to whole-word keywords or phrases in
// pt, en and es. Matching is done on normalized word sequences.
var categoryKeywords = map[domain.Category][]string{
	domain.CategoryFinancial: {
		"banco", "conta", "pix", "boleto", "fatura", "pagamento", "cartão", "transferência",
		"bank", "payment", "invoice", "transfer", "bill",
		"pago", "factura", "tarjeta", "cuenta", "transferencia",
	},
	domain.CategoryFamily: {
		"mãe", "pai", "filho", "filha", "irmão", "irmã", "vovó", "vovô", "família", "saudade", "saudades",
		"mom", "dad", "son", "daughter", "family", "grandma", "grandpa",
		"mamá", "papá", "hijo", "hija", "familia", "abuela", "abuelo",
	},
	domain.CategoryDelivery: {
		"entrega", "pedido", "rastreio", "encomenda", "correios", "frete", "enviado",
		"delivery", "order", "package", "shipped", "tracking", "shipment",
		"envío", "paquete", "repartidor",
	},
	domain.CategoryHealth: {
		"médico", "médica", "consulta", "exame", "hospital", "farmácia", "receita", "dentista",
		"doctor", "appointment", "pharmacy", "clinic", "prescription",
		"cita", "salud", "farmacia", "receta",
	},
	domain.CategoryWork: {
		"reunião", "trabalho", "projeto", "cliente", "relatório", "escritório",
		"meeting", "project", "report", "client", "office",
		"reunión", "trabajo", "proyecto", "informe", "oficina",
	},
	domain.CategoryEvents: {
		"festa", "aniversário", "convite", "casamento", "evento",
		"party", "birthday", "invitation", "wedding", "event",
		"fiesta", "cumpleaños", "invitación", "boda",
	},
	domain.CategoryAutomated: {
		"não responda", "mensagem automática", "resposta automática",
		"no reply", "noreply", "do not reply", "automated message", "auto reply",
		"no responda", "mensaje automático",
	},
	domain.CategoryGeneralInfo: {
		"notícia", "notícias", "informativo", "comunicado",
		"news", "announcement", "bulletin",
		"noticia", "noticias", "aviso importante",
	},
}

// normalizeWords lowercases s and rejoins its letter/digit runs with single
// spaces, padded so whole-word lookups can use " kw ".
func normalizeWords(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return " " + strings.Join(fields, " ") + " "
}

type categoryPhrases struct {
	category domain.Category
	phrases  []string
}

type keywordIndex []categoryPhrases

func buildKeywordIndex(table map[domain.Category][]string) keywordIndex {
	var idx keywordIndex
	for _, c := range domain.Categories {
		words, ok := table[c]
		if !ok {
			continue
		}
		phrases := make([]string, 0, len(words))
		for _, w := range words {
			phrases = append(phrases, normalizeWords(w))
		}
		idx = append(idx, categoryPhrases{category: c, phrases: phrases})
	}
	return idx
}

// match returns the category with most keyword hits. Ties go to the earlier
// category in domain.Categories; no hits yields CategoryOther.
func (idx keywordIndex) match(text string) (domain.Category, int) {
	normalized := normalizeWords(text)
	best, bestHits := domain.CategoryOther, 0
	for _, entry := range idx {
		hits := 0
		for _, p := range entry.phrases {
			if strings.Contains(normalized, p) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = entry.category, hits
		}
	}
	return best, bestHits
}
