package domain

// Category is a human-facing message bucket from a closed set.
type Category string

const (
	CategoryFinancial   Category = "financial"
	CategoryFamily      Category = "family"
	CategoryDelivery    Category = "delivery"
	CategoryHealth      Category = "health"
	CategoryWork        Category = "work"
	CategoryEvents      Category = "events"
	CategoryAutomated   Category = "automated"
	CategoryGeneralInfo Category = "general_info"
	CategoryOther       Category = "other"
)

// Categories lists the closed set in tie-break order.
var Categories = []Category{
	CategoryFinancial,
	CategoryFamily,
	CategoryDelivery,
	CategoryHealth,
	CategoryWork,
	CategoryEvents,
	CategoryAutomated,
	CategoryGeneralInfo,
	CategoryOther,
}

var categoryLabels = map[Category]string{
	CategoryFinancial:   "💰 Financeiro",
	CategoryFamily:      "👨‍👩‍👧 Família e Amigos",
	CategoryDelivery:    "📦 Entregas e Compras",
	CategoryHealth:      "🏥 Saúde",
	CategoryWork:        "💼 Trabalho e Negócios",
	CategoryEvents:      "🎉 Eventos e Convites",
	CategoryAutomated:   "🤖 Mensagens Automáticas",
	CategoryGeneralInfo: "📰 Informação Geral",
	CategoryOther:       "❓ Outros",
}

// Label is the display name used in digests.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return categoryLabels[CategoryOther]
}

// ParseCategory accepts a category id or its display label.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if s == string(c) || s == categoryLabels[c] {
			return c, true
		}
	}
	return CategoryOther, false
}

// Routing is the delivery channel for a message.
type Routing string

const (
	RoutingImmediate Routing = "immediate"
	RoutingDigest    Routing = "digest"
	RoutingSpam      Routing = "spam"
)

// ParseRouting validates a routing value.
func ParseRouting(s string) (Routing, bool) {
	switch r := Routing(s); r {
	case RoutingImmediate, RoutingDigest, RoutingSpam:
		return r, true
	default:
		return RoutingDigest, false
	}
}

// ClassificationResult is the final artifact of category routing.
type ClassificationResult struct {
	Category   Category `json:"category"`
	Summary    string   `json:"summary"`
	Routing    Routing  `json:"routing"`
	Reasoning  string   `json:"reasoning"`
	Confidence float64  `json:"confidence"`
}

// CategoryQuery is what the category classifier receives.
type CategoryQuery struct {
	Message           NormalizedMessage
	KeywordCategory   Category
	UrgencyDecision   Decision
	UrgencyConfidence float64
}

// CategoryVerdict is the raw category classifier response.
type CategoryVerdict struct {
	Category   string  `json:"category"`
	Summary    string  `json:"summary"`
	Routing    string  `json:"routing"`
	Reasoning  string  `json:"reasoning"`
	Confidence float64 `json:"confidence"`
}
