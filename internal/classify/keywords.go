package classify

import (
	"strings"

	"mesadesk.app/triage/internal/model"
)

// KeywordProviderName labels opinions from the deterministic baseline.
const KeywordProviderName = "keywords"

// Keyword sets per category. The urgent and problem sets decide incident-ness;
// the rest only contribute evidence and categorization.
var (
	urgentKeywords = []string{
		"urgente", "no funciona", "cerrado", "sistema caido", "sistema caído",
		"no pueden vender", "error",
	}
	problemKeywords = []string{
		"problema", "ayuda", "falla",
	}
	technicalKeywords = []string{
		"pos", "sistema", "software", "aplicacion", "aplicación", "red", "internet",
	}
	billingKeywords = []string{
		"factura", "cobro", "pago", "cargo", "reembolso",
	}
	operationalKeywords = []string{
		"tienda", "inventario", "producto", "cliente", "venta",
	}
)

// ClassifyKeywords is the deterministic, side-effect-free keyword baseline.
// It exists independently of provider availability and is used both as a
// consensus counterpart when only one LLM provider is configured and as a
// network-free test oracle.
func ClassifyKeywords(text string) model.ClassificationOpinion {
	lower := strings.ToLower(text)

	var triggers []string
	match := func(keywords []string) bool {
		found := false
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				triggers = append(triggers, kw)
				found = true
			}
		}
		return found
	}

	isUrgent := match(urgentKeywords)
	isProblem := match(problemKeywords)
	isTechnical := match(technicalKeywords)
	isBilling := match(billingKeywords)
	isOperational := match(operationalKeywords)

	isIncident := isUrgent || isProblem

	var category model.Category
	var priority model.Priority
	switch {
	case isUrgent:
		category = model.CategoryUrgent
		priority = model.PriorityUrgent
	case isTechnical:
		category = model.CategoryTechnical
		priority = model.PriorityNormal
	case isBilling:
		category = model.CategoryBilling
		priority = model.PriorityNormal
	case isOperational:
		category = model.CategoryOperational
		priority = model.PriorityNormal
	default:
		category = model.CategoryGeneralInquiry
		priority = model.PriorityLow
	}

	confidence := 0.3
	if isIncident {
		confidence = 0.2 * float64(len(triggers))
		if confidence > 0.8 {
			confidence = 0.8
		}
	}

	return model.ClassificationOpinion{
		IsIncident: &isIncident,
		Confidence: confidence,
		Category:   &category,
		Priority:   &priority,
		Metadata: map[string]any{
			"trigger_words": triggers,
		},
		Provider: KeywordProviderName,
	}
}
