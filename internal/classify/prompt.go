package classify

import (
	"encoding/json"
	"fmt"
)

const systemPrompt = `You are an expert support ticket classifier for a retail support system.

RETAIL CONTEXT:
- Messages come from retail stores and POS operators, mostly in Spanish
- Common issues: store closures, POS failures, inventory problems, payment issues
- Urgent signals: "urgente", "no funciona", "cerrado", "sistema caido", "no pueden vender"

CLASSIFICATION CRITERIA:
- is_support_incident: true only for technical/operational problems affecting business operations
- NOT incidents: general questions, casual conversation, already resolved issues

URGENCY:
- critical: store cannot operate, system down, prevents sales
- high: degraded operations needing prompt attention
- medium: needs attention but operations continue
- low: general questions or minor issues

Always respond with valid JSON matching the requested schema. Summary and
suggested_response must be written in Spanish.`

// BuildPrompt produces the provider-agnostic user prompt embedding the
// message text and its serialized context.
func BuildPrompt(text string, context map[string]any) string {
	ctxJSON := "{}"
	if len(context) > 0 {
		if b, err := json.Marshal(context); err == nil {
			ctxJSON = string(b)
		}
	}

	return fmt.Sprintf(`Analyze the following support message and determine if it represents a support incident that requires assistance.

Message: %q

Context: %s

Classify the message. Respond only with valid JSON.`, text, ctxJSON)
}
