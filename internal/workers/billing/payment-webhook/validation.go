package paymentwebhook

// GetInputSchema describes the webhook event body for schema validation.
func GetInputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []string{"eventId", "type", "clientId"},
		"properties": map[string]interface{}{
			"eventId": map[string]interface{}{
				"type":      "string",
				"minLength": 1,
				"maxLength": 128,
			},
			"type": map[string]interface{}{
				"type": "string",
				"enum": []string{"payment.succeeded", "payment.failed"},
			},
			"clientId": map[string]interface{}{
				"type":    "string",
				"pattern": "^[A-Za-z0-9_-]{1,64}$",
			},
			"amount": map[string]interface{}{
				"type":    "number",
				"minimum": 0,
			},
			"cycleHint": map[string]interface{}{
				"type": "string",
				"enum": []string{"monthly", "quarterly", "annual"},
			},
			"attemptCount": map[string]interface{}{
				"type":    "integer",
				"minimum": 0,
			},
		},
		"additionalProperties": false,
	}
}
