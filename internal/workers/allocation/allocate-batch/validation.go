package allocatebatch

// GetInputSchema describes the request body for schema validation.
func GetInputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []string{"clientId", "count", "windowStart", "windowEnd", "platform"},
		"properties": map[string]interface{}{
			"clientId": map[string]interface{}{
				"type":    "string",
				"pattern": "^[A-Za-z0-9_-]{1,64}$",
			},
			"count": map[string]interface{}{
				"type":    "integer",
				"minimum": 1,
				"maximum": 365,
			},
			"period": map[string]interface{}{
				"type": "string",
				"enum": []string{"even", "weekdays"},
			},
			"windowStart": map[string]interface{}{
				"type":    "string",
				"pattern": `^\d{4}-\d{2}-\d{2}$`,
			},
			"windowEnd": map[string]interface{}{
				"type":    "string",
				"pattern": `^\d{4}-\d{2}-\d{2}$`,
			},
			"platform": map[string]interface{}{
				"type":      "string",
				"minLength": 1,
				"maxLength": 50,
			},
			"topic": map[string]interface{}{
				"type":      "string",
				"maxLength": 200,
			},
		},
		"additionalProperties": false,
	}
}
