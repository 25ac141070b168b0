package llmclient

// ModelInfo describes a known model in the catalog.
type ModelInfo struct {
	ID            string   `json:"id"`
	Provider      string   `json:"provider"`
	DisplayName   string   `json:"display_name"`
	ContextWindow int      `json:"context_window"`
	MaxOutput     int      `json:"max_output"`
	Aliases       []string `json:"aliases,omitempty"`
}

// Models is the built-in model catalog. Entries are ordered newest-first
// per provider; GetLatestModel relies on that order.
var Models = []ModelInfo{
	// OpenAI
	{
		ID: "gpt-5.2", Provider: "openai", DisplayName: "GPT-5.2",
		ContextWindow: 1047576, MaxOutput: 32768,
		Aliases: []string{"gpt5"},
	},
	{
		ID: "gpt-5.2-mini", Provider: "openai", DisplayName: "GPT-5.2 Mini",
		ContextWindow: 1047576, MaxOutput: 16384,
		Aliases: []string{"gpt5-mini"},
	},

	// Anthropic
	{
		ID: "claude-sonnet-4-5", Provider: "anthropic", DisplayName: "Claude Sonnet 4.5",
		ContextWindow: 200000, MaxOutput: 16384,
		Aliases: []string{"sonnet", "claude-sonnet"},
	},

	// Gemini
	{
		ID: "gemini-3-flash-preview", Provider: "gemini", DisplayName: "Gemini 3 Flash (Preview)",
		ContextWindow: 1048576, MaxOutput: 65536,
		Aliases: []string{"gemini-flash", "gemini-3-flash"},
	},
	{
		ID: "gemini-3-pro-preview", Provider: "gemini", DisplayName: "Gemini 3 Pro (Preview)",
		ContextWindow: 1048576, MaxOutput: 65536,
		Aliases: []string{"gemini-pro", "gemini-3-pro"},
	},
}

// GetModelInfo returns the catalog entry for a model, or nil if unknown.
func GetModelInfo(modelID string) *ModelInfo {
	for i := range Models {
		if Models[i].ID == modelID {
			return &Models[i]
		}
		for _, alias := range Models[i].Aliases {
			if alias == modelID {
				return &Models[i]
			}
		}
	}
	return nil
}

// ListModels returns all known models, optionally filtered by provider.
func ListModels(provider string) []ModelInfo {
	if provider == "" {
		result := make([]ModelInfo, len(Models))
		copy(result, Models)
		return result
	}
	var result []ModelInfo
	for _, m := range Models {
		if m.Provider == provider {
			result = append(result, m)
		}
	}
	return result
}

// GetLatestModel returns the first listed model for a provider, or nil.
func GetLatestModel(provider string) *ModelInfo {
	for i := range Models {
		if Models[i].Provider == provider {
			return &Models[i]
		}
	}
	return nil
}
