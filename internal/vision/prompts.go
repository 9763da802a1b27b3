package vision

import _ "embed"

//go:embed prompts/fr.txt
var promptFR string

//go:embed prompts/en.txt
var promptEN string

// PromptFor returns the chart-analysis prompt for the given language.
// Unknown languages fall back to French, the product's primary locale.
func PromptFor(language string) string {
	switch language {
	case "en":
		return promptEN
	default:
		return promptFR
	}
}
