package ollama

import "fmt"

func buildSystemPrompt(contextBlock string) string {
	const base = `You are a food recommendation assistant.
Suggest dishes only from the catalog context below and explain briefly why each fits.
If the context has no suitable dish, say so directly instead of inventing one.`

	if contextBlock == "" {
		return base + "\n\nCatalog context: (no matching items)"
	}
	return fmt.Sprintf("%s\n\nCatalog context:\n%s", base, contextBlock)
}
