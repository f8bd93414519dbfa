package llm

// Mistral serves an OpenAI-compatible chat completions API, so the client
// is the regular OpenAI one pointed at the Mistral endpoint.

const MistralBaseURL = "https://api.mistral.ai/v1"

func NewMistral(apiKey, model string) *OpenAIClient {
	return NewOpenAI(apiKey, MistralBaseURL, model, "", "")
}
