package analysis

// Request and response envelopes for the supported vendors. Each vendor has
// its own shape; extracting the generated text from them is boilerplate, not
// analysis logic.

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the OpenAI-compatible chat completions request used by
// DeepSeek, Mistral, OpenRouter and OpenAI.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type cloudflareRequest struct {
	Messages []chatMessage `json:"messages"`
}

type cloudflareResponse struct {
	Result struct {
		Response string `json:"response"`
	} `json:"result"`
}

type huggingFaceRequest struct {
	Inputs     string                `json:"inputs"`
	Parameters huggingFaceParameters `json:"parameters"`
}

type huggingFaceParameters struct {
	MaxNewTokens int `json:"max_new_tokens"`
}

type huggingFaceGeneration struct {
	GeneratedText string `json:"generated_text"`
}
