package embedder

// Provider identifies an embedding backend.
type Provider string

const ProviderOpenAI Provider = "openai"

// Config describes an embedding model endpoint.
type Config struct {
	ID            string
	Provider      Provider
	Model         string
	APIKey        string
	BaseURL       string
	Dimension     int
	BatchSize     int
	StripNewLines bool
}
