package models

// Turn is one immutable conversation entry.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatRequest is the single-endpoint request contract.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// ChatResponse is the single-endpoint response contract.
type ChatResponse struct {
	Response string                 `json:"response"`
	Products []ProductCard          `json:"products"`
	Steps    []Step                 `json:"steps"`
	Metadata map[string]interface{} `json:"metadata"`
	Cached   bool                   `json:"cached"`
}

// Step is one instruction entry in a response.
type Step struct {
	Step   int    `json:"step"`
	Title  string `json:"title,omitempty"`
	Detail string `json:"detail"`
	Safety bool   `json:"safety,omitempty"`
}

// Answer is the terminal pipeline result that gets cached and rendered into
// a ChatResponse.
type Answer struct {
	Response string                 `json:"response"`
	Products []ProductCard          `json:"products"`
	Steps    []Step                 `json:"steps"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ToChatResponse renders the answer for the endpoint contract.
func (a *Answer) ToChatResponse(cached bool) ChatResponse {
	products := a.Products
	if products == nil {
		products = []ProductCard{}
	}
	steps := a.Steps
	if steps == nil {
		steps = []Step{}
	}
	metadata := a.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return ChatResponse{
		Response: a.Response,
		Products: products,
		Steps:    steps,
		Metadata: metadata,
		Cached:   cached,
	}
}
