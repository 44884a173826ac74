package agent

// DefaultModel is used whenever a session asks for a model outside the
// supported set.
const DefaultModel = "gemini-1.5-pro"

// Provider family names used by the registry.
const (
	familyGoogle = "google"
	familyGroq   = "groq"
)

type modelInfo struct {
	description string
	family      string
}

// The supported model set is fixed; adding a model means adding a registry
// entry here, not a new conditional branch.
var catalog = map[string]modelInfo{
	"gemini-1.5-pro":           {"Google's advanced model for complex tasks", familyGoogle},
	"gemini-1.5-flash":         {"Fast and efficient for quick responses", familyGoogle},
	"gemini-2.5-pro-exp-03-25": {"Latest experimental version with enhanced capabilities", familyGoogle},
	"llama3-8b-8192":           {"Groq-hosted Llama3 8B", familyGroq},
	"llama3-70b-8192":          {"Groq-hosted Llama3 70B", familyGroq},
}

var modelOrder = []string{
	"gemini-1.5-pro",
	"gemini-1.5-flash",
	"gemini-2.5-pro-exp-03-25",
	"llama3-8b-8192",
	"llama3-70b-8192",
}

// SupportedModels returns the fixed model set in display order.
func SupportedModels() []string {
	out := make([]string, len(modelOrder))
	copy(out, modelOrder)
	return out
}

// Supported reports whether id is a member of the fixed model set.
func Supported(id string) bool {
	_, ok := catalog[id]
	return ok
}

// Describe returns the human-readable description for a model id, or an
// empty string for unknown ids.
func Describe(id string) string {
	return catalog[id].description
}
