package models

// Intent is the classifier's categorical label for what the user wants.
type Intent string

const (
	IntentCompatibilityCheck Intent = "compatibility_check"
	IntentInstallationHelp   Intent = "installation_help"
	IntentTroubleshooting    Intent = "troubleshooting"
	IntentGeneralInfo        Intent = "general_info"
)

// ValidIntent reports whether s is one of the four known intents.
func ValidIntent(s string) bool {
	switch Intent(s) {
	case IntentCompatibilityCheck, IntentInstallationHelp, IntentTroubleshooting, IntentGeneralInfo:
		return true
	}
	return false
}

// Entities are the structured slots extracted from free text. Empty string
// means the slot was not extracted.
type Entities struct {
	PartNumber    string `json:"part_number"`
	ModelNumber   string `json:"model_number"`
	Brand         string `json:"brand"`
	ApplianceType string `json:"appliance_type"`
	Symptom       string `json:"symptom"`
	PartType      string `json:"part_type,omitempty"`
}

// ClassificationResult is produced fresh per request and never persisted
// beyond the response it informs.
type ClassificationResult struct {
	Intent   Intent   `json:"intent"`
	Entities Entities `json:"entities"`
}

// DefaultClassification is the safe fallback when the provider's output does
// not parse: a generic-info intent with no entities.
func DefaultClassification() ClassificationResult {
	return ClassificationResult{Intent: IntentGeneralInfo}
}
