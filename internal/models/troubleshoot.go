package models

// TroubleshootingEntry is a read-only reference record describing one
// appliance symptom and its ranked repair paths.
type TroubleshootingEntry struct {
	ApplianceType       string       `json:"appliance_type"`
	SymptomSlug         string       `json:"symptom_slug"`
	SymptomDisplay      string       `json:"symptom_display"`
	Summary             string       `json:"summary,omitempty"`
	CommonCauses        []string     `json:"common_causes,omitempty"`
	Tags                []string     `json:"tags,omitempty"`
	AboutRepair         AboutRepair  `json:"about_repair,omitempty"`
	RepairPaths         []RepairPath `json:"repair_paths,omitempty"`
	ClarifyingQuestions []string     `json:"clarifying_questions,omitempty"`
	Source              string       `json:"source,omitempty"`
}

// SymptomKey returns the entry's stable identity used for de-duplication and
// for mapping semantic index hits back to full records.
func (t *TroubleshootingEntry) SymptomKey() string {
	if t.SymptomSlug != "" {
		return t.SymptomSlug
	}
	return t.SymptomDisplay
}

// AboutRepair carries display stats about the repair.
type AboutRepair struct {
	Difficulty             string `json:"difficulty,omitempty"`
	RepairStoriesCount     int    `json:"repair_stories_count,omitempty"`
	StepByStepVideosCount  int    `json:"step_by_step_videos_count,omitempty"`
}

// RepairPath is one candidate component behind a symptom, ranked by how
// often it is the actual cause (lower PathRank = more likely).
type RepairPath struct {
	Component           string      `json:"component"`
	WhyItCausesSymptom  string      `json:"why_it_causes_symptom"`
	PathRank            int         `json:"path_rank"`
	Diagnostic          Diagnostic  `json:"diagnostic"`
	Replacement         Replacement `json:"replacement,omitempty"`
}

// Diagnostic holds safety notes and ordered diagnostic steps for a component.
type Diagnostic struct {
	SafetyNotes []string         `json:"safety_notes,omitempty"`
	Steps       []DiagnosticStep `json:"steps,omitempty"`
}

type DiagnosticStep struct {
	Detail string `json:"detail"`
}

// Replacement points at the part category that fixes the component.
type Replacement struct {
	CategoryLabel string `json:"category_label,omitempty"`
	CategoryURL   string `json:"category_url,omitempty"`
}

// PrimaryPath returns the lowest-ranked repair path, or nil when the entry
// has none.
func (t *TroubleshootingEntry) PrimaryPath() *RepairPath {
	var best *RepairPath
	for i := range t.RepairPaths {
		p := &t.RepairPaths[i]
		if best == nil || p.PathRank < best.PathRank {
			best = p
		}
	}
	return best
}

// RankedPaths returns up to n repair paths ordered by ascending path rank.
func (t *TroubleshootingEntry) RankedPaths(n int) []RepairPath {
	out := make([]RepairPath, len(t.RepairPaths))
	copy(out, t.RepairPaths)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].PathRank < out[j-1].PathRank; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if len(out) > n {
		out = out[:n]
	}
	return out
}
