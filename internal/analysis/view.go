package analysis

import (
	"fmt"
	"strings"
	"time"
)

// ConfidenceLevel buckets the overall confidence score.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// DefaultConfidenceThreshold is used by IsConfident when no threshold is given.
const DefaultConfidenceThreshold = 0.7

// ExecutionMetadata describes the run that produced a result.
type ExecutionMetadata struct {
	Duration    time.Duration `json:"duration"`
	ToolVersion string        `json:"toolVersion,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// View is a read-only query surface over one AnalysisResult. No method
// mutates the result or hands out storage shared with it.
type View struct {
	result *AnalysisResult
	meta   ExecutionMetadata
}

// NewView wraps a private copy of result.
func NewView(result *AnalysisResult, meta ExecutionMetadata) *View {
	return &View{result: result.Clone(), meta: meta}
}

// Raw returns a deep copy of the underlying result.
func (v *View) Raw() *AnalysisResult { return v.result.Clone() }

func (v *View) Metadata() ExecutionMetadata { return v.meta }

func (v *View) CurrentVersion() string     { return v.result.VersionRecommendation.CurrentVersion }
func (v *View) RecommendedVersion() string { return v.result.VersionRecommendation.RecommendedVersion }
func (v *View) BumpType() BumpType         { return v.result.VersionRecommendation.BumpType }
func (v *View) VersionRationale() string   { return v.result.VersionRecommendation.Rationale }

func (v *View) ShouldBumpVersion() bool { return v.BumpType() != BumpNone }
func (v *View) IsMajorBump() bool       { return v.BumpType() == BumpMajor }
func (v *View) IsMinorBump() bool       { return v.BumpType() == BumpMinor }
func (v *View) IsPatchBump() bool       { return v.BumpType() == BumpPatch }

func (v *View) BreakingChanges() []BreakingChange {
	return cloneBreaking(v.result.Changes.BreakingChanges)
}

func (v *View) Features() []Feature { return cloneFeatures(v.result.Changes.NewFeatures) }

func (v *View) BugFixes() []BugFix { return cloneBugFixes(v.result.Changes.BugFixes) }

func (v *View) Improvements() []Improvement { return cloneSlice(v.result.Changes.Improvements) }

func (v *View) DocumentationChanges() []DocumentationChange {
	return cloneSlice(v.result.Changes.Documentation)
}

func (v *View) HasBreakingChanges() bool { return len(v.result.Changes.BreakingChanges) > 0 }
func (v *View) HasFeatures() bool        { return len(v.result.Changes.NewFeatures) > 0 }
func (v *View) HasBugFixes() bool        { return len(v.result.Changes.BugFixes) > 0 }
func (v *View) HasImprovements() bool    { return len(v.result.Changes.Improvements) > 0 }

// HasChanges reports whether any code-facing change exists. Documentation
// changes alone do not count.
func (v *View) HasChanges() bool {
	return v.HasBreakingChanges() || v.HasFeatures() || v.HasBugFixes() || v.HasImprovements()
}

// ChangeCount counts every change, documentation included.
func (v *View) ChangeCount() int {
	c := v.result.Changes
	return len(c.BreakingChanges) + len(c.NewFeatures) + len(c.BugFixes) + len(c.Improvements) + len(c.Documentation)
}

func (v *View) BreakingChangesBySeverity(s Severity) []BreakingChange {
	var out []BreakingChange
	for _, bc := range v.result.Changes.BreakingChanges {
		if bc.Severity == s {
			out = append(out, cloneBreaking([]BreakingChange{bc})...)
		}
	}
	return out
}

func (v *View) CriticalBreakingChanges() []BreakingChange {
	return v.BreakingChangesBySeverity(SeverityCritical)
}

func (v *View) FeaturesByCategory(category string) []Feature {
	var out []Feature
	for _, f := range v.result.Changes.NewFeatures {
		if f.Category == category {
			out = append(out, cloneFeatures([]Feature{f})...)
		}
	}
	return out
}

func (v *View) BugFixesBySeverity(s Severity) []BugFix {
	var out []BugFix
	for _, b := range v.result.Changes.BugFixes {
		if b.Severity == s {
			out = append(out, cloneBugFixes([]BugFix{b})...)
		}
	}
	return out
}

// SearchResult groups matches by category. Documentation is not searched.
type SearchResult struct {
	BreakingChanges []BreakingChange `json:"breakingChanges"`
	Features        []Feature        `json:"features"`
	BugFixes        []BugFix         `json:"bugFixes"`
	Improvements    []Improvement    `json:"improvements"`
}

// Total is the number of matches.
func (s SearchResult) Total() int {
	return len(s.BreakingChanges) + len(s.Features) + len(s.BugFixes) + len(s.Improvements)
}

// Search matches keyword case-insensitively against titles and descriptions.
func (v *View) Search(keyword string) SearchResult {
	kw := strings.ToLower(keyword)
	match := func(title, desc string) bool {
		return strings.Contains(strings.ToLower(title), kw) || strings.Contains(strings.ToLower(desc), kw)
	}

	var res SearchResult
	for _, bc := range v.result.Changes.BreakingChanges {
		if match(bc.Title, bc.Description) {
			res.BreakingChanges = append(res.BreakingChanges, cloneBreaking([]BreakingChange{bc})...)
		}
	}
	for _, f := range v.result.Changes.NewFeatures {
		if match(f.Title, f.Description) {
			res.Features = append(res.Features, cloneFeatures([]Feature{f})...)
		}
	}
	for _, b := range v.result.Changes.BugFixes {
		if match(b.Title, b.Description) {
			res.BugFixes = append(res.BugFixes, cloneBugFixes([]BugFix{b})...)
		}
	}
	for _, im := range v.result.Changes.Improvements {
		if match(im.Title, im.Description) {
			res.Improvements = append(res.Improvements, im)
		}
	}
	return res
}

func (v *View) ReleaseNotes() string { return v.result.ReleaseNotes }

func (v *View) HasReleaseNotes() bool { return strings.TrimSpace(v.result.ReleaseNotes) != "" }

func (v *View) OverallConfidence() float64 { return v.result.Confidence.Overall }

func (v *View) ConfidenceMetrics() ConfidenceMetrics { return v.result.Confidence }

// IsConfident compares overall confidence against threshold; a
// non-positive threshold means DefaultConfidenceThreshold.
func (v *View) IsConfident(threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	return v.OverallConfidence() >= threshold
}

func (v *View) ConfidenceLevel() ConfidenceLevel {
	return LevelFor(v.OverallConfidence())
}

// LevelFor buckets a score: high at 0.8 and above, medium at 0.5 and above.
func LevelFor(score float64) ConfidenceLevel {
	switch {
	case score >= 0.8:
		return ConfidenceHigh
	case score >= 0.5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func (v *View) DocumentCount() int { return len(v.result.Scope.CompletionDocuments) }

// Scope returns a copy of the analyzed range.
func (v *View) Scope() AnalysisScope {
	s := v.result.Scope
	s.CompletionDocuments = cloneSlice(s.CompletionDocuments)
	return s
}

func (v *View) AnalysisDate() time.Time { return v.result.Scope.AnalysisDate }

// Summary is the structured digest of a view.
type Summary struct {
	Version struct {
		Current     string   `json:"current" yaml:"current"`
		Recommended string   `json:"recommended" yaml:"recommended"`
		BumpType    BumpType `json:"bumpType" yaml:"bumpType"`
	} `json:"version" yaml:"version"`
	Changes struct {
		Breaking     int `json:"breaking" yaml:"breaking"`
		Features     int `json:"features" yaml:"features"`
		Fixes        int `json:"fixes" yaml:"fixes"`
		Improvements int `json:"improvements" yaml:"improvements"`
		Total        int `json:"total" yaml:"total"`
	} `json:"changes" yaml:"changes"`
	Confidence struct {
		Overall float64         `json:"overall" yaml:"overall"`
		Level   ConfidenceLevel `json:"level" yaml:"level"`
	} `json:"confidence" yaml:"confidence"`
	Metadata struct {
		DocumentsAnalyzed int       `json:"documentsAnalyzed" yaml:"documentsAnalyzed"`
		DurationMs        int64     `json:"durationMs" yaml:"durationMs"`
		Timestamp         time.Time `json:"timestamp" yaml:"timestamp"`
	} `json:"metadata" yaml:"metadata"`
}

func (v *View) Summary() Summary {
	var s Summary
	s.Version.Current = v.CurrentVersion()
	s.Version.Recommended = v.RecommendedVersion()
	s.Version.BumpType = v.BumpType()
	c := v.result.Changes
	s.Changes.Breaking = len(c.BreakingChanges)
	s.Changes.Features = len(c.NewFeatures)
	s.Changes.Fixes = len(c.BugFixes)
	s.Changes.Improvements = len(c.Improvements)
	s.Changes.Total = v.ChangeCount()
	s.Confidence.Overall = v.OverallConfidence()
	s.Confidence.Level = v.ConfidenceLevel()
	s.Metadata.DocumentsAnalyzed = v.DocumentCount()
	s.Metadata.DurationMs = v.meta.Duration.Milliseconds()
	s.Metadata.Timestamp = v.meta.Timestamp
	return s
}

// SummaryString renders Summary as a human-readable block.
func (v *View) SummaryString() string {
	s := v.Summary()
	var b strings.Builder
	title := "Release Analysis Summary"
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", len(title)) + "\n\n")
	fmt.Fprintf(&b, "Version: %s -> %s (%s)\n\n", s.Version.Current, s.Version.Recommended, s.Version.BumpType)
	b.WriteString("Changes:\n")
	fmt.Fprintf(&b, "  - Breaking Changes: %d\n", s.Changes.Breaking)
	fmt.Fprintf(&b, "  - New Features: %d\n", s.Changes.Features)
	fmt.Fprintf(&b, "  - Bug Fixes: %d\n", s.Changes.Fixes)
	fmt.Fprintf(&b, "  - Improvements: %d\n", s.Changes.Improvements)
	fmt.Fprintf(&b, "  - Total: %d\n\n", s.Changes.Total)
	fmt.Fprintf(&b, "Confidence: %.1f%% (%s)\n", s.Confidence.Overall*100, s.Confidence.Level)
	fmt.Fprintf(&b, "Documents Analyzed: %d\n", s.Metadata.DocumentsAnalyzed)
	fmt.Fprintf(&b, "Analysis Duration: %dms", s.Metadata.DurationMs)
	return b.String()
}
