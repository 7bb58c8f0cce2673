package parser

import (
	"fmt"
	"regexp"

	"relkit/internal/analysis"
)

var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)

// IsValidVersion reports whether v is MAJOR.MINOR.PATCH with optional
// pre-release and build suffixes.
func IsValidVersion(v string) bool {
	return semverPattern.MatchString(v)
}

// ValidationResult lists semantic problems in a parsed result. Errors make
// the result unusable; warnings are advisory.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validate checks semantic rules the parser does not enforce. It never
// modifies r.
func Validate(r *analysis.AnalysisResult) ValidationResult {
	res := ValidationResult{Errors: []string{}, Warnings: []string{}}
	rec := r.VersionRecommendation

	if !IsValidVersion(rec.CurrentVersion) {
		res.Errors = append(res.Errors, fmt.Sprintf("Invalid current version format: %s", rec.CurrentVersion))
	}
	if !IsValidVersion(rec.RecommendedVersion) {
		res.Errors = append(res.Errors, fmt.Sprintf("Invalid recommended version format: %s", rec.RecommendedVersion))
	}

	scores := []struct {
		field string
		value float64
	}{
		{"confidence.overall", r.Confidence.Overall},
		{"confidence.extraction", r.Confidence.Extraction},
		{"confidence.categorization", r.Confidence.Categorization},
		{"confidence.deduplication", r.Confidence.Deduplication},
		{"confidence.versionCalculation", r.Confidence.VersionCalculation},
		{"versionRecommendation.confidence", rec.Confidence},
		{"changes.metadata.extractionConfidence", r.Changes.Metadata.ExtractionConfidence},
	}
	for _, s := range scores {
		if s.value < 0 || s.value > 1 {
			res.Errors = append(res.Errors, fmt.Sprintf("Confidence out of range [0,1]: %s = %v", s.field, s.value))
		}
	}

	c := r.Changes
	total := len(c.BreakingChanges) + len(c.NewFeatures) + len(c.BugFixes) + len(c.Improvements)
	if total == 0 && rec.BumpType != analysis.BumpNone {
		res.Warnings = append(res.Warnings, fmt.Sprintf("No changes detected but version bump recommended: %s", rec.BumpType))
	}
	if len(c.BreakingChanges) > 0 && rec.BumpType != analysis.BumpMajor {
		res.Warnings = append(res.Warnings, fmt.Sprintf("Breaking changes detected but not recommending major version bump (got %s)", rec.BumpType))
	}

	res.Valid = len(res.Errors) == 0
	return res
}
