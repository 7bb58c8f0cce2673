// Package analysis defines the release-analysis result tree produced by
// the external analysis tool and a read-only view over it.
package analysis

import "time"

// AnalysisResult is the decoded output of one analysis run.
type AnalysisResult struct {
	Scope                 AnalysisScope         `json:"scope" yaml:"scope"`
	Changes               ExtractedChanges      `json:"changes" yaml:"changes"`
	VersionRecommendation VersionRecommendation `json:"versionRecommendation" yaml:"versionRecommendation"`
	ReleaseNotes          string                `json:"releaseNotes" yaml:"releaseNotes"`
	Confidence            ConfidenceMetrics     `json:"confidence" yaml:"confidence"`
}

// AnalysisScope is the commit range and documents that were analyzed.
type AnalysisScope struct {
	FromTag             string               `json:"fromTag,omitempty" yaml:"fromTag,omitempty"`
	FromCommit          string               `json:"fromCommit,omitempty" yaml:"fromCommit,omitempty"`
	ToCommit            string               `json:"toCommit" yaml:"toCommit"`
	CompletionDocuments []CompletionDocument `json:"completionDocuments" yaml:"completionDocuments"`
	AnalysisDate        time.Time            `json:"analysisDate" yaml:"analysisDate"`
}

type CompletionDocument struct {
	Path         string           `json:"path" yaml:"path"`
	Content      string           `json:"content" yaml:"content"`
	LastModified time.Time        `json:"lastModified" yaml:"lastModified"`
	GitCommit    string           `json:"gitCommit" yaml:"gitCommit"`
	Metadata     DocumentMetadata `json:"metadata" yaml:"metadata"`
}

type DocumentMetadata struct {
	Title  string       `json:"title" yaml:"title"`
	Date   string       `json:"date,omitempty" yaml:"date,omitempty"`
	Task   string       `json:"task,omitempty" yaml:"task,omitempty"`
	Spec   string       `json:"spec,omitempty" yaml:"spec,omitempty"`
	Status string       `json:"status,omitempty" yaml:"status,omitempty"`
	Type   DocumentType `json:"type" yaml:"type"`
}

// ExtractedChanges holds the five change categories.
type ExtractedChanges struct {
	BreakingChanges []BreakingChange      `json:"breakingChanges" yaml:"breakingChanges"`
	NewFeatures     []Feature             `json:"newFeatures" yaml:"newFeatures"`
	BugFixes        []BugFix              `json:"bugFixes" yaml:"bugFixes"`
	Improvements    []Improvement         `json:"improvements" yaml:"improvements"`
	Documentation   []DocumentationChange `json:"documentation" yaml:"documentation"`
	Metadata        ExtractionMetadata    `json:"metadata" yaml:"metadata"`
}

type BreakingChange struct {
	ID                string   `json:"id" yaml:"id"`
	Title             string   `json:"title" yaml:"title"`
	Description       string   `json:"description" yaml:"description"`
	AffectedAPIs      []string `json:"affectedAPIs" yaml:"affectedAPIs"`
	MigrationGuidance string   `json:"migrationGuidance,omitempty" yaml:"migrationGuidance,omitempty"`
	Source            string   `json:"source" yaml:"source"`
	Severity          Severity `json:"severity" yaml:"severity"`
}

type Feature struct {
	ID           string   `json:"id" yaml:"id"`
	Title        string   `json:"title" yaml:"title"`
	Description  string   `json:"description" yaml:"description"`
	Benefits     []string `json:"benefits" yaml:"benefits"`
	Requirements []string `json:"requirements" yaml:"requirements"`
	Artifacts    []string `json:"artifacts" yaml:"artifacts"`
	Source       string   `json:"source" yaml:"source"`
	Category     string   `json:"category" yaml:"category"`
}

type BugFix struct {
	ID                 string   `json:"id" yaml:"id"`
	Title              string   `json:"title" yaml:"title"`
	Description        string   `json:"description" yaml:"description"`
	IssueNumber        string   `json:"issueNumber,omitempty" yaml:"issueNumber,omitempty"`
	IssueReference     string   `json:"issueReference,omitempty" yaml:"issueReference,omitempty"`
	AffectedComponents []string `json:"affectedComponents" yaml:"affectedComponents"`
	Source             string   `json:"source" yaml:"source"`
	Severity           Severity `json:"severity" yaml:"severity"`
}

type Improvement struct {
	ID          string          `json:"id" yaml:"id"`
	Title       string          `json:"title" yaml:"title"`
	Description string          `json:"description" yaml:"description"`
	Type        ImprovementType `json:"type" yaml:"type"`
	Impact      Impact          `json:"impact" yaml:"impact"`
	Source      string          `json:"source" yaml:"source"`
}

type DocumentationChange struct {
	ID          string                  `json:"id" yaml:"id"`
	Title       string                  `json:"title" yaml:"title"`
	Description string                  `json:"description" yaml:"description"`
	Type        DocumentationChangeType `json:"type" yaml:"type"`
	Source      string                  `json:"source" yaml:"source"`
}

// ExtractionMetadata describes how the changes were extracted.
type ExtractionMetadata struct {
	DocumentsAnalyzed    int                    `json:"documentsAnalyzed" yaml:"documentsAnalyzed"`
	ExtractionConfidence float64                `json:"extractionConfidence" yaml:"extractionConfidence"`
	AmbiguousItems       []string               `json:"ambiguousItems" yaml:"ambiguousItems"`
	FilteredItems        []string               `json:"filteredItems" yaml:"filteredItems"`
	Deduplication        *DeduplicationMetadata `json:"deduplication,omitempty" yaml:"deduplication,omitempty"`
}

type DeduplicationMetadata struct {
	OriginalCount       int                  `json:"originalCount" yaml:"originalCount"`
	DuplicatesRemoved   int                  `json:"duplicatesRemoved" yaml:"duplicatesRemoved"`
	UncertainDuplicates []UncertainDuplicate `json:"uncertainDuplicates" yaml:"uncertainDuplicates"`
	Effectiveness       float64              `json:"effectiveness" yaml:"effectiveness"`
}

// UncertainDuplicate is a group of items the extractor could not confidently
// merge.
type UncertainDuplicate struct {
	ChangeType      string          `json:"changeType" yaml:"changeType"`
	ItemCount       int             `json:"itemCount" yaml:"itemCount"`
	Similarity      float64         `json:"similarity" yaml:"similarity"`
	SuggestedAction string          `json:"suggestedAction" yaml:"suggestedAction"`
	Items           []DuplicateItem `json:"items" yaml:"items"`
}

type DuplicateItem struct {
	ID     string `json:"id" yaml:"id"`
	Title  string `json:"title" yaml:"title"`
	Source string `json:"source" yaml:"source"`
}

type VersionRecommendation struct {
	CurrentVersion     string           `json:"currentVersion" yaml:"currentVersion"`
	RecommendedVersion string           `json:"recommendedVersion" yaml:"recommendedVersion"`
	BumpType           BumpType         `json:"bumpType" yaml:"bumpType"`
	Rationale          string           `json:"rationale" yaml:"rationale"`
	Confidence         float64          `json:"confidence" yaml:"confidence"`
	Evidence           []ChangeEvidence `json:"evidence" yaml:"evidence"`
}

type ChangeEvidence struct {
	Type        EvidenceType `json:"type" yaml:"type"`
	Description string       `json:"description" yaml:"description"`
	Source      string       `json:"source" yaml:"source"`
	Impact      Impact       `json:"impact" yaml:"impact"`
}

// ConfidenceMetrics are five independent scores in [0,1].
type ConfidenceMetrics struct {
	Overall            float64 `json:"overall" yaml:"overall"`
	Extraction         float64 `json:"extraction" yaml:"extraction"`
	Categorization     float64 `json:"categorization" yaml:"categorization"`
	Deduplication      float64 `json:"deduplication" yaml:"deduplication"`
	VersionCalculation float64 `json:"versionCalculation" yaml:"versionCalculation"`
}

// Clone returns a deep copy of r.
func (r *AnalysisResult) Clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Scope.CompletionDocuments = cloneSlice(r.Scope.CompletionDocuments)

	c := &out.Changes
	c.BreakingChanges = cloneBreaking(r.Changes.BreakingChanges)
	c.NewFeatures = cloneFeatures(r.Changes.NewFeatures)
	c.BugFixes = cloneBugFixes(r.Changes.BugFixes)
	c.Improvements = cloneSlice(r.Changes.Improvements)
	c.Documentation = cloneSlice(r.Changes.Documentation)
	c.Metadata.AmbiguousItems = cloneSlice(r.Changes.Metadata.AmbiguousItems)
	c.Metadata.FilteredItems = cloneSlice(r.Changes.Metadata.FilteredItems)
	if d := r.Changes.Metadata.Deduplication; d != nil {
		dd := *d
		dd.UncertainDuplicates = cloneSlice(d.UncertainDuplicates)
		for i := range dd.UncertainDuplicates {
			dd.UncertainDuplicates[i].Items = cloneSlice(dd.UncertainDuplicates[i].Items)
		}
		c.Metadata.Deduplication = &dd
	}

	out.VersionRecommendation.Evidence = cloneSlice(r.VersionRecommendation.Evidence)
	return &out
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

func cloneBreaking(in []BreakingChange) []BreakingChange {
	out := cloneSlice(in)
	for i := range out {
		out[i].AffectedAPIs = cloneSlice(out[i].AffectedAPIs)
	}
	return out
}

func cloneFeatures(in []Feature) []Feature {
	out := cloneSlice(in)
	for i := range out {
		out[i].Benefits = cloneSlice(out[i].Benefits)
		out[i].Requirements = cloneSlice(out[i].Requirements)
		out[i].Artifacts = cloneSlice(out[i].Artifacts)
	}
	return out
}

func cloneBugFixes(in []BugFix) []BugFix {
	out := cloneSlice(in)
	for i := range out {
		out[i].AffectedComponents = cloneSlice(out[i].AffectedComponents)
	}
	return out
}
