// Package parser turns the analysis tool's JSON output into a typed
// analysis.AnalysisResult, rejecting anything that does not match the
// expected shape with a path-qualified ParseError.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"relkit/internal/analysis"
)

// Parse decodes raw and walks it field by field. The first structural
// problem aborts parsing.
func Parse(raw string) (*analysis.AnalysisResult, error) {
	dec := json.NewDecoder(bytes.NewBufferString(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &ParseError{Value: raw, Message: fmt.Sprintf("Failed to parse JSON: %v", err)}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &ParseError{Value: raw, Message: "Failed to parse JSON: unexpected data after top-level value"}
	}
	return parseResult(doc)
}

func parseResult(v any) (*analysis.AnalysisResult, error) {
	m, err := object(v, "", "analysis result", "scope", "changes", "versionRecommendation", "releaseNotes", "confidence")
	if err != nil {
		return nil, err
	}

	var r analysis.AnalysisResult
	if r.Scope, err = parseScope(m["scope"], "scope"); err != nil {
		return nil, err
	}
	if r.Changes, err = parseChanges(m["changes"], "changes"); err != nil {
		return nil, err
	}
	if r.VersionRecommendation, err = parseRecommendation(m["versionRecommendation"], "versionRecommendation"); err != nil {
		return nil, err
	}
	if r.ReleaseNotes, err = str(m, "", "releaseNotes"); err != nil {
		return nil, err
	}
	if r.Confidence, err = parseConfidence(m["confidence"], "confidence"); err != nil {
		return nil, err
	}
	return &r, nil
}

func parseScope(v any, path string) (analysis.AnalysisScope, error) {
	var s analysis.AnalysisScope
	m, err := object(v, path, "scope", "toCommit", "completionDocuments", "analysisDate")
	if err != nil {
		return s, err
	}
	if s.FromTag, err = optStr(m, path, "fromTag"); err != nil {
		return s, err
	}
	if s.FromCommit, err = optStr(m, path, "fromCommit"); err != nil {
		return s, err
	}
	if s.ToCommit, err = str(m, path, "toCommit"); err != nil {
		return s, err
	}
	if s.CompletionDocuments, err = list(m, path, "completionDocuments", parseDocument); err != nil {
		return s, err
	}
	s.AnalysisDate, err = date(m, path, "analysisDate")
	return s, err
}

func parseDocument(v any, path string) (analysis.CompletionDocument, error) {
	var d analysis.CompletionDocument
	m, err := object(v, path, "completion document", "path", "content", "lastModified", "gitCommit", "metadata")
	if err != nil {
		return d, err
	}
	if d.Path, err = str(m, path, "path"); err != nil {
		return d, err
	}
	if d.Content, err = str(m, path, "content"); err != nil {
		return d, err
	}
	if d.LastModified, err = date(m, path, "lastModified"); err != nil {
		return d, err
	}
	if d.GitCommit, err = str(m, path, "gitCommit"); err != nil {
		return d, err
	}
	d.Metadata, err = parseDocumentMetadata(m["metadata"], join(path, "metadata"))
	return d, err
}

func parseDocumentMetadata(v any, path string) (analysis.DocumentMetadata, error) {
	var md analysis.DocumentMetadata
	m, err := object(v, path, "document metadata", "title", "type")
	if err != nil {
		return md, err
	}
	if md.Title, err = str(m, path, "title"); err != nil {
		return md, err
	}
	for _, f := range []struct {
		key string
		dst *string
	}{
		{"date", &md.Date},
		{"task", &md.Task},
		{"spec", &md.Spec},
		{"status", &md.Status},
	} {
		if *f.dst, err = optStr(m, path, f.key); err != nil {
			return md, err
		}
	}
	md.Type, err = enum[analysis.DocumentType](m, path, "type", "document type")
	return md, err
}

func parseChanges(v any, path string) (analysis.ExtractedChanges, error) {
	var c analysis.ExtractedChanges
	m, err := object(v, path, "changes", "breakingChanges", "newFeatures", "bugFixes", "improvements", "documentation", "metadata")
	if err != nil {
		return c, err
	}
	if c.BreakingChanges, err = list(m, path, "breakingChanges", parseBreakingChange); err != nil {
		return c, err
	}
	if c.NewFeatures, err = list(m, path, "newFeatures", parseFeature); err != nil {
		return c, err
	}
	if c.BugFixes, err = list(m, path, "bugFixes", parseBugFix); err != nil {
		return c, err
	}
	if c.Improvements, err = list(m, path, "improvements", parseImprovement); err != nil {
		return c, err
	}
	if c.Documentation, err = list(m, path, "documentation", parseDocumentationChange); err != nil {
		return c, err
	}
	c.Metadata, err = parseExtractionMetadata(m["metadata"], join(path, "metadata"))
	return c, err
}

// changeHeader holds the fields every change category shares.
type changeHeader struct {
	id, title, description, source string
}

func parseHeader(m map[string]any, path string) (changeHeader, error) {
	var h changeHeader
	var err error
	if h.id, err = str(m, path, "id"); err != nil {
		return h, err
	}
	if h.title, err = str(m, path, "title"); err != nil {
		return h, err
	}
	if h.description, err = str(m, path, "description"); err != nil {
		return h, err
	}
	h.source, err = str(m, path, "source")
	return h, err
}

func parseBreakingChange(v any, path string) (analysis.BreakingChange, error) {
	var bc analysis.BreakingChange
	m, err := object(v, path, "breaking change", "id", "title", "description", "affectedAPIs", "source", "severity")
	if err != nil {
		return bc, err
	}
	h, err := parseHeader(m, path)
	if err != nil {
		return bc, err
	}
	bc.ID, bc.Title, bc.Description, bc.Source = h.id, h.title, h.description, h.source
	if bc.AffectedAPIs, err = strList(m, path, "affectedAPIs"); err != nil {
		return bc, err
	}
	if bc.MigrationGuidance, err = optStr(m, path, "migrationGuidance"); err != nil {
		return bc, err
	}
	bc.Severity, err = enum[analysis.Severity](m, path, "severity", "severity")
	return bc, err
}

func parseFeature(v any, path string) (analysis.Feature, error) {
	var f analysis.Feature
	m, err := object(v, path, "feature", "id", "title", "description", "benefits", "requirements", "artifacts", "source", "category")
	if err != nil {
		return f, err
	}
	h, err := parseHeader(m, path)
	if err != nil {
		return f, err
	}
	f.ID, f.Title, f.Description, f.Source = h.id, h.title, h.description, h.source
	if f.Benefits, err = strList(m, path, "benefits"); err != nil {
		return f, err
	}
	if f.Requirements, err = strList(m, path, "requirements"); err != nil {
		return f, err
	}
	if f.Artifacts, err = strList(m, path, "artifacts"); err != nil {
		return f, err
	}
	f.Category, err = str(m, path, "category")
	return f, err
}

func parseBugFix(v any, path string) (analysis.BugFix, error) {
	var b analysis.BugFix
	m, err := object(v, path, "bug fix", "id", "title", "description", "affectedComponents", "source", "severity")
	if err != nil {
		return b, err
	}
	h, err := parseHeader(m, path)
	if err != nil {
		return b, err
	}
	b.ID, b.Title, b.Description, b.Source = h.id, h.title, h.description, h.source
	if b.IssueNumber, err = optStr(m, path, "issueNumber"); err != nil {
		return b, err
	}
	if b.IssueReference, err = optStr(m, path, "issueReference"); err != nil {
		return b, err
	}
	if b.AffectedComponents, err = strList(m, path, "affectedComponents"); err != nil {
		return b, err
	}
	b.Severity, err = enum[analysis.Severity](m, path, "severity", "severity")
	return b, err
}

func parseImprovement(v any, path string) (analysis.Improvement, error) {
	var im analysis.Improvement
	m, err := object(v, path, "improvement", "id", "title", "description", "type", "impact", "source")
	if err != nil {
		return im, err
	}
	h, err := parseHeader(m, path)
	if err != nil {
		return im, err
	}
	im.ID, im.Title, im.Description, im.Source = h.id, h.title, h.description, h.source
	if im.Type, err = enum[analysis.ImprovementType](m, path, "type", "improvement type"); err != nil {
		return im, err
	}
	im.Impact, err = enum[analysis.Impact](m, path, "impact", "impact")
	return im, err
}

func parseDocumentationChange(v any, path string) (analysis.DocumentationChange, error) {
	var d analysis.DocumentationChange
	m, err := object(v, path, "documentation change", "id", "title", "description", "type", "source")
	if err != nil {
		return d, err
	}
	h, err := parseHeader(m, path)
	if err != nil {
		return d, err
	}
	d.ID, d.Title, d.Description, d.Source = h.id, h.title, h.description, h.source
	d.Type, err = enum[analysis.DocumentationChangeType](m, path, "type", "documentation change type")
	return d, err
}

func parseExtractionMetadata(v any, path string) (analysis.ExtractionMetadata, error) {
	var md analysis.ExtractionMetadata
	m, err := object(v, path, "extraction metadata", "documentsAnalyzed", "extractionConfidence", "ambiguousItems", "filteredItems")
	if err != nil {
		return md, err
	}
	if md.DocumentsAnalyzed, err = integer(m, path, "documentsAnalyzed"); err != nil {
		return md, err
	}
	if md.ExtractionConfidence, err = num(m, path, "extractionConfidence"); err != nil {
		return md, err
	}
	if md.AmbiguousItems, err = strList(m, path, "ambiguousItems"); err != nil {
		return md, err
	}
	if md.FilteredItems, err = strList(m, path, "filteredItems"); err != nil {
		return md, err
	}
	if raw, ok := m["deduplication"]; ok && raw != nil {
		d, err := parseDeduplication(raw, join(path, "deduplication"))
		if err != nil {
			return md, err
		}
		md.Deduplication = &d
	}
	return md, nil
}

func parseDeduplication(v any, path string) (analysis.DeduplicationMetadata, error) {
	var d analysis.DeduplicationMetadata
	m, err := object(v, path, "deduplication metadata", "originalCount", "duplicatesRemoved", "uncertainDuplicates", "effectiveness")
	if err != nil {
		return d, err
	}
	if d.OriginalCount, err = integer(m, path, "originalCount"); err != nil {
		return d, err
	}
	if d.DuplicatesRemoved, err = integer(m, path, "duplicatesRemoved"); err != nil {
		return d, err
	}
	if d.UncertainDuplicates, err = list(m, path, "uncertainDuplicates", parseUncertainDuplicate); err != nil {
		return d, err
	}
	d.Effectiveness, err = num(m, path, "effectiveness")
	return d, err
}

func parseUncertainDuplicate(v any, path string) (analysis.UncertainDuplicate, error) {
	var u analysis.UncertainDuplicate
	m, err := object(v, path, "uncertain duplicate", "changeType", "itemCount", "similarity", "suggestedAction", "items")
	if err != nil {
		return u, err
	}
	if u.ChangeType, err = str(m, path, "changeType"); err != nil {
		return u, err
	}
	if u.ItemCount, err = integer(m, path, "itemCount"); err != nil {
		return u, err
	}
	if u.Similarity, err = num(m, path, "similarity"); err != nil {
		return u, err
	}
	if u.SuggestedAction, err = str(m, path, "suggestedAction"); err != nil {
		return u, err
	}
	u.Items, err = list(m, path, "items", parseDuplicateItem)
	return u, err
}

func parseDuplicateItem(v any, path string) (analysis.DuplicateItem, error) {
	var it analysis.DuplicateItem
	m, err := object(v, path, "duplicate item", "id", "title", "source")
	if err != nil {
		return it, err
	}
	if it.ID, err = str(m, path, "id"); err != nil {
		return it, err
	}
	if it.Title, err = str(m, path, "title"); err != nil {
		return it, err
	}
	it.Source, err = str(m, path, "source")
	return it, err
}

func parseRecommendation(v any, path string) (analysis.VersionRecommendation, error) {
	var r analysis.VersionRecommendation
	m, err := object(v, path, "version recommendation", "currentVersion", "recommendedVersion", "bumpType", "rationale", "confidence", "evidence")
	if err != nil {
		return r, err
	}
	if r.CurrentVersion, err = str(m, path, "currentVersion"); err != nil {
		return r, err
	}
	if r.RecommendedVersion, err = str(m, path, "recommendedVersion"); err != nil {
		return r, err
	}
	if r.BumpType, err = enum[analysis.BumpType](m, path, "bumpType", "bump type"); err != nil {
		return r, err
	}
	if r.Rationale, err = str(m, path, "rationale"); err != nil {
		return r, err
	}
	if r.Confidence, err = num(m, path, "confidence"); err != nil {
		return r, err
	}
	r.Evidence, err = list(m, path, "evidence", parseEvidence)
	return r, err
}

func parseEvidence(v any, path string) (analysis.ChangeEvidence, error) {
	var e analysis.ChangeEvidence
	m, err := object(v, path, "evidence", "type", "description", "source", "impact")
	if err != nil {
		return e, err
	}
	if e.Type, err = enum[analysis.EvidenceType](m, path, "type", "evidence type"); err != nil {
		return e, err
	}
	if e.Description, err = str(m, path, "description"); err != nil {
		return e, err
	}
	if e.Source, err = str(m, path, "source"); err != nil {
		return e, err
	}
	e.Impact, err = enum[analysis.Impact](m, path, "impact", "impact")
	return e, err
}

func parseConfidence(v any, path string) (analysis.ConfidenceMetrics, error) {
	var c analysis.ConfidenceMetrics
	m, err := object(v, path, "confidence metrics", "overall", "extraction", "categorization", "deduplication", "versionCalculation")
	if err != nil {
		return c, err
	}
	for _, f := range []struct {
		key string
		dst *float64
	}{
		{"overall", &c.Overall},
		{"extraction", &c.Extraction},
		{"categorization", &c.Categorization},
		{"deduplication", &c.Deduplication},
		{"versionCalculation", &c.VersionCalculation},
	} {
		if *f.dst, err = num(m, path, f.key); err != nil {
			return c, err
		}
	}
	return c, nil
}
