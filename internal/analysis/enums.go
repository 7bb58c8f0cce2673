package analysis

// DocumentType classifies a completion document.
type DocumentType string

const (
	DocTaskSummary    DocumentType = "task-summary"
	DocTaskCompletion DocumentType = "task-completion"
	DocSpecCompletion DocumentType = "spec-completion"
	DocOther          DocumentType = "other"
)

// Severity grades breaking changes and bug fixes.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Impact grades improvements and version evidence.
type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

// ImprovementType is the kind of improvement.
type ImprovementType string

const (
	ImprovementPerformance     ImprovementType = "performance"
	ImprovementUsability       ImprovementType = "usability"
	ImprovementMaintainability ImprovementType = "maintainability"
	ImprovementSecurity        ImprovementType = "security"
	ImprovementAccessibility   ImprovementType = "accessibility"
	ImprovementOther           ImprovementType = "other"
)

// DocumentationChangeType is the kind of documentation change.
type DocumentationChangeType string

const (
	DocChangeReadme   DocumentationChangeType = "readme"
	DocChangeAPIDocs  DocumentationChangeType = "api-docs"
	DocChangeExamples DocumentationChangeType = "examples"
	DocChangeComments DocumentationChangeType = "comments"
	DocChangeOther    DocumentationChangeType = "other"
)

// BumpType is the recommended semantic-version increment.
type BumpType string

const (
	BumpMajor BumpType = "major"
	BumpMinor BumpType = "minor"
	BumpPatch BumpType = "patch"
	BumpNone  BumpType = "none"
)

// EvidenceType links a piece of version evidence to a change category.
type EvidenceType string

const (
	EvidenceBreaking    EvidenceType = "breaking"
	EvidenceFeature     EvidenceType = "feature"
	EvidenceFix         EvidenceType = "fix"
	EvidenceImprovement EvidenceType = "improvement"
)

func (DocumentType) Values() []string {
	return []string{"task-summary", "task-completion", "spec-completion", "other"}
}

func (Severity) Values() []string { return []string{"low", "medium", "high", "critical"} }

func (Impact) Values() []string { return []string{"low", "medium", "high"} }

func (ImprovementType) Values() []string {
	return []string{"performance", "usability", "maintainability", "security", "accessibility", "other"}
}

func (DocumentationChangeType) Values() []string {
	return []string{"readme", "api-docs", "examples", "comments", "other"}
}

func (BumpType) Values() []string { return []string{"major", "minor", "patch", "none"} }

func (EvidenceType) Values() []string { return []string{"breaking", "feature", "fix", "improvement"} }

func (t DocumentType) Valid() bool {
	switch t {
	case DocTaskSummary, DocTaskCompletion, DocSpecCompletion, DocOther:
		return true
	}
	return false
}

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

func (i Impact) Valid() bool {
	switch i {
	case ImpactLow, ImpactMedium, ImpactHigh:
		return true
	}
	return false
}

func (t ImprovementType) Valid() bool {
	switch t {
	case ImprovementPerformance, ImprovementUsability, ImprovementMaintainability,
		ImprovementSecurity, ImprovementAccessibility, ImprovementOther:
		return true
	}
	return false
}

func (t DocumentationChangeType) Valid() bool {
	switch t {
	case DocChangeReadme, DocChangeAPIDocs, DocChangeExamples, DocChangeComments, DocChangeOther:
		return true
	}
	return false
}

func (b BumpType) Valid() bool {
	switch b {
	case BumpMajor, BumpMinor, BumpPatch, BumpNone:
		return true
	}
	return false
}

func (t EvidenceType) Valid() bool {
	switch t {
	case EvidenceBreaking, EvidenceFeature, EvidenceFix, EvidenceImprovement:
		return true
	}
	return false
}
