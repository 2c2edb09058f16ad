package models

// DuplicateCheckResult is the verdict of a duplicate check. MatchedItem is set
// if and only if IsDuplicate is true.
type DuplicateCheckResult struct {
	IsDuplicate bool   `json:"is_duplicate"`
	MatchedItem *Item  `json:"matched_item,omitempty"`
	Reason      string `json:"reason"`
}

// NotDuplicate returns a negative duplicate verdict with the given reason.
func NotDuplicate(reason string) DuplicateCheckResult {
	return DuplicateCheckResult{Reason: reason}
}

// DuplicateOf returns a positive duplicate verdict pointing at a copy of match.
func DuplicateOf(match Item, reason string) DuplicateCheckResult {
	matched := match.Clone()

	return DuplicateCheckResult{
		IsDuplicate: true,
		MatchedItem: &matched,
		Reason:      reason,
	}
}

// ValidationResult is the outcome of a validator run. Valid is false iff Errors is
// non-empty; warnings never affect validity.
type ValidationResult struct {
	Valid    bool           `json:"valid"`
	Errors   []string       `json:"errors"`
	Warnings []string       `json:"warnings"`
	Metadata map[string]any `json:"metadata"`
}

// NewValidationResult returns an empty, valid result.
func NewValidationResult() ValidationResult {
	return ValidationResult{
		Valid:    true,
		Errors:   []string{},
		Warnings: []string{},
		Metadata: map[string]any{},
	}
}

// AddError records a violated constraint and marks the result invalid.
func (r *ValidationResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Valid = false
}

// AddWarning records a non-fatal finding.
func (r *ValidationResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Merge appends other's findings and metadata into r.
func (r *ValidationResult) Merge(other ValidationResult) {
	for _, msg := range other.Errors {
		r.AddError(msg)
	}

	r.Warnings = append(r.Warnings, other.Warnings...)

	if r.Metadata == nil {
		r.Metadata = map[string]any{}
	}

	for k, v := range other.Metadata {
		r.Metadata[k] = v
	}
}
