package fidelity

import "sort"

// Verdict classifies a coverage score against the acceptance policy.
type Verdict string

const (
	// VerdictRejected means the candidate carries more tokens than the
	// source ever had: invented or duplicated content.
	VerdictRejected   Verdict = "rejected"
	VerdictPerfect    Verdict = "perfect"
	VerdictExcellent  Verdict = "excellent"
	VerdictAcceptable Verdict = "acceptable"
	VerdictFailed     Verdict = "failed"
)

const (
	excellentFloor  = 99.0
	acceptableFloor = 95.0
)

// Report is the comparator's output for one unit. Identical inputs
// always produce identical reports.
type Report struct {
	Coverage          float64  `json:"coverage"`
	ReferenceTokens   int      `json:"reference_tokens"`
	CandidateTokens   int      `json:"candidate_tokens"`
	MissingContent    []string `json:"missing_content_words"`
	MissingFormatting []string `json:"missing_formatting_words"`
	ExtraWords        []string `json:"extra_words"`
	StrippedLines     int      `json:"stripped_lines,omitempty"`
	Verdict           Verdict  `json:"verdict"`
	Valid             bool     `json:"valid"`
}

// Compare measures how faithfully candidate text reproduces reference
// text. Boilerplate is stripped from the reference side first; the
// candidate is compared as-is. Coverage is the raw token-count ratio, so
// a candidate that collapses repeated words scores below 100 even with
// an empty missing set, and one that pads content scores above 100 and
// is rejected.
func Compare(reference, candidate string, bp *Boilerplate) Report {
	stripped := 0
	if bp != nil {
		reference, stripped = bp.StripLines(reference)
	}
	refTokens := Tokenize(reference)
	candTokens := Tokenize(candidate)

	r := Report{
		ReferenceTokens: len(refTokens),
		CandidateTokens: len(candTokens),
		StrippedLines:   stripped,
	}
	switch {
	case len(refTokens) == 0 && len(candTokens) == 0:
		r.Coverage = 100
	case len(refTokens) == 0:
		r.Coverage = 0
	default:
		r.Coverage = float64(len(candTokens)) / float64(len(refTokens)) * 100
	}

	refSet := toSet(refTokens)
	candSet := toSet(candTokens)
	r.MissingContent = []string{}
	r.MissingFormatting = []string{}
	r.ExtraWords = []string{}
	for tok := range refSet {
		if candSet[tok] {
			continue
		}
		if isFormattingToken(tok) {
			r.MissingFormatting = append(r.MissingFormatting, tok)
		} else {
			r.MissingContent = append(r.MissingContent, tok)
		}
	}
	for tok := range candSet {
		if !refSet[tok] {
			r.ExtraWords = append(r.ExtraWords, tok)
		}
	}
	sort.Strings(r.MissingContent)
	sort.Strings(r.MissingFormatting)
	sort.Strings(r.ExtraWords)

	r.Verdict = verdictFor(r.Coverage)
	r.Valid = passing(r.Verdict) && len(r.MissingContent) == 0
	return r
}

// verdictFor applies the fixed acceptance thresholds.
func verdictFor(coverage float64) Verdict {
	switch {
	case coverage > 100:
		return VerdictRejected
	case coverage == 100:
		return VerdictPerfect
	case coverage >= excellentFloor:
		return VerdictExcellent
	case coverage >= acceptableFloor:
		return VerdictAcceptable
	default:
		return VerdictFailed
	}
}

func passing(v Verdict) bool {
	return v == VerdictPerfect || v == VerdictExcellent || v == VerdictAcceptable
}

func toSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		set[tok] = true
	}
	return set
}
