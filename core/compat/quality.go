package compat

import "strings"

// AnyQuality matches every lot grade.
const AnyQuality = "Any"

var gradeRank = map[string]int{"A": 4, "B": 3, "C": 2, "D": 1}

// GradeRank returns the rank of a quality grade, 0 for unknown grades.
func GradeRank(grade string) int {
	return gradeRank[strings.ToUpper(strings.TrimSpace(grade))]
}

func isWildcard(required string) bool {
	r := strings.TrimSpace(required)
	return r == "" || strings.EqualFold(r, AnyQuality)
}

// QualityMeets reports whether a lot of grade lot satisfies required.
func QualityMeets(lot, required string) bool {
	if isWildcard(required) {
		return true
	}
	l, r := GradeRank(lot), GradeRank(required)
	if r == 0 {
		return strings.EqualFold(strings.TrimSpace(lot), strings.TrimSpace(required))
	}
	return l >= r
}

// QualityMatchScore rates how closely a lot grade fits the requirement on a
// 0-100 scale. Exact and wildcard matches score 100; every grade above the
// requirement costs 20 points down to 40. Grades that do not meet the
// requirement score 0.
func QualityMatchScore(lot, required string) float64 {
	if isWildcard(required) {
		return 100
	}
	if !QualityMeets(lot, required) {
		return 0
	}
	diff := GradeRank(lot) - GradeRank(required)
	if diff <= 0 {
		return 100
	}
	score := 100 - 20*float64(diff)
	if score < 40 {
		score = 40
	}
	return score
}
