package dataset

import "sort"

// SortTournamentByID sorts rows ascending by row-id within each partition.
func SortTournamentByID(rows []TournamentRow) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
}

// SortSubmissionByID sorts rows ascending by ID.
func SortSubmissionByID(rows []SubmissionRow) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
}

// FilterPartition returns the rows belonging to one partition, in their
// input order (callers sort separately via SortTournamentByID).
func FilterPartition(rows []TournamentRow, p Partition) []TournamentRow {
	var out []TournamentRow
	for _, r := range rows {
		if r.Partition == p {
			out = append(out, r)
		}
	}
	return out
}

// JoinClusterProbabilities pairs a partition's tournament rows (already
// sorted by ID — the same order the Round Feature Engine predicted
// clusters in) against the submission's probability column, keeping both
// the matched probability and its row's cluster assignment so the two stay
// aligned. A tournament row with no corresponding submission entry
// contributes nothing: predictions need only cover the rows the scoring
// stage consults, not the inverse.
func JoinClusterProbabilities(rows []TournamentRow, clusters []int, submission []SubmissionRow) (probs []float64, alignedClusters []int) {
	bySubmissionID := make(map[string]float64, len(submission))
	for _, s := range submission {
		bySubmissionID[s.ID] = s.Probability
	}
	probs = make([]float64, 0, len(rows))
	alignedClusters = make([]int, 0, len(rows))
	for i, r := range rows {
		if p, ok := bySubmissionID[r.ID]; ok {
			probs = append(probs, p)
			alignedClusters = append(alignedClusters, clusters[i])
		}
	}
	return probs, alignedClusters
}

// JoinValidationByEraAndID pairs validation rows and the submission's
// probabilities for one era, both sorted by ID, so the label at index i
// corresponds to the probability at index i.
func JoinValidationByEraAndID(validationRows []TournamentRow, era string, submission []SubmissionRow) (labels, probs []float64) {
	var eraRows []TournamentRow
	for _, r := range validationRows {
		if r.Era == era {
			eraRows = append(eraRows, r)
		}
	}
	SortTournamentByID(eraRows)

	bySubmissionID := make(map[string]float64, len(submission))
	for _, s := range submission {
		bySubmissionID[s.ID] = s.Probability
	}

	for _, r := range eraRows {
		if p, ok := bySubmissionID[r.ID]; ok {
			labels = append(labels, r.Target)
			probs = append(probs, p)
		}
	}
	return labels, probs
}

// DistinctEras returns the sorted set of distinct era values among rows.
func DistinctEras(rows []TournamentRow) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range rows {
		if !seen[r.Era] {
			seen[r.Era] = true
			out = append(out, r.Era)
		}
	}
	sort.Strings(out)
	return out
}
