package clustering

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lanefield/brag/pkg/models"
)

// workstreamPalette colors newly created workstreams. Cycled in order.
var workstreamPalette = []string{
	"#4E79A7", "#F28E2B", "#E15759", "#76B7B2", "#59A14F",
	"#EDC948", "#B07AA1", "#FF9DA7", "#9C755F", "#BAB0AC",
}

// group is one candidate workstream found by the threshold pass.
type group struct {
	members  []*models.Achievement
	centroid []float32
}

// runFull re-clusters every embedded, in-filter achievement from scratch,
// reconciles the user's history outside the filter, and overwrites the run
// metadata.
func (e *Engine) runFull(ctx context.Context, userID string, filter *models.Filter, params Params, sink Sink) (*FullOutcome, error) {
	achievements, err := e.achievements.ListFilteredEmbedded(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("load filtered achievements: %w", err)
	}

	if err := emitProgress(ctx, sink, "grouping", "Computing groups"); err != nil {
		return nil, err
	}

	groups, outliers := groupByThreshold(achievements, params.SimilarityThreshold)
	e.log.Debug().
		Str("userId", userID).
		Int("groups", len(groups)).
		Int("outliers", len(outliers)).
		Int("targetHint", params.TargetClusters).
		Msg("Threshold grouping finished")

	priors, err := e.workstreams.ListWorkstreams(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load workstreams: %w", err)
	}
	priorMembers, err := e.workstreams.ListMembers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load workstream members: %w", err)
	}

	matches := matchPriorWorkstreams(groups, priors, priorMembers, params.SimilarityThreshold)

	outcome := &FullOutcome{}
	nextName := len(priors) + 1
	processed := make(map[int64]struct{}, len(achievements))
	for _, a := range achievements {
		processed[a.ID] = struct{}{}
	}

	for i, g := range groups {
		ws := matches[i]
		if ws == nil {
			ws = &models.Workstream{
				UserID: userID,
				Name:   fmt.Sprintf("Workstream %d", nextName),
				Color:  workstreamPalette[(nextName-1)%len(workstreamPalette)],
			}
			nextName++
			if err := e.workstreams.CreateWorkstream(ctx, ws); err != nil {
				return nil, fmt.Errorf("create workstream: %w", err)
			}
			outcome.WorkstreamsCreated++
		} else {
			outcome.WorkstreamsReused++
		}

		ids := achievementIDs(g.members)
		if err := e.achievements.SetWorkstream(ctx, userID, ids, ws.ID); err != nil {
			return nil, fmt.Errorf("assign achievements to workstream %d: %w", ws.ID, err)
		}
		outcome.Assigned += len(ids)
		outcome.Workstreams = append(outcome.Workstreams, WorkstreamSummary{
			ID:             ws.ID,
			Name:           ws.Name,
			Color:          ws.Color,
			Reused:         matches[i] != nil,
			AchievementIDs: ids,
		})
	}

	// Outliers keep no link, including any stale link from a prior run.
	if len(outliers) > 0 {
		if err := e.achievements.ClearWorkstream(ctx, userID, achievementIDs(outliers)); err != nil {
			return nil, fmt.Errorf("clear outlier links: %w", err)
		}
	}
	outcome.Outliers = len(outliers)

	if err := emitProgress(ctx, sink, "assigned", "Achievements assigned"); err != nil {
		return nil, err
	}

	// Prior workstreams that kept no members disappear. A prior survives if
	// it was reused or still holds members outside the reclustered window.
	if stale := emptiedWorkstreams(priors, priorMembers, matches, processed); len(stale) > 0 {
		if err := e.workstreams.DeleteWorkstreams(ctx, userID, stale); err != nil {
			return nil, fmt.Errorf("delete emptied workstreams: %w", err)
		}
	}

	if err := emitProgress(ctx, sink, "reconciling", "Reconciling achievements outside filters"); err != nil {
		return nil, err
	}
	autoAssigned, err := e.reconcileOutsideFilter(ctx, userID, filter, groups, outcome, params.SimilarityThreshold)
	if err != nil {
		return nil, err
	}
	outcome.AutoAssignedOutsideFilters = autoAssigned

	total, err := e.achievements.CountAchievements(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count achievements: %w", err)
	}
	filtered := int64(len(achievements))
	meta := &models.ClusteringRun{
		UserID:           userID,
		LastRunAt:        time.Now(),
		AchievementCount: total,
		FilteredCount:    &filtered,
		Filter:           filter,
	}
	if err := e.runs.UpsertClusteringRun(ctx, meta); err != nil {
		return nil, fmt.Errorf("upsert clustering run metadata: %w", err)
	}
	outcome.Metadata = meta

	return outcome, nil
}

// groupByThreshold partitions achievements into groups whose members are
// similar to the group's seed under the threshold. Achievements are walked
// newest-first so the most recent item seeds each group. Singleton groups
// are returned separately as outliers.
func groupByThreshold(achievements []*models.Achievement, threshold float64) ([]group, []*models.Achievement) {
	sorted := make([]*models.Achievement, len(achievements))
	copy(sorted, achievements)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].OccurredAt.After(sorted[j].OccurredAt)
	})

	clustered := make([]bool, len(sorted))
	var groups []group
	var outliers []*models.Achievement

	for i := range sorted {
		if clustered[i] {
			continue
		}
		clustered[i] = true
		members := []*models.Achievement{sorted[i]}

		for j := i + 1; j < len(sorted); j++ {
			if clustered[j] {
				continue
			}
			if CosineSimilarity(sorted[i].Embedding, sorted[j].Embedding) >= threshold {
				clustered[j] = true
				members = append(members, sorted[j])
			}
		}

		if len(members) < 2 {
			outliers = append(outliers, sorted[i])
			continue
		}

		vectors := make([][]float32, len(members))
		for k, m := range members {
			vectors[k] = m.Embedding
		}
		groups = append(groups, group{members: members, centroid: Centroid(vectors)})
	}

	return groups, outliers
}

// matchPriorWorkstreams pairs each new group with at most one prior
// workstream whose centroid is the nearest above the threshold, so reused
// workstreams keep their name and color. Greedy: best matches claim priors
// first.
func matchPriorWorkstreams(groups []group, priors []*models.Workstream, priorMembers map[int64][]*models.Achievement, threshold float64) []*models.Workstream {
	matches := make([]*models.Workstream, len(groups))
	if len(priors) == 0 {
		return matches
	}

	priorCentroids := make(map[int64][]float32, len(priors))
	for _, ws := range priors {
		members := priorMembers[ws.ID]
		vectors := make([][]float32, 0, len(members))
		for _, m := range members {
			vectors = append(vectors, m.Embedding)
		}
		if centroid := Centroid(vectors); centroid != nil {
			priorCentroids[ws.ID] = centroid
		}
	}

	type candidate struct {
		groupIdx   int
		workstream *models.Workstream
		similarity float64
	}
	var candidates []candidate
	for i, g := range groups {
		for _, ws := range priors {
			centroid, ok := priorCentroids[ws.ID]
			if !ok {
				continue
			}
			if sim := CosineSimilarity(g.centroid, centroid); sim >= threshold {
				candidates = append(candidates, candidate{groupIdx: i, workstream: ws, similarity: sim})
			}
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].similarity > candidates[j].similarity
	})

	usedPriors := make(map[int64]bool, len(priors))
	for _, c := range candidates {
		if matches[c.groupIdx] != nil || usedPriors[c.workstream.ID] {
			continue
		}
		matches[c.groupIdx] = c.workstream
		usedPriors[c.workstream.ID] = true
	}
	return matches
}

// emptiedWorkstreams returns prior workstream ids left without members:
// not reused, and all prior members fell inside the reclustered window.
func emptiedWorkstreams(priors []*models.Workstream, priorMembers map[int64][]*models.Achievement, matches []*models.Workstream, processed map[int64]struct{}) []int64 {
	reused := make(map[int64]bool, len(matches))
	for _, ws := range matches {
		if ws != nil {
			reused[ws.ID] = true
		}
	}

	var stale []int64
	for _, ws := range priors {
		if reused[ws.ID] {
			continue
		}
		remaining := 0
		for _, m := range priorMembers[ws.ID] {
			if _, ok := processed[m.ID]; !ok {
				remaining++
			}
		}
		if remaining == 0 {
			stale = append(stale, ws.ID)
		}
	}
	return stale
}

// reconcileOutsideFilter assigns unlinked embedded achievements outside the
// filter window to the nearest newly-formed workstream when within the
// threshold, keeping the user's full history coherent.
func (e *Engine) reconcileOutsideFilter(ctx context.Context, userID string, filter *models.Filter, groups []group, outcome *FullOutcome, threshold float64) (int, error) {
	outside, err := e.achievements.ListUnassignedEmbeddedOutsideFilter(ctx, userID, filter)
	if err != nil {
		return 0, fmt.Errorf("load achievements outside filter: %w", err)
	}
	if len(outside) == 0 || len(groups) == 0 {
		return 0, nil
	}

	byWorkstream := make(map[int64][]int64)
	for _, a := range outside {
		bestIdx, bestSim := -1, threshold
		for i, g := range groups {
			if sim := CosineSimilarity(a.Embedding, g.centroid); sim >= bestSim {
				bestIdx, bestSim = i, sim
			}
		}
		if bestIdx >= 0 {
			wsID := outcome.Workstreams[bestIdx].ID
			byWorkstream[wsID] = append(byWorkstream[wsID], a.ID)
		}
	}

	assigned := 0
	for wsID, ids := range byWorkstream {
		if err := e.achievements.SetWorkstream(ctx, userID, ids, wsID); err != nil {
			return assigned, fmt.Errorf("auto-assign outside-filter achievements: %w", err)
		}
		assigned += len(ids)
	}
	return assigned, nil
}

func achievementIDs(achievements []*models.Achievement) []int64 {
	ids := make([]int64, len(achievements))
	for i, a := range achievements {
		ids[i] = a.ID
	}
	return ids
}
