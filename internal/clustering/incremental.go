package clustering

import (
	"context"
	"fmt"

	"github.com/lanefield/brag/pkg/models"
)

// runIncremental places unassigned, embedded, in-filter achievements into
// the nearest existing workstream above the threshold. It never creates a
// workstream and never moves an already-assigned achievement; items without
// a close-enough workstream stay unassigned.
func (e *Engine) runIncremental(ctx context.Context, userID string, filter *models.Filter, params Params, sink Sink) (*IncrementalOutcome, error) {
	workstreams, err := e.workstreams.ListWorkstreams(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load workstreams: %w", err)
	}
	members, err := e.workstreams.ListMembers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load workstream members: %w", err)
	}

	// Derive each workstream's current summary vector from its members.
	type target struct {
		ws       *models.Workstream
		centroid []float32
	}
	targets := make([]target, 0, len(workstreams))
	for _, ws := range workstreams {
		vectors := make([][]float32, 0, len(members[ws.ID]))
		for _, m := range members[ws.ID] {
			vectors = append(vectors, m.Embedding)
		}
		if centroid := Centroid(vectors); centroid != nil {
			targets = append(targets, target{ws: ws, centroid: centroid})
		}
	}

	candidates, err := e.achievements.ListUnassignedFilteredEmbedded(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("load unassigned achievements: %w", err)
	}

	if err := emitProgress(ctx, sink, "assigning", "Assigning new achievements to existing workstreams"); err != nil {
		return nil, err
	}

	outcome := &IncrementalOutcome{
		Assigned:   []Assignment{},
		Unassigned: []int64{},
	}
	byWorkstream := make(map[int64][]int64)

	for _, a := range candidates {
		bestIdx, bestSim := -1, params.SimilarityThreshold
		for i, t := range targets {
			if sim := CosineSimilarity(a.Embedding, t.centroid); sim >= bestSim {
				bestIdx, bestSim = i, sim
			}
		}
		if bestIdx < 0 {
			outcome.Unassigned = append(outcome.Unassigned, a.ID)
			continue
		}
		t := targets[bestIdx]
		byWorkstream[t.ws.ID] = append(byWorkstream[t.ws.ID], a.ID)
		outcome.Assigned = append(outcome.Assigned, Assignment{
			AchievementID:  a.ID,
			WorkstreamID:   t.ws.ID,
			WorkstreamName: t.ws.Name,
			Similarity:     bestSim,
		})
	}

	for wsID, ids := range byWorkstream {
		if err := e.achievements.SetWorkstream(ctx, userID, ids, wsID); err != nil {
			return nil, fmt.Errorf("assign achievements to workstream %d: %w", wsID, err)
		}
	}

	if err := emitProgress(ctx, sink, "assigned", "Achievements assigned"); err != nil {
		return nil, err
	}

	e.log.Info().
		Str("userId", userID).
		Int("assigned", len(outcome.Assigned)).
		Int("unassigned", len(outcome.Unassigned)).
		Msg("Incremental assignment finished")

	return outcome, nil
}
