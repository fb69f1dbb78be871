package model

import (
	"cmp"
	"slices"
)

// ClusterAssignment is the outcome of one clustering pass
type ClusterAssignment struct {
	// Clusters maps each embedded record to its cluster id, the id of the
	// record that seeded the cluster
	Clusters map[RecordID]int64
	// Unassigned lists records without an embedding
	Unassigned []RecordID
	// Count is the number of clusters created
	Count int
}

type centroid struct {
	id   int64
	sum  []float64
	mean []float32
	n    int
}

func (c *centroid) add(v []float32) {
	c.n++
	for i, x := range v {
		c.sum[i] += float64(x)
		c.mean[i] = float32(c.sum[i] / float64(c.n))
	}
}

// AssignClusters groups records by greedy single-pass threshold clustering.
//
// Records are visited in ascending id order. Each record joins the existing cluster
// whose running-mean centroid is most similar, provided the similarity is at least
// threshold; otherwise it starts a new cluster named after itself. A cluster id is
// therefore its lowest member id and survives later runs as long as the seed stays.
// The result depends on visiting order and the relation is not transitive.
func AssignClusters(records []*Record, threshold float64) *ClusterAssignment {
	sorted := slices.Clone(records)
	slices.SortFunc(sorted, func(a, b *Record) int {
		return cmp.Compare(a.ID, b.ID)
	})

	result := &ClusterAssignment{
		Clusters: make(map[RecordID]int64, len(sorted)),
	}

	var centroids []*centroid
	for _, r := range sorted {
		if !r.HasEmbedding() {
			result.Unassigned = append(result.Unassigned, r.ID)
			continue
		}

		var best *centroid
		bestScore := 0.0
		for _, c := range centroids {
			if len(c.mean) != len(r.Embedding) {
				continue
			}
			score := CosineSimilarity(r.Embedding, c.mean)
			if score >= threshold && (best == nil || score > bestScore) {
				best, bestScore = c, score
			}
		}

		if best == nil {
			best = &centroid{
				id:   int64(r.ID),
				sum:  make([]float64, len(r.Embedding)),
				mean: make([]float32, len(r.Embedding)),
			}
			centroids = append(centroids, best)
		}
		best.add(r.Embedding)
		result.Clusters[r.ID] = best.id
	}

	result.Count = len(centroids)
	return result
}
