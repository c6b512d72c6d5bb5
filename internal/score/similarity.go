package score

// SimilarityScore converts an embedding distance into a [0,1] score. The
// distance is an opaque metric produced by the embedding collaborator; a
// distance of zero is a perfect semantic match, anything at or beyond 1
// scores zero.
func SimilarityScore(distance float64) float64 {
	return maxFloat(0, 1.0-distance)
}
