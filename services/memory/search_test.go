package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mem(id, content string, createdAt int64) *Memory {
	return &Memory{ID: id, Content: content, CreatedAt: createdAt, Category: CategoryFact}
}

func ids(rs []*Result) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}

func TestRankTextPrefixRanksStrictlyHigher(t *testing.T) {
	rows := []*Memory{
		mem("a", "We deploy on Fridays", 1),
		mem("b", "Deploy checklist lives in notion", 1),
		mem("c", "nothing relevant here", 1),
	}

	out := rankText(rows, "DEPLOY")
	require.Equal(t, []string{"b", "a"}, ids(out))
	require.Equal(t, float64(30), out[0].Score)
	require.Equal(t, float64(10), out[1].Score)
	require.Greater(t, out[0].Score, out[1].Score)
}

func TestRankTextCountsOccurrencesAndBreaksTiesByRecency(t *testing.T) {
	rows := []*Memory{
		mem("old", "coffee", 1),
		mem("new", "likes coffee", 5),
		mem("many", "coffee coffee coffee", 2),
	}

	out := rankText(rows, "coffee")
	require.Equal(t, []string{"many", "old", "new"}, ids(out))
	require.Equal(t, float64(50), out[0].Score)

	tie := rankText([]*Memory{mem("x", "a tea", 1), mem("y", "b tea", 9)}, "tea")
	require.Equal(t, []string{"y", "x"}, ids(tie))

	require.Empty(t, rankText(rows, "  "))
}

func TestRankVectorOrdersByCosine(t *testing.T) {
	q := []float32{1, 0, 0}
	rows := []*Memory{
		{ID: "orth", Embedding: Vector{0, 1, 0}},
		{ID: "same", Embedding: Vector{2, 0, 0}},
		{ID: "near", Embedding: Vector{1, 1, 0}},
		{ID: "short", Embedding: Vector{1, 0}},
	}

	out := rankVector(rows, q)
	require.Equal(t, []string{"same", "near", "orth"}, ids(out))
	require.InDelta(t, 1.0, out[0].Score, 1e-9)
}

func results(idList ...string) []*Result {
	out := make([]*Result, 0, len(idList))
	for _, id := range idList {
		out = append(out, &Result{Memory: &Memory{ID: id}})
	}
	return out
}

func TestMergeHybridScores(t *testing.T) {
	text := results("a", "b")
	vector := results("b", "c", "d", "e")

	out := mergeHybrid(text, vector, 0.7, 10)
	scores := map[string]float64{}
	for _, r := range out {
		scores[r.ID] = r.Score
	}

	require.InDelta(t, 0.3*1.0, scores["a"], 1e-9)
	require.InDelta(t, 0.3*0.5+0.7*1.0, scores["b"], 1e-9)
	require.InDelta(t, 0.7*0.75, scores["c"], 1e-9)
	require.Equal(t, "b", out[0].ID)

	for i := 1; i < len(out); i++ {
		require.GreaterOrEqual(t, out[i-1].Score, out[i].Score)
	}
}

func TestMergeHybridMonotoneInRank(t *testing.T) {
	text := results("a", "b", "c", "d")
	vector := results("a", "c", "b", "d")

	for _, w := range []float64{0, 0.3, 0.7, 1} {
		out := mergeHybrid(text, vector, w, 10)
		pos := map[string]int{}
		score := map[string]float64{}
		for i, r := range out {
			pos[r.ID] = i
			score[r.ID] = r.Score
		}

		// a and d keep their relative order in both lists
		require.Less(t, pos["a"], pos["d"])
		require.GreaterOrEqual(t, score["a"], score["b"])
		require.GreaterOrEqual(t, score["c"], score["d"])
	}
}

func TestMergeHybridTruncatesAndHandlesEmptySides(t *testing.T) {
	out := mergeHybrid(results("a", "b", "c"), nil, 0.7, 2)
	require.Equal(t, []string{"a", "b"}, ids(out))

	out = mergeHybrid(nil, results("x"), 0.5, 5)
	require.Equal(t, []string{"x"}, ids(out))
	require.InDelta(t, 0.5, out[0].Score, 1e-9)

	require.Empty(t, mergeHybrid(nil, nil, 0.7, 5))
}

func TestVectorRoundTrip(t *testing.T) {
	v := Vector{0.25, -1.5, 3}
	raw, err := v.Value()
	require.NoError(t, err)
	require.Len(t, raw, 12)

	var got Vector
	require.NoError(t, got.Scan(raw))
	require.Equal(t, v, got)

	empty, err := Vector(nil).Value()
	require.NoError(t, err)
	require.Nil(t, empty)

	require.Error(t, got.Scan([]byte{1, 2, 3}))
}
