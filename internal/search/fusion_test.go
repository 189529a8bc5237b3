package search

import (
	"math"
	"testing"

	"github.com/hyperjump/norma/internal/keyword"
	"github.com/hyperjump/norma/internal/vector"
)

func lex(ids ...string) []*keyword.Result {
	out := make([]*keyword.Result, len(ids))
	for i, id := range ids {
		out[i] = &keyword.Result{ID: id, Score: float64(len(ids) - i)}
	}
	return out
}

func vec(ids ...string) []*vector.Result {
	out := make([]*vector.Result, len(ids))
	for i, id := range ids {
		out[i] = &vector.Result{ID: id, Score: 1 - float64(i)*0.1}
	}
	return out
}

func ids(rs []*FusedResult) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestFuseRRF_SelfFusionKeepsOrder(t *testing.T) {
	order := []string{"a", "b", "c", "d", "e"}
	got := ids(FuseRRF(lex(order...), vec(order...), 0, DefaultRRFK))
	for i := range order {
		if got[i] != order[i] {
			t.Fatalf("self fusion changed order: %v", got)
		}
	}
}

func TestFuseRRF_TopInBothIsMaximum(t *testing.T) {
	res := FuseRRF(lex("a", "b", "c"), vec("a", "x", "y"), 0, DefaultRRFK)
	if res[0].ID != "a" {
		t.Fatalf("expected a first, got %v", ids(res))
	}
	for _, r := range res[1:] {
		if r.Score >= res[0].Score {
			t.Errorf("%s score %.5f not below a %.5f", r.ID, r.Score, res[0].Score)
		}
	}
	want := 2.0 / float64(DefaultRRFK+1)
	if math.Abs(res[0].Score-want) > 1e-12 {
		t.Errorf("rrf(a) = %v, want %v", res[0].Score, want)
	}
	if res[0].LexicalRank != 1 || res[0].VectorRank != 1 {
		t.Errorf("ranks = %d/%d", res[0].LexicalRank, res[0].VectorRank)
	}
}

func TestFuseRRF_TiesPreferLexical(t *testing.T) {
	res := FuseRRF(lex("l1"), vec("v1"), 0, DefaultRRFK)
	if got := ids(res); got[0] != "l1" || got[1] != "v1" {
		t.Errorf("tie order = %v, want [l1 v1]", got)
	}
}

func TestFuseRRF_OneListEmpty(t *testing.T) {
	onlyVec := FuseRRF(nil, vec("a", "b"), 0, 0)
	if got := ids(onlyVec); len(got) != 2 || got[0] != "a" {
		t.Errorf("vector-only = %v", got)
	}
	if onlyVec[0].LexicalScore != nil || onlyVec[0].VectorScore == nil {
		t.Error("source scores not tracked")
	}
	onlyLex := FuseRRF(lex("a", "b"), nil, 0, 0)
	if got := ids(onlyLex); len(got) != 2 || got[0] != "a" {
		t.Errorf("lexical-only = %v", got)
	}
	if len(FuseRRF(nil, nil, 10, 0)) != 0 {
		t.Error("expected no results for two empty lists")
	}
}

func TestFuseRRF_Truncates(t *testing.T) {
	res := FuseRRF(lex("a", "b", "c"), vec("d", "e", "f"), 2, DefaultRRFK)
	if len(res) != 4 {
		t.Errorf("expected 4 fused ids after truncation, got %v", ids(res))
	}
}

func TestHybridScore(t *testing.T) {
	all := []float64{2, 4, 6}
	if got := HybridScore(0.5, 6, all, DefaultHybridAlpha); math.Abs(got-(0.7*0.5+0.3)) > 1e-12 {
		t.Errorf("HybridScore max = %v", got)
	}
	if got := HybridScore(0.5, 2, all, DefaultHybridAlpha); math.Abs(got-0.35) > 1e-12 {
		t.Errorf("HybridScore min = %v", got)
	}
	if got := HybridScore(1, 3, []float64{3, 3}, 0.7); math.Abs(got-0.7) > 1e-12 {
		t.Errorf("flat bm25 = %v", got)
	}
}
