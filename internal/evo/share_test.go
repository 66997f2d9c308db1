package evo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeanShare(t *testing.T) {
	sp := &Species{ID: "sp-001"}
	members := []*Genome{scored("a", 4), scored("b", 2), scored("c", math.NaN()), scored("d", math.Inf(1))}

	assert.InDelta(t, 3.0, MeanShare{}.Share(sp, members, false, 0), 1e-12)
	assert.InDelta(t, 7.0, MeanShare{}.Share(sp, members, true, 10), 1e-12)
	assert.Zero(t, MeanShare{}.Share(sp, []*Genome{scored("x", math.NaN())}, false, 0))
	assert.Zero(t, MeanShare{}.Share(sp, nil, false, 0))
}

func TestMeanShareUsesAdjustedScore(t *testing.T) {
	g := scored("a", 4)
	g.AdjustedScore = 1
	assert.Equal(t, 1.0, MeanShare{}.Share(&Species{}, []*Genome{g}, false, 0))
}

func TestSizeAdjustedShare(t *testing.T) {
	members := []*Genome{scored("a", 4), scored("b", 2)}
	assert.InDelta(t, 1.5, SizeAdjustedShare{}.Share(&Species{}, members, false, 0), 1e-12)
	assert.InDelta(t, 4.0, SizeAdjustedShare{}.Share(&Species{}, members[:1], false, 0), 1e-12)
	assert.Equal(t, "size_adjusted", SizeAdjustedShare{}.Name())
}
