package cvfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterMatch(t *testing.T) {
	f := MustCompileFilter("/dir/*.txt")
	assert.True(t, f.Match("/dir/file.txt"))
	assert.False(t, f.Match("/dir/file.dat"))
	assert.False(t, f.Match("/dir/sub/file.txt"))
}

func TestFilterDoubleStarCrossesSegments(t *testing.T) {
	f := MustCompileFilter("/dir/**/*.txt")
	assert.True(t, f.Match("/dir/a/b/file.txt"))
	assert.True(t, f.Match("/dir/file.txt"))
}

func TestFilterLiteralPrefixDepth(t *testing.T) {
	f := MustCompileFilter("/a/b/*.txt")
	assert.Equal(t, 2, f.LiteralPrefixDepth())
	assert.Equal(t, Path("/a/b"), f.LiteralPrefix())

	single := MustCompileFilter("/a/b/c")
	assert.Equal(t, 3, single.LiteralPrefixDepth())
}

func TestFilterIntersects(t *testing.T) {
	f := MustCompileFilter("/dir/*.txt")
	assert.True(t, f.Intersects("/dir"))
	assert.True(t, f.Intersects(""))
	assert.True(t, f.Intersects("/dir/sub"))
	assert.False(t, f.Intersects("/other"))
}

func TestCompileFilterInvalid(t *testing.T) {
	_, err := CompileFilter("[")
	require.Error(t, err)
	assert.True(t, IsCode(err, CodePathInvalid))
}
