package cvfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathSegments(t *testing.T) {
	assert.Nil(t, Path("").Segments())
	assert.Equal(t, []string{"a", "b"}, Path("/a/b").Segments())
	assert.Equal(t, []string{"a", "b"}, Path("a/b/").Segments())
}

func TestPathSegmentsAllowEmpty(t *testing.T) {
	assert.Equal(t, []string{"", "a", "", "b"}, Path("/a//b").SegmentsAllowEmpty())
}

func TestPathIsRootIsDir(t *testing.T) {
	assert.True(t, Path("").IsRoot())
	assert.True(t, Path("/").IsRoot())
	assert.True(t, Path("").IsDir())
	assert.True(t, Path("/a/").IsDir())
	assert.False(t, Path("/a").IsDir())
}

func TestPathNameParentChild(t *testing.T) {
	assert.Equal(t, "b", Path("/a/b").Name())
	assert.Equal(t, Path("/a/"), Path("/a/b").Parent())
	assert.Equal(t, Path(""), Path("/a").Parent())
	assert.Equal(t, Path("/a/b"), Path("/a").Child("b"))
	assert.Equal(t, Path("/a/b"), Path("/a/").Child("/b/"))
}

func TestPathAsDirAsFile(t *testing.T) {
	assert.Equal(t, Path("/a/"), Path("/a").AsDir())
	assert.Equal(t, Path("/a/"), Path("/a/").AsDir())
	assert.Equal(t, Path(""), Path("").AsDir())
	assert.Equal(t, Path("/a"), Path("/a/").AsFile())
}

func TestPathStartsWith(t *testing.T) {
	assert.True(t, Path("/a/b").StartsWith(""))
	assert.True(t, Path("/a/b").StartsWith("/a"))
	assert.False(t, Path("/ab").StartsWith("/a"))
	assert.False(t, Path("/a/b").StartsWith("/a/b/c"))
}

func TestPathTrimPrefix(t *testing.T) {
	assert.Equal(t, Path("/b"), Path("/a/b").TrimPrefix("/a"))
	assert.Equal(t, Path(""), Path("/a").TrimPrefix("/a"))
	assert.Equal(t, Path("/ab"), Path("/ab").TrimPrefix("/a"))
}

func TestPathString(t *testing.T) {
	assert.Equal(t, "/", Path("").String())
	assert.Equal(t, "/a/b", Path("a/b").String())
	assert.Equal(t, "/a/b/", Path("a/b/").String())
}

func TestPathConverter(t *testing.T) {
	c := PathConverter{From: "/src", To: "/dst"}
	p, ok := c.Convert("/src/x/y")
	assert.True(t, ok)
	assert.Equal(t, Path("/dst/x/y"), p)

	_, ok = c.Convert("/other")
	assert.False(t, ok)

	inv := c.Invert()
	p2, ok := inv.Convert("/dst/x/y")
	assert.True(t, ok)
	assert.Equal(t, Path("/src/x/y"), p2)
}

func TestConcatPaths(t *testing.T) {
	assert.Equal(t, Path("/a/b/c"), ConcatPaths("/a", "/b", "/c"))
	assert.Equal(t, Path("/a/b/"), ConcatPaths("/a", "/b/"))
}
