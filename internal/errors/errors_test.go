package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSiteError_Error_IncludesCategoryAndCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(cause, CategoryContent, SeverityFatal, "page metadata is not a mapping")

	require.Contains(t, err.Error(), "content")
	require.Contains(t, err.Error(), "fatal")
	require.Contains(t, err.Error(), "boom")
}

func TestSiteError_Unwrap_ExposesCause(t *testing.T) {
	cause := fs.ErrNotExist
	err := FileUnavailable("post/a.md", cause)

	require.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestIsCategory_MatchesThroughWrapping(t *testing.T) {
	err := UnknownCategory("missing")
	wrapped := fmt.Errorf("request failed: %w", err)

	require.True(t, IsCategory(wrapped, CategoryPagination))
	require.False(t, IsCategory(wrapped, CategoryContent))
}

func TestIsNotFound_DistinguishesLookupFromAuthoringErrors(t *testing.T) {
	require.True(t, IsNotFound(RouteNotFound("about")))
	require.True(t, IsNotFound(KeyNotFound("about", "title")))
	require.False(t, IsNotFound(InvalidDate("post/a", "not-a-date")))
}

func TestWithContext_SurfacesOffendingMetadata(t *testing.T) {
	err := InvalidPerPage("blog", "ten")

	require.Equal(t, "blog", err.Context["route"])
	require.Equal(t, "ten", err.Context["perpage"])
	require.Contains(t, err.Error(), "perpage")
}
