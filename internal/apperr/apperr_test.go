package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curation-service/internal/apperr"
)

func TestErrorsIs_MatchesByKind(t *testing.T) {
	err := fmt.Errorf("cancel: %w", apperr.InvalidJobStatus("completed", "cancelled"))

	assert.True(t, errors.Is(err, apperr.ErrInvalidJobStatus))
	assert.False(t, errors.Is(err, apperr.ErrNotFound))
	assert.Equal(t, apperr.KindInvalidJobStatus, apperr.KindOf(err))
}

func TestKindOf_ForeignErrorIsInternal(t *testing.T) {
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(errors.New("boom")))
}

func TestValidationFields_SortedAndNamed(t *testing.T) {
	err := apperr.ValidationFields([]apperr.FieldError{
		{Field: "news_value", Message: "is required"},
		{Field: "absurdity", Message: "must be between 0 and 10"},
	})

	require.Len(t, err.Fields, 2)
	assert.Equal(t, "absurdity", err.Fields[0].Field)
	assert.Contains(t, err.Error(), "absurdity: must be between 0 and 10")
	assert.Contains(t, err.Error(), "news_value: is required")
}

func TestIsTransient(t *testing.T) {
	cause := errors.New("connection reset")

	assert.True(t, apperr.IsTransient(apperr.Upstream("store unavailable", true, cause)))
	assert.False(t, apperr.IsTransient(apperr.Upstream("missing column", false, cause)))
	assert.False(t, apperr.IsTransient(apperr.NotFound("job")))
}

func TestNoActiveConfiguration_DistinguishesRemediation(t *testing.T) {
	none := apperr.NoActiveConfiguration(false)
	inactive := apperr.NoActiveConfiguration(true)

	assert.NotEqual(t, none.Detail, inactive.Detail)
	assert.Contains(t, none.Detail, "no weight configurations exist")
	assert.Contains(t, inactive.Detail, "none is active")
}
