package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	RecipientID string `json:"recipient_id" validate:"required"`
	Kind        string `json:"kind" validate:"message_kind"`
	Limit       int    `form:"limit" validate:"min=0,max=200"`
}

func TestValidate_FieldNamesFromTags(t *testing.T) {
	v := New()

	err := v.Validate(&sample{Kind: "sticker", Limit: 500})
	require.Error(t, err)

	vErr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Equal(t, "This field is required", vErr.Errors["recipient_id"])
	assert.Contains(t, vErr.Errors["kind"], "shared-post")
	assert.Contains(t, vErr.Errors["limit"], "200")
}

func TestValidate_MessageKind(t *testing.T) {
	v := New()

	for _, kind := range []string{"", "text", "media", "gif", "shared-post"} {
		assert.NoError(t, v.Validate(&sample{RecipientID: "u", Kind: kind}), kind)
	}
}
