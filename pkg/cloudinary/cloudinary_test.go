package cloudinary

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildOptimizedImageURL(t *testing.T) {
	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/q_auto,f_auto,w_96,c_fill/habitpact/avatars/avatar_7",
		BuildOptimizedImageURL("demo", "habitpact/avatars/avatar_7", ThumbWidth))
	assert.Contains(t, BuildOptimizedImageURL("demo", "x", 0), "w_400")
}
