package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaxAccessOrdering(t *testing.T) {
	assert.Equal(t, AccessNone, MaxAccess())
	assert.Equal(t, AccessManage, MaxAccess(AccessView, AccessManage, AccessEdit))
	assert.Equal(t, AccessEdit, MaxAccess(AccessNone, AccessEdit, AccessView))

	assert.True(t, AccessManage.Allows(AccessEdit))
	assert.True(t, AccessManage.Allows(AccessView))
	assert.True(t, AccessEdit.Allows(AccessView))
	assert.False(t, AccessView.Allows(AccessEdit))
	assert.False(t, AccessNone.Allows(AccessView))
}

func TestAccessLevelJSON(t *testing.T) {
	p := Permission{ID: "p1", Level: AccessEdit}
	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"level":"edit"`)

	var out Permission
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, AccessEdit, out.Level)

	_, err = ParseAccessLevel("owner")
	assert.Error(t, err)
}

func TestCategoryFor(t *testing.T) {
	tests := map[string]string{
		"image/png":         CategoryImage,
		"video/mp4":         CategoryVideo,
		"audio/mpeg":        CategoryAudio,
		"application/pdf":   CategoryDocument,
		"text/plain":        CategoryDocument,
		"application/zip":   CategoryArchive,
		"application/x-foo": CategoryOther,
		"":                  CategoryOther,
	}
	for mt, want := range tests {
		assert.Equal(t, want, CategoryFor(mt), mt)
	}
}

func TestShareLinkUsable(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	one := 1

	link := ShareLink{IsActive: true}
	assert.True(t, link.Usable(now))

	link.ExpiresAt = &past
	assert.True(t, link.Expired(now))
	assert.False(t, link.Usable(now))

	link = ShareLink{IsActive: true, MaxDownloads: &one, DownloadCount: 1}
	assert.True(t, link.LimitReached())
	assert.False(t, link.Usable(now))

	link = ShareLink{IsActive: false}
	assert.False(t, link.Usable(now))
}

func TestIdentityTargets(t *testing.T) {
	id := Identity{UserID: "u1", Role: RoleUser, BranchID: "b1"}
	assert.Equal(t, []GrantTarget{
		{Type: TargetUser, ID: "u1"},
		{Type: TargetBranch, ID: "b1"},
	}, id.Targets())
}
