package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreferences_Defaults(t *testing.T) {
	prefs := NewPreferences(NewMemoryKV(), nil)

	st, err := prefs.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, st.WallpaperIndex)
	assert.Equal(t, BuiltinWallpapers[0], st.Wallpaper)
	assert.Empty(t, st.CustomWallpapers)
	assert.False(t, st.LoggedIn)
}

func TestPreferences_MalformedValuesReadAsZero(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(ctx, KeyWallpaperIndex, "three"))
	require.NoError(t, kv.Set(ctx, KeyCustomWallpapers, "{broken"))
	require.NoError(t, kv.Set(ctx, KeyLoggedIn, "maybe"))

	st, err := NewPreferences(kv, nil).State(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.WallpaperIndex)
	assert.Empty(t, st.CustomWallpapers)
	assert.False(t, st.LoggedIn)
}

func TestPreferences_AddCustomWallpaper(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	prefs := NewPreferences(kv, nil)

	w, err := prefs.AddCustomWallpaper(ctx, "https://example.com/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "自定义1", w.Name)
	assert.True(t, w.IsCustom)

	w2, err := prefs.AddCustomWallpaper(ctx, "https://example.com/b.jpg")
	require.NoError(t, err)
	assert.Equal(t, "自定义2", w2.Name)

	st, err := prefs.State(ctx)
	require.NoError(t, err)
	assert.Len(t, st.CustomWallpapers, 2)
	assert.Equal(t, len(BuiltinWallpapers)+1, st.WallpaperIndex)
	assert.Equal(t, "https://example.com/b.jpg", st.Wallpaper.Value)

	raw, _, err := kv.Get(ctx, KeyCustomWallpapers)
	require.NoError(t, err)
	assert.Contains(t, raw, `"type":"image"`)
}

func TestPreferences_NextWallpaperWraps(t *testing.T) {
	ctx := context.Background()
	prefs := NewPreferences(NewMemoryKV(), nil)
	require.NoError(t, prefs.SetWallpaperIndex(ctx, len(BuiltinWallpapers)-1))

	w, err := prefs.NextWallpaper(ctx)
	require.NoError(t, err)
	assert.Equal(t, BuiltinWallpapers[0], w)

	i, err := prefs.WallpaperIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, i)
}

func TestPreferences_IndexPastEnd(t *testing.T) {
	ctx := context.Background()
	prefs := NewPreferences(NewMemoryKV(), nil)
	require.NoError(t, prefs.SetWallpaperIndex(ctx, 99))

	st, err := prefs.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.WallpaperIndex)
	assert.Equal(t, BuiltinWallpapers[0], st.Wallpaper)
}

func TestPreferences_NegativeIndexRejected(t *testing.T) {
	err := NewPreferences(NewMemoryKV(), nil).SetWallpaperIndex(context.Background(), -1)
	require.Error(t, err)
}

func TestPreferences_LoggedIn(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	prefs := NewPreferences(kv, nil)

	require.NoError(t, prefs.SetLoggedIn(ctx, true))
	v, err := prefs.LoggedIn(ctx)
	require.NoError(t, err)
	assert.True(t, v)

	raw, _, _ := kv.Get(ctx, KeyLoggedIn)
	assert.Equal(t, "true", raw)
}
