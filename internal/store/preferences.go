package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/jonathan/police-terminal/internal/schemas"
)

// Preference keys.
const (
	KeyWallpaperIndex   = "FSpanel_wallpaper_index"
	KeyCustomWallpapers = "FSpanel_custom_wallpapers"
	KeyLoggedIn         = "isLoggedIn"
)

// Wallpaper is one phone background.
type Wallpaper struct {
	Type     string `json:"type" validate:"required,oneof=color image gradient"`
	Value    string `json:"value" validate:"required"`
	Name     string `json:"name"`
	IsCustom bool   `json:"isCustom,omitempty"`
}

// BuiltinWallpapers precede the custom ones in the wallpaper list.
var BuiltinWallpapers = []Wallpaper{
	{Type: "color", Value: "#000000", Name: "纯黑"},
	{Type: "color", Value: "#191970", Name: "深蓝"},
	{Type: "color", Value: "#301934", Name: "深紫"},
	{Type: "image", Value: "https://pub-07f3e1b810bb45079240dae84aaadd3e.r2.dev/profile/defult.jpg", Name: "默认图片"},
	{Type: "image", Value: "https://pub-07f3e1b810bb45079240dae84aaadd3e.r2.dev/profile/phone-no.jpg", Name: "不便携带手机"},
	{Type: "gradient", Value: "linear-gradient(45deg, #000000, #333333)", Name: "灰黑渐变"},
	{Type: "gradient", Value: "linear-gradient(to bottom, #000000, #0f3460)", Name: "蓝黑渐变"},
}

// PreferenceState is every preference at once.
type PreferenceState struct {
	WallpaperIndex   int         `json:"wallpaper_index"`
	Wallpaper        Wallpaper   `json:"wallpaper"`
	CustomWallpapers []Wallpaper `json:"custom_wallpapers"`
	LoggedIn         bool        `json:"logged_in"`
}

// Preferences stores the officer's display preferences. Malformed stored
// values read as zero values.
type Preferences struct {
	kv     KV
	logger *zap.Logger
}

// NewPreferences creates a preference store over kv.
func NewPreferences(kv KV, logger *zap.Logger) *Preferences {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Preferences{kv: kv, logger: logger}
}

// WallpaperIndex returns the selected wallpaper's index, 0 when unset.
func (p *Preferences) WallpaperIndex(ctx context.Context) (int, error) {
	raw, ok, err := p.kv.Get(ctx, KeyWallpaperIndex)
	if err != nil || !ok {
		return 0, err
	}
	i, err := strconv.Atoi(raw)
	if err != nil || i < 0 {
		p.logger.Warn("ignoring malformed wallpaper index", zap.String("value", raw))
		return 0, nil
	}
	return i, nil
}

// SetWallpaperIndex stores the selected wallpaper's index.
func (p *Preferences) SetWallpaperIndex(ctx context.Context, i int) error {
	if i < 0 {
		return &Error{Op: "set", Key: KeyWallpaperIndex, Message: fmt.Sprintf("negative index %d", i)}
	}
	return p.kv.Set(ctx, KeyWallpaperIndex, strconv.Itoa(i))
}

// CustomWallpapers returns the officer's added wallpapers.
func (p *Preferences) CustomWallpapers(ctx context.Context) ([]Wallpaper, error) {
	raw, ok, err := p.kv.Get(ctx, KeyCustomWallpapers)
	if err != nil || !ok {
		return nil, err
	}
	if err := schemas.ValidateWallpapers(raw); err != nil {
		p.logger.Warn("ignoring malformed custom wallpapers", zap.Error(err))
		return nil, nil
	}
	var list []Wallpaper
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		p.logger.Warn("ignoring unreadable custom wallpapers", zap.Error(err))
		return nil, nil
	}
	return list, nil
}

// SetCustomWallpapers replaces the custom wallpaper list.
func (p *Preferences) SetCustomWallpapers(ctx context.Context, list []Wallpaper) error {
	if list == nil {
		list = []Wallpaper{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to marshal custom wallpapers: %w", err)
	}
	return p.kv.Set(ctx, KeyCustomWallpapers, string(data))
}

// AddCustomWallpaper appends an image wallpaper named after its position
// among the custom ones and selects it.
func (p *Preferences) AddCustomWallpaper(ctx context.Context, url string) (Wallpaper, error) {
	custom, err := p.CustomWallpapers(ctx)
	if err != nil {
		return Wallpaper{}, err
	}
	w := Wallpaper{
		Type:     "image",
		Value:    url,
		Name:     fmt.Sprintf("自定义%d", len(custom)+1),
		IsCustom: true,
	}
	custom = append(custom, w)
	if err := p.SetCustomWallpapers(ctx, custom); err != nil {
		return Wallpaper{}, err
	}
	if err := p.SetWallpaperIndex(ctx, len(BuiltinWallpapers)+len(custom)-1); err != nil {
		return Wallpaper{}, err
	}
	return w, nil
}

// Wallpapers returns the built-in wallpapers followed by the custom ones.
func (p *Preferences) Wallpapers(ctx context.Context) ([]Wallpaper, error) {
	custom, err := p.CustomWallpapers(ctx)
	if err != nil {
		return nil, err
	}
	all := make([]Wallpaper, 0, len(BuiltinWallpapers)+len(custom))
	all = append(all, BuiltinWallpapers...)
	return append(all, custom...), nil
}

// NextWallpaper advances the selection, wrapping around, and returns the
// newly selected wallpaper.
func (p *Preferences) NextWallpaper(ctx context.Context) (Wallpaper, error) {
	all, err := p.Wallpapers(ctx)
	if err != nil {
		return Wallpaper{}, err
	}
	i, err := p.WallpaperIndex(ctx)
	if err != nil {
		return Wallpaper{}, err
	}
	next := (i + 1) % len(all)
	if err := p.SetWallpaperIndex(ctx, next); err != nil {
		return Wallpaper{}, err
	}
	return all[next], nil
}

// LoggedIn reports the stored login flag.
func (p *Preferences) LoggedIn(ctx context.Context) (bool, error) {
	raw, ok, err := p.kv.Get(ctx, KeyLoggedIn)
	if err != nil || !ok {
		return false, err
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, nil
	}
	return v, nil
}

// SetLoggedIn stores the login flag.
func (p *Preferences) SetLoggedIn(ctx context.Context, v bool) error {
	return p.kv.Set(ctx, KeyLoggedIn, strconv.FormatBool(v))
}

// State returns every preference. An index past the end of the list
// selects the first wallpaper.
func (p *Preferences) State(ctx context.Context) (PreferenceState, error) {
	var st PreferenceState
	var err error

	if st.CustomWallpapers, err = p.CustomWallpapers(ctx); err != nil {
		return st, err
	}
	if st.WallpaperIndex, err = p.WallpaperIndex(ctx); err != nil {
		return st, err
	}
	if st.LoggedIn, err = p.LoggedIn(ctx); err != nil {
		return st, err
	}

	all := append(append([]Wallpaper{}, BuiltinWallpapers...), st.CustomWallpapers...)
	if st.WallpaperIndex >= len(all) {
		st.WallpaperIndex = 0
	}
	st.Wallpaper = all[st.WallpaperIndex]
	if st.CustomWallpapers == nil {
		st.CustomWallpapers = []Wallpaper{}
	}
	return st, nil
}
