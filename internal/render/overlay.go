// Package render rehydrates the terminal overlay (map markers, monitor cards
// and news items) from merged person records.
package render

import (
	_ "embed"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/police-terminal/internal/merge"
	"github.com/jonathan/police-terminal/internal/types"
)

//go:embed overlay.html
var overlayTemplate string

// Marker attributes carrying the rendered person.
const (
	attrName     = "data-person-name"
	attrLocation = "data-person-location"
	attrAvatar   = "data-person-avatar"
)

// MarkerInfo is the person shown on one map marker.
type MarkerInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Avatar   string `json:"avatar"`
	Empty    bool   `json:"empty"`
}

// Overlay holds the terminal's rendered document. All methods are safe for
// concurrent use. Every Render call rewrites its panel from the records
// alone, so repeating a call with the same records is a no-op.
type Overlay struct {
	mu  sync.RWMutex
	doc *goquery.Document

	monitorProto *goquery.Selection
	newsProto    *goquery.Selection
	slots        []string
}

// New parses the embedded overlay template.
func New() (*Overlay, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(overlayTemplate))
	if err != nil {
		return nil, fmt.Errorf("failed to parse overlay template: %w", err)
	}

	protos := doc.Find("#prototypes")
	o := &Overlay{
		doc:          doc,
		monitorProto: protos.Find(".monitor-card").First().Clone(),
		newsProto:    protos.Find(".news-item").First().Clone(),
	}
	protos.Remove()

	doc.Find(".map-marker").Each(func(_ int, s *goquery.Selection) {
		o.slots = append(o.slots, s.AttrOr("style", ""))
	})
	return o, nil
}

// Render updates the panel from records.
func (o *Overlay) Render(panel types.Panel, records []types.PersonRecord) error {
	switch panel {
	case types.PanelMap:
		o.RenderMap(records)
	case types.PanelMonitor:
		o.RenderMonitor(records)
	case types.PanelNews:
		o.RenderNews(records)
	default:
		return fmt.Errorf("unknown panel: %q", panel)
	}
	return nil
}

// RenderMap assigns records to markers in order. Markers beyond the record
// count are cleared and return to their template position.
func (o *Overlay) RenderMap(records []types.PersonRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.doc.Find(".marker-indicator").Remove()
	o.doc.Find(".map-marker").Each(func(i int, s *goquery.Selection) {
		if i >= len(records) {
			s.RemoveAttr(attrName)
			s.RemoveAttr(attrLocation)
			s.RemoveAttr(attrAvatar)
			if i < len(o.slots) {
				s.SetAttr("style", o.slots[i])
			}
			return
		}

		r := records[i]
		s.SetAttr(attrName, r.Name)
		s.SetAttr(attrLocation, r.Value)
		s.SetAttr(attrAvatar, r.Avatar)
		if r.Position != nil {
			s.SetAttr("style", positionStyle(*r.Position))
		} else if i < len(o.slots) {
			s.SetAttr("style", o.slots[i])
		}
		s.AppendHtml(indicator(r.Name))
	})
}

// RestoreIndicators re-adds marker indicators from the data already on the
// markers. Used when a panel is shown from cached data.
func (o *Overlay) RestoreIndicators() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.doc.Find(".marker-indicator").Remove()
	o.doc.Find(".map-marker").Each(func(_ int, s *goquery.Selection) {
		if name := s.AttrOr(attrName, ""); name != "" {
			s.AppendHtml(indicator(name))
		}
	})
}

// HasMarkerData reports whether any marker carries a person.
func (o *Overlay) HasMarkerData() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.doc.Find(".map-marker[" + attrName + "]").Length() > 0
}

// RenderMonitor rebuilds the monitor card list.
func (o *Overlay) RenderMonitor(records []types.PersonRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()

	list := o.doc.Find("#monitor_list")
	list.Empty()
	if len(records) == 0 {
		list.AppendHtml(`<div class="monitor-empty">` + html.EscapeString(merge.DefaultStatement) + `</div>`)
		return
	}

	for _, r := range records {
		card := o.monitorProto.Clone()
		card.SetAttr(attrName, r.Name)
		card.Find(".monitor-avatar").SetAttr("src", r.Avatar)
		card.Find(".monitor-name").SetText(r.Name)
		card.Find(".monitor-statement").SetText(r.Statement)

		progress := 0
		if r.Progress != nil {
			progress = merge.ClampProgress(*r.Progress)
		}
		card.Find(".monitor-progress-fill").SetAttr("style", fmt.Sprintf("width: %d%%;", ProgressWidth(progress)))
		card.Find(".monitor-progress-value").SetText(FormatProgress(progress))

		list.AppendSelection(card)
	}
}

// RenderNews rebuilds the news list.
func (o *Overlay) RenderNews(records []types.PersonRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()

	list := o.doc.Find("#news_list")
	list.Empty()
	if len(records) == 0 {
		list.AppendHtml(`<li class="news-empty">` + html.EscapeString(merge.DefaultStatement) + `</li>`)
		return
	}

	for _, r := range records {
		item := o.newsProto.Clone()
		item.Find(".news-headline").SetText(r.Name)
		item.Find(".news-body").SetText(r.Value)
		list.AppendSelection(item)
	}
}

// Marker returns the person on the marker with the given data-id. Missing
// attributes read as the placeholders.
func (o *Overlay) Marker(id string) (MarkerInfo, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	marker := o.doc.Find(".map-marker").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.AttrOr("data-id", "") == id
	}).First()
	if marker.Length() == 0 {
		return MarkerInfo{}, false
	}
	return markerInfo(marker), true
}

// Markers returns every marker in template order.
func (o *Overlay) Markers() []MarkerInfo {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var out []MarkerInfo
	o.doc.Find(".map-marker").Each(func(_ int, s *goquery.Selection) {
		out = append(out, markerInfo(s))
	})
	return out
}

// Panel returns the markup of one panel.
func (o *Overlay) Panel(panel types.Panel) (string, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	sel := o.doc.Find("#" + string(panel) + "_app_interface")
	if sel.Length() == 0 {
		return "", fmt.Errorf("unknown panel: %q", panel)
	}
	return goquery.OuterHtml(sel)
}

// HTML serialises the whole overlay document.
func (o *Overlay) HTML() (string, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.doc.Html()
}

func markerInfo(s *goquery.Selection) MarkerInfo {
	name, hasName := s.Attr(attrName)
	info := MarkerInfo{
		ID:       s.AttrOr("data-id", ""),
		Name:     name,
		Location: s.AttrOr(attrLocation, ""),
		Avatar:   s.AttrOr(attrAvatar, ""),
		Empty:    !hasName || name == "",
	}
	if info.Name == "" {
		info.Name = merge.UnknownPerson
	}
	if info.Location == "" {
		info.Location = merge.DefaultLocation
	}
	if info.Avatar == "" {
		info.Avatar = merge.DefaultAvatar
	}
	return info
}

func indicator(name string) string {
	return `<div class="marker-indicator">` + html.EscapeString(name) + `</div>`
}

func positionStyle(p types.Position) string {
	return fmt.Sprintf("top: %s%%; left: %s%%;", percent(p.Top), percent(p.Left))
}

func percent(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}

// ProgressWidth maps a progress value in [-100, 100] to a bar width in
// [0, 100] percent.
func ProgressWidth(progress int) int {
	return (merge.ClampProgress(progress) + 100) / 2
}

// FormatProgress renders a progress value with an explicit sign.
func FormatProgress(progress int) string {
	if progress > 0 {
		return "+" + strconv.Itoa(progress)
	}
	return strconv.Itoa(progress)
}
