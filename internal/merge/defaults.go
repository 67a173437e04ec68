package merge

import "github.com/jonathan/police-terminal/internal/types"

const profileBase = "https://pub-07f3e1b810bb45079240dae84aaadd3e.r2.dev/profile/"

type rosterEntry struct {
	name      string
	location  string
	statement string
	progress  int
}

// roster is shown when nothing could be recovered from any source.
var roster = []rosterEntry{
	{name: "裴矜予", location: "港城警署总部，重案组办公室", statement: "卷宗摊了满桌，正在重新梳理时间线。", progress: 35},
	{name: "林修远", location: "港城大学附近高档公寓家中，书房", statement: "书房的灯彻夜未熄，似乎在等一通电话。", progress: -10},
	{name: "石一", location: "旺角某地下麻将馆", statement: "牌局未散，耳目众多。", progress: 20},
	{name: "陈临川", location: "中环写字楼顶层私人诊所，手术室", statement: "手术刚刚结束，谢绝一切访客。", progress: -25},
	{name: "吴浩明", location: "港城大学宿舍楼，404室", statement: "宿舍门紧闭，屏幕的光从门缝里漏出来。", progress: 5},
}

// Defaults returns the fixed default roster for a domain. News has no
// default items.
func Defaults(domain types.Domain) []types.PersonRecord {
	if domain == types.DomainNews {
		return nil
	}
	records := make([]types.PersonRecord, 0, len(roster))
	for _, e := range roster {
		r := types.PersonRecord{
			Name:      e.name,
			Avatar:    profileBase + e.name + ".jpg",
			Statement: e.statement,
		}
		if domain == types.DomainProgress {
			r.Progress = types.IntPtr(e.progress)
		} else {
			r.Value = e.location
		}
		records = append(records, r)
	}
	return records
}

// IsDefaultRoster reports whether records are exactly the default roster.
func IsDefaultRoster(records []types.PersonRecord) bool {
	if len(records) != len(roster) {
		return false
	}
	for i, r := range records {
		if r.Name != roster[i].name {
			return false
		}
	}
	return true
}
