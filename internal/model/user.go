package model

import "strings"

// User 代表系统中的用户画像快照，推荐引擎只读
type User struct {
	ID           string   `json:"id" yaml:"id"`
	Token        string   `json:"-" yaml:"token"` // Token 用于鉴权，不序列化到 JSON
	Name         string   `json:"name" yaml:"name"`
	Preferences  []string `json:"preferences" yaml:"preferences"`     // 自由文本偏好标签
	Interactions []string `json:"interactions" yaml:"interactions"`   // 已交互过的条目 ID
	InterestList []string `json:"interest_list" yaml:"interest_list"` // 用户标记"感兴趣"的条目 ID，仅用于结果标记
}

// PreferenceText 把偏好标签用空格拼接成一段文本
func (u *User) PreferenceText() string {
	parts := make([]string, 0, len(u.Preferences))
	for _, p := range u.Preferences {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// InteractionSet 返回去重后的交互 ID 集合
func (u *User) InteractionSet() map[string]struct{} {
	set := make(map[string]struct{}, len(u.Interactions))
	for _, id := range u.Interactions {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

// HasSignal 偏好文本和交互历史至少有一个非空
func (u *User) HasSignal() bool {
	return u.PreferenceText() != "" || len(u.InteractionSet()) > 0
}

// Clone 返回可以安全修改的深拷贝
func (u *User) Clone() *User {
	c := *u
	c.Preferences = append([]string(nil), u.Preferences...)
	c.Interactions = append([]string(nil), u.Interactions...)
	c.InterestList = append([]string(nil), u.InterestList...)
	return &c
}
