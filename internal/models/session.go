package models

// Session 活动会话（由外部登录/授权流程维护）
type Session struct {
	Token     string     `json:"token"`      // 身份令牌，写入记录 identity
	SubjectID string     `json:"subject_id"` // 档案查询用的主体 ID
	ContextID string     `json:"context_id"` // 上报时的上下文 ID
	Source    SourceKind `json:"source"`     // 本会话使用的数据源
	Scopes    []string   `json:"scopes,omitempty"`
}
