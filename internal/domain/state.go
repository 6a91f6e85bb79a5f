package domain

// ProcessingState 是单个文件在一次运行内的生命周期状态。
//
// 状态机（单向）：
//
//	NoState -> Pending -> InProgress -> Success | Warning | Error
//
// 终态不再迁移；Pending 可以直接进入 Error（导入阶段的提取失败）。
type ProcessingState string

const (
	StateNone       ProcessingState = ""
	StatePending    ProcessingState = "pending"
	StateInProgress ProcessingState = "in_progress"
	StateSuccess    ProcessingState = "success"
	StateWarning    ProcessingState = "warning"
	StateError      ProcessingState = "error"
)

// Terminal 判断 s 是否为终态。
func (s ProcessingState) Terminal() bool {
	switch s {
	case StateSuccess, StateWarning, StateError:
		return true
	default:
		return false
	}
}

// CanAdvance 判断 s -> to 是否为合法迁移。
// 同一状态的重复设置不算迁移（返回 false），避免重复发事件。
func (s ProcessingState) CanAdvance(to ProcessingState) bool {
	if s.Terminal() || to == s {
		return false
	}
	switch s {
	case StateNone:
		return to == StatePending || to == StateError
	case StatePending:
		return to == StateInProgress || to == StateError
	case StateInProgress:
		return to.Terminal()
	default:
		return false
	}
}

// String 用于报告与进度输出（NoState 显示为 "none"）。
func (s ProcessingState) String() string {
	if s == StateNone {
		return "none"
	}
	return string(s)
}
