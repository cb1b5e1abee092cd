package todo

import (
	"net/http"
	"strings"

	xerrors "todos-api/internal/errors"
)

// Status 表示待办事项的完成状态。
type Status string

const (
	StatusUnknown    Status = "UNKNOWN"
	StatusIncomplete Status = "INCOMPLETE"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// Statuses 按声明顺序列出全部状态。
var Statuses = []Status{StatusUnknown, StatusIncomplete, StatusInProgress, StatusDone}

// User 是待办事项可选的归属人。
type User struct {
	Name string `json:"name"`
}

// Todo 是对外暴露的待办事项，持久化实现中的自增主键不会出现在这里。
type Todo struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	User   *User  `json:"user,omitempty"`
}

// New 返回一个处于默认状态的新待办事项。
func New(name string) Todo {
	return Todo{Name: name, Status: StatusIncomplete}
}

// Clone 返回深拷贝，避免调用方修改存储内部的数据。
func (t Todo) Clone() Todo {
	if t.User != nil {
		u := *t.User
		t.User = &u
	}
	return t
}

// IsValidStatus 检查给定状态是否为支持的枚举值。
func IsValidStatus(status Status) bool {
	switch status {
	case StatusUnknown, StatusIncomplete, StatusInProgress, StatusDone:
		return true
	default:
		return false
	}
}

// ParseStatus 忽略大小写解析状态名，无法识别时返回 StatusUnknown 与 false。
func ParseStatus(raw string) (Status, bool) {
	status := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !IsValidStatus(status) {
		return StatusUnknown, false
	}
	return status, true
}

const (
	CodeValidation             xerrors.Code = "VALIDATION_FAILED"
	CodeStoreUnavailable       xerrors.Code = "STORE_UNAVAILABLE"
	CodeStatusEncodingMismatch xerrors.Code = "STATUS_ENCODING_MISMATCH"
)

var (
	// ErrValidation 表示输入没有通过校验，例如名称为空。
	ErrValidation = xerrors.New(CodeValidation, "todo validation failed")
	// ErrStoreUnavailable 表示存储无法连接或写入无法提交。
	ErrStoreUnavailable = xerrors.New(CodeStoreUnavailable, "todo store unavailable")
	// ErrStatusEncodingMismatch 表示持久化的状态编码与当前配置不一致。
	ErrStatusEncodingMismatch = xerrors.New(CodeStatusEncodingMismatch, "status encoding mismatch")
)

func init() {
	xerrors.Register(CodeValidation, xerrors.Attributes{
		Message:    "todo validation failed",
		Severity:   xerrors.SeverityInfo,
		HTTPStatus: http.StatusBadRequest,
	})
	xerrors.Register(CodeStoreUnavailable, xerrors.Attributes{
		Message:    "todo store unavailable",
		Severity:   xerrors.SeverityCritical,
		Retryable:  true,
		Alert:      true,
		HTTPStatus: http.StatusServiceUnavailable,
	})
	xerrors.Register(CodeStatusEncodingMismatch, xerrors.Attributes{
		Message:    "status encoding mismatch",
		Severity:   xerrors.SeverityCritical,
		Alert:      true,
		HTTPStatus: http.StatusInternalServerError,
	})
}

// Unavailable 将底层连接或提交错误包装为 STORE_UNAVAILABLE。
func Unavailable(cause error, message string) error {
	return xerrors.Wrap(CodeStoreUnavailable, cause, message)
}
