package todo

import (
	"fmt"
	"strings"

	xerrors "todos-api/internal/errors"
)

// StatusEncoding 决定状态在关系型存储中对应的整数值。
//
// 历史上存在两种编号：Unknown 在前（Unknown=0）与 Incomplete 在前
// （Incomplete=0）。同一个整数在两种编号下含义不同，所以存储会记录
// 建表时使用的编码，打开时与配置比对。
type StatusEncoding string

const (
	EncodingUnknownFirst    StatusEncoding = "unknown_first"
	EncodingIncompleteFirst StatusEncoding = "incomplete_first"
)

// DefaultEncoding 是未配置时使用的编码。
const DefaultEncoding = EncodingUnknownFirst

var encodingOrder = map[StatusEncoding][]Status{
	EncodingUnknownFirst:    {StatusUnknown, StatusIncomplete, StatusInProgress, StatusDone},
	EncodingIncompleteFirst: {StatusIncomplete, StatusInProgress, StatusDone, StatusUnknown},
}

// ParseEncoding 解析配置中的编码名称，空字符串返回默认编码。
func ParseEncoding(raw string) (StatusEncoding, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return DefaultEncoding, nil
	}
	enc := StatusEncoding(raw)
	if _, ok := encodingOrder[enc]; !ok {
		return "", xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("未知的状态编码: %s", raw))
	}
	return enc, nil
}

// Encode 返回状态对应的整数。
func (e StatusEncoding) Encode(status Status) (int, error) {
	order, ok := encodingOrder[e]
	if !ok {
		return 0, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("未知的状态编码: %s", e))
	}
	for idx, candidate := range order {
		if candidate == status {
			return idx, nil
		}
	}
	return 0, xerrors.New(CodeValidation, fmt.Sprintf("无效的状态: %s", status))
}

// Decode 将整数还原为状态，超出范围时返回 ErrStatusEncodingMismatch。
func (e StatusEncoding) Decode(code int) (Status, error) {
	order, ok := encodingOrder[e]
	if !ok {
		return StatusUnknown, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("未知的状态编码: %s", e))
	}
	if code < 0 || code >= len(order) {
		return StatusUnknown, xerrors.New(CodeStatusEncodingMismatch,
			fmt.Sprintf("状态值 %d 不属于编码 %s", code, e),
			xerrors.WithMetadata("encoding", string(e)))
	}
	return order[code], nil
}

// CheckEncoding 比较存储记录的编码与配置编码。
func CheckEncoding(stored, configured StatusEncoding) error {
	if stored == configured {
		return nil
	}
	return xerrors.New(CodeStatusEncodingMismatch,
		fmt.Sprintf("存储使用 %s 编码，但当前配置为 %s", stored, configured),
		xerrors.WithMetadata("stored", string(stored)),
		xerrors.WithMetadata("configured", string(configured)))
}
