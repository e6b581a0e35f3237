package config

import "github.com/ceyewan/scopestat/xerrors"

var (
	// ErrValidationFailed 验证失败
	ErrValidationFailed = xerrors.Category(xerrors.ErrInvalidInput, "CONFIG_INVALID", "configuration validation failed")
	// ErrKeyNotFound 请求的配置 key 不存在
	ErrKeyNotFound = xerrors.Category(xerrors.ErrNotFound, "CONFIG_KEY_NOT_FOUND", "configuration key not found")
)

// IsNotFound 检查错误是否为配置未找到
func IsNotFound(err error) bool {
	return xerrors.Is(err, xerrors.ErrNotFound)
}

// IsInvalidInput 检查错误是否为配置格式无效或验证失败
func IsInvalidInput(err error) bool {
	return xerrors.Is(err, xerrors.ErrInvalidInput)
}
