// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 通用错误类型
	ErrorTypeValidation ErrorType = "validation_error"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeError      ErrorType = "processing_error"
	ErrorTypeReadOnly   ErrorType = "read_only"

	// 生成与分享相关错误类型
	ErrorTypePipelineAbort ErrorType = "pipeline_abort"
	ErrorTypeVisual        ErrorType = "visual_error"
	ErrorTypeAction        ErrorType = "action_error"
	ErrorTypePersistence   ErrorType = "persistence_error"
	ErrorTypeShareDecode   ErrorType = "share_decode_error"
	ErrorTypeShareEncode   ErrorType = "share_encode_error"
)

// AppError 应用程序错误结构
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // 用户友好的错误代码
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 实现错误链接
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError 创建新的 AppError
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewValidationError 创建验证错误
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewProcessingError 创建处理错误
func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeError, message, originalError)
}

// NewPipelineAbortError marks a failure of the outline stage or a per-slide
// content call; the whole pipeline stops and the failure is user-visible.
func NewPipelineAbortError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypePipelineAbort, message, originalError)
}

// NewVisualError marks a per-slide image or chart failure. It stays local to
// the slide's visual state and never aborts deck generation.
func NewVisualError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeVisual, message, originalError)
}

// NewActionError 创建再生成动作错误
func NewActionError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeAction, message, originalError)
}

// NewPersistenceError 创建持久化错误（仅记录日志，不致命）
func NewPersistenceError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypePersistence, message, originalError)
}

// NewShareDecodeError 创建分享载荷解码错误
func NewShareDecodeError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeShareDecode, message, originalError)
}

// NewShareEncodeError 创建分享载荷编码错误
func NewShareEncodeError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeShareEncode, message, originalError)
}

// IsType 检查错误是否为指定类型
func IsType(err error, errType ErrorType) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == errType
	}
	return false
}

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsValidationError 检查是否为验证错误
func IsValidationError(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// IsPipelineAbortError 检查是否为管线中止错误
func IsPipelineAbortError(err error) bool {
	return IsType(err, ErrorTypePipelineAbort)
}

// IsShareDecodeError 检查是否为分享解码错误
func IsShareDecodeError(err error) bool {
	return IsType(err, ErrorTypeShareDecode)
}

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeError:
		return "PROCESSING_ERROR"
	case ErrorTypeReadOnly:
		return "READ_ONLY"
	case ErrorTypePipelineAbort:
		return "PIPELINE_ABORT"
	case ErrorTypeVisual:
		return "VISUAL_ERROR"
	case ErrorTypeAction:
		return "ACTION_ERROR"
	case ErrorTypePersistence:
		return "PERSISTENCE_ERROR"
	case ErrorTypeShareDecode:
		return "SHARE_DECODE_ERROR"
	case ErrorTypeShareEncode:
		return "SHARE_ENCODE_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError 包装现有错误
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		// 如果已经是 AppError，只更新消息
		return &AppError{
			Type:    appError.Type,
			Message: fmt.Sprintf("%s: %s", message, appError.Message),
			Err:     appError,
			Code:    appError.Code,
		}
	}

	// 否则创建新的 AppError
	return NewAppError(errType, message, err)
}
