package model

import (
	"errors"
	"fmt"
)

// CallerError 调用方的请求本身无法处理（例如没有任何信号可供排序），不可重试
type CallerError struct {
	Reason string
}

func (e *CallerError) Error() string {
	return "caller error: " + e.Reason
}

// ErrNoSignal 偏好文本与交互历史同时为空
var ErrNoSignal = &CallerError{Reason: "user has neither preferences nor interactions"}

// ProviderError 向量服务不可用、限流或返回了格式错误的结果
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider failure (%s): %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable 基础设施类错误一律视为可由调用方稍后重试
func (e *ProviderError) Retryable() bool { return true }

// StoreError 候选存储不可用
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("candidate store failure (%s): %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Retryable() bool { return true }

// IsCallerError 判断是否为调用方错误
func IsCallerError(err error) bool {
	var ce *CallerError
	return errors.As(err, &ce)
}

// IsProviderError 判断是否为向量服务错误
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// IsStoreError 判断是否为存储错误
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
