package util

import (
	"errors"
	"sort"
	"strings"
)

// 错误分类，控制器按分类映射 HTTP 状态码
var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrPrecondition     = errors.New("precondition failed")
	ErrConflict         = errors.New("conflict")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrPermissionDenied = errors.New("permission denied")
)

type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newKindError(kind error, msg string) error {
	return &kindError{msg: msg, kind: kind}
}

var (
	ErrUserNotFound        = newKindError(ErrNotFound, "user not found")
	ErrCourseNotFound      = newKindError(ErrNotFound, "course not found")
	ErrLessonNotFound      = newKindError(ErrNotFound, "lesson not found")
	ErrComponentNotFound   = newKindError(ErrNotFound, "component not found")
	ErrCertificateNotFound = newKindError(ErrNotFound, "certificate not found")
	ErrSubmissionNotFound  = newKindError(ErrNotFound, "submission not found")

	ErrLessonNotStarted    = newKindError(ErrPrecondition, "lesson not started")
	ErrCourseNotJoined     = newKindError(ErrPrecondition, "course not joined")
	ErrCourseNotCompleted  = newKindError(ErrPrecondition, "course not completed")
	ErrComponentNotGraded  = newKindError(ErrValidation, "component does not accept submissions")
	ErrUnsupportedLanguage = newKindError(ErrValidation, "unsupported language")
	ErrJudgeUnavailable    = newKindError(ErrPrecondition, "code judge unavailable")

	ErrUsernameTaken      = newKindError(ErrConflict, "username already taken")
	ErrEmailRegistered    = newKindError(ErrConflict, "email already registered")
	ErrInvalidCredentials = newKindError(ErrUnauthorized, "invalid credentials")
	ErrInvalidToken       = newKindError(ErrUnauthorized, "invalid or expired token")
	ErrTokenRevoked       = newKindError(ErrUnauthorized, "token has been revoked")
	ErrGoogleAuthFailed   = newKindError(ErrValidation, "google authentication failed")
)

// ValidationError 字段级校验错误
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
