package errors

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Translate 将底层错误归一化为AppError。已是AppError的原样返回，
// 其余按类型映射，保证控制器层拿到的错误都带HTTP状态码。
func Translate(err error) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return translateValidationErrors(validationErrs)
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NewNotFoundError("resource")
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return NewBusinessError(ErrCodeConflict, "resource already exists")
	}

	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return NewSystemError(ErrCodeConnectionFailed, "network error").WithCause(err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewExternalError(ErrCodeTimeout, "operation timed out")
	}

	return NewSystemError(ErrCodeInternalServer, "internal server error").WithCause(err)
}

// translateValidationErrors 把validator的字段错误拼成一条可读消息
func translateValidationErrors(errs validator.ValidationErrors) *AppError {
	messages := make([]string, 0, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			messages = append(messages, fe.Field()+" is required")
		case "email":
			messages = append(messages, fe.Field()+" must be a valid email")
		case "min":
			messages = append(messages, fe.Field()+" is too short")
		case "max":
			messages = append(messages, fe.Field()+" is too long")
		case "oneof":
			messages = append(messages, fe.Field()+" has an invalid value")
		case "url":
			messages = append(messages, fe.Field()+" must be a valid URL")
		default:
			messages = append(messages, fe.Field()+" is invalid")
		}
	}
	return NewValidationError(strings.Join(messages, "; "))
}
