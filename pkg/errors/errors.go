package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/opencontainers/go-digest"
)

const (
	ErrCodeWorkflowInvalid  ErrCode = "WORKFLOW_INVALID"
	ErrCodeWorkflowUnknown  ErrCode = "WORKFLOW_UNKNOWN"
	ErrCodeProviderUnknown  ErrCode = "PROVIDER_UNKNOWN"
	ErrCodeRunUnknown       ErrCode = "RUN_UNKNOWN"
	ErrCodeRunInvalid       ErrCode = "RUN_INVALID"
	ErrCodeArtifactUnknown  ErrCode = "ARTIFACT_UNKNOWN"
	ErrCodeDigestInvalid    ErrCode = "DIGEST_INVALID"
	ErrCodeResourceInvalid  ErrCode = "RESOURCE_INVALID"
	ErrCodeResourceNotFound ErrCode = "RESOURCE_NOT_FOUND"
	ErrCodeProjectUnknown   ErrCode = "PROJECT_UNKNOWN"
	ErrCodeInvalidParameter ErrCode = "INVALID_PARAMETER"
	ErrCodeUnauthorized     ErrCode = "UNAUTHORIZED"
	ErrCodeUnsupported      ErrCode = "UNSUPPORTED"
	ErrCodeUnknow           ErrCode = "UNKNOWN"
	ErrCodeInternal         ErrCode = "INTERNAL"
)

type ErrCode string

type ErrorInfo struct {
	HttpStatus int     `json:"-"`
	Code       ErrCode `json:"code"`
	Message    string  `json:"message"`
	Detail     string  `json:"detail"`
}

func (e ErrorInfo) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func IsErrCode(err error, code ErrCode) bool {
	if err == nil {
		return false
	}
	info := ErrorInfo{}
	if errors.As(err, &info) {
		return info.Code == code
	}
	return false
}

func NewUnauthorizedError(msg string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusUnauthorized, Code: ErrCodeUnauthorized, Message: msg}
}

func NewUnsupportedError(msg string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusNotImplemented, Code: ErrCodeUnsupported, Message: msg}
}

func NewInternalError(err error) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusInternalServerError, Code: ErrCodeInternal, Message: err.Error()}
}

func NewWorkflowInvalidError(msg string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusBadRequest, Code: ErrCodeWorkflowInvalid, Message: msg}
}

func NewWorkflowUnknownError(name string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusNotFound, Code: ErrCodeWorkflowUnknown, Message: fmt.Sprintf("workflow: %s not found", name)}
}

func NewProviderUnknownError(name string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusBadRequest, Code: ErrCodeProviderUnknown, Message: fmt.Sprintf("provider: %s not found", name)}
}

func NewRunUnknownError(name string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusNotFound, Code: ErrCodeRunUnknown, Message: fmt.Sprintf("run: %s not found", name)}
}

func NewRunInvalidError(err error) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusBadRequest, Code: ErrCodeRunInvalid, Message: err.Error()}
}

func NewArtifactUnknownError(digest digest.Digest) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusNotFound, Code: ErrCodeArtifactUnknown, Message: fmt.Sprintf("artifact: %s not found", digest.String())}
}

func NewDigestInvalidError(got string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusBadRequest, Code: ErrCodeDigestInvalid, Message: fmt.Sprintf("digest invalid: %s", got)}
}

func NewResourceInvalidError(msg string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusBadRequest, Code: ErrCodeResourceInvalid, Message: msg}
}

func NewResourceNotFoundError(msg string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusNotFound, Code: ErrCodeResourceNotFound, Message: msg}
}

func NewProjectUnknownError(project string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusNotFound, Code: ErrCodeProjectUnknown, Message: fmt.Sprintf("project: %s not found", project)}
}

func NewParameterInvalidError(msg string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusBadRequest, Code: ErrCodeInvalidParameter, Message: msg}
}

func NewContentTypeInvalidError(got string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusBadRequest, Code: ErrCodeInvalidParameter, Message: fmt.Sprintf("content type invalid: %s", got)}
}
