package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind classifies an error into the CLI error taxonomy. Local kinds
// are resolved before any remote call; remote kinds are captured per
// item during apply and never abort a batch.
type Kind string

const (
	KindContextNotFound  Kind = "context_not_found"
	KindNoCurrentContext Kind = "no_current_context"
	KindUnauthenticated  Kind = "unauthenticated"
	KindValidation       Kind = "validation"
	KindRemoteConflict   Kind = "remote_conflict"
	KindRemoteNotFound   Kind = "remote_not_found"
	KindTimeout          Kind = "timeout"
	KindNetwork          Kind = "network"
)

// Error is a classified remote API failure.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("API error: status %d", e.StatusCode)
	}
	return string(e.Kind)
}

// KindOf returns the taxonomy kind of err, or KindNetwork for
// unclassified failures.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

// IsNotFound reports whether err is a remote not-found failure.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindRemoteNotFound
}

// IsConflict reports whether err is a remote conflict failure.
func IsConflict(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindRemoteConflict
}

func classifyStatus(code int) Kind {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindUnauthenticated
	case http.StatusNotFound:
		return KindRemoteNotFound
	case http.StatusConflict:
		return KindRemoteConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	default:
		return KindNetwork
	}
}

// errorDetail mirrors the platform's error payload. The detail field
// is either a plain string or an object with a message plus optional
// dependency and field-reference diagnostics.
type errorDetail struct {
	Message              string            `json:"message"`
	MissingDependencies  []dependencyRef   `json:"missing_dependencies"`
	NotReadyDependencies []dependencyState `json:"not_ready_dependencies"`
	ReferenceProvider    string            `json:"reference_provider"`
	ReferenceResource    string            `json:"reference_resource"`
	ReferenceName        string            `json:"reference_name"`
	Field                string            `json:"field"`
}

type dependencyRef struct {
	Provider string `json:"provider"`
	Resource string `json:"resource"`
	Name     string `json:"name"`
}

type dependencyState struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// decodeError turns a non-2xx response body into a classified Error,
// surfacing the platform's detail payload in the message.
func decodeError(statusCode int, body []byte) *Error {
	apiErr := &Error{Kind: classifyStatus(statusCode), StatusCode: statusCode}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		apiErr.Message = strings.TrimSpace(string(body))
		return apiErr
	}

	var plain string
	if err := json.Unmarshal(envelope.Detail, &plain); err == nil {
		apiErr.Message = plain
		return apiErr
	}

	var detail errorDetail
	if err := json.Unmarshal(envelope.Detail, &detail); err != nil || detail.Message == "" {
		apiErr.Message = strings.TrimSpace(string(envelope.Detail))
		return apiErr
	}

	var sb strings.Builder
	sb.WriteString(detail.Message)
	if len(detail.MissingDependencies) > 0 {
		refs := make([]string, 0, len(detail.MissingDependencies))
		for _, d := range detail.MissingDependencies {
			refs = append(refs, fmt.Sprintf("%s/%s/%s", d.Provider, d.Resource, d.Name))
		}
		fmt.Fprintf(&sb, "\nMissing dependencies: %s", strings.Join(refs, ", "))
	}
	if len(detail.NotReadyDependencies) > 0 {
		states := make([]string, 0, len(detail.NotReadyDependencies))
		for _, d := range detail.NotReadyDependencies {
			states = append(states, fmt.Sprintf("%s (%s)", d.ID, d.State))
		}
		fmt.Fprintf(&sb, "\nDependencies not ready: %s", strings.Join(states, ", "))
	}
	if detail.ReferenceProvider != "" {
		fmt.Fprintf(&sb, "\nReference: %s/%s/%s#%s",
			detail.ReferenceProvider, detail.ReferenceResource, detail.ReferenceName, detail.Field)
	}
	apiErr.Message = sb.String()
	return apiErr
}
