// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package editor

import (
	"encoding/json"
	"net/http"
)

// ErrorKind classifies a failed ForwardResult. It drives HTTP status
// mapping and metrics labels and is never written to the wire.
type ErrorKind string

const (
	KindNone             ErrorKind = ""
	KindTransport        ErrorKind = "transport"
	KindValidation       ErrorKind = "validation"
	KindUpstream         ErrorKind = "upstream"
	KindResolution       ErrorKind = "resolution"
	KindAgentUnavailable ErrorKind = "agent_unavailable"
	KindInternal         ErrorKind = "internal"
)

// Status is the outcome of a forwarded command.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// ForwardResult is the normalized outcome of one command invocation.
//
// Description:
//
//	On success Payload is the remote's JSON body and is encoded verbatim.
//	On error the encoded form is {"status":"error","command":...,"message":...}
//	merged over any error body the remote sent.
//
// Thread Safety: Treat as immutable once returned.
type ForwardResult struct {
	Status  Status
	Command string
	Payload any
	Message string
	Kind    ErrorKind

	// RemoteStatus is the HTTP status the remote answered with, 0 if none.
	RemoteStatus int
}

// OK reports whether the command succeeded.
func (r ForwardResult) OK() bool { return r.Status == StatusOK }

// Success wraps a remote payload.
func Success(command string, payload any) ForwardResult {
	return ForwardResult{Status: StatusOK, Command: command, Payload: payload}
}

// Failure builds an error result without a remote body.
func Failure(command string, kind ErrorKind, message string) ForwardResult {
	return ForwardResult{Status: StatusError, Command: command, Kind: kind, Message: message}
}

// MarshalJSON implements json.Marshaler.
func (r ForwardResult) MarshalJSON() ([]byte, error) {
	if r.OK() {
		return json.Marshal(r.Payload)
	}

	body := make(map[string]any)
	if remote, ok := r.Payload.(map[string]any); ok {
		for k, v := range remote {
			body[k] = v
		}
	}
	body["status"] = string(StatusError)
	if _, ok := body["command"]; !ok && r.Command != "" {
		body["command"] = r.Command
	}
	body["message"] = r.Message
	return json.Marshal(body)
}

// HTTPStatus maps the result to the status code the API answers with.
func (r ForwardResult) HTTPStatus() int {
	if r.OK() {
		return http.StatusOK
	}
	switch r.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindTransport, KindAgentUnavailable:
		return http.StatusServiceUnavailable
	case KindUpstream:
		if r.RemoteStatus == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	case KindResolution:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
