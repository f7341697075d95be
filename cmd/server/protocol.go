// Package main provides a TCP query server for a GovernanceDB repository.
package main

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Request is one query from the client. Commit and Other accept a commit
// hash, a branch or a tag.
type Request struct {
	Op     string `json:"op"`
	Commit string `json:"commit,omitempty"`
	Other  string `json:"other,omitempty"`
	Branch string `json:"branch,omitempty"`
	Tag    string `json:"tag,omitempty"`
	Max    *int   `json:"max,omitempty"`
}

// Response represents the server's response to a request.
type Response struct {
	Success bool                `json:"success"`
	Error   string              `json:"error,omitempty"`
	Type    string              `json:"type,omitempty"` // "auth" or the op of the request
	Result  jsoniter.RawMessage `json:"result,omitempty"`
}

// HeadResponse describes where HEAD points.
type HeadResponse struct {
	Commit string `json:"commit"`
	Branch string `json:"branch,omitempty"`
	// Detached is set when HEAD points straight at a commit.
	Detached bool `json:"detached"`
}

// AuthResponse is the result of a successful AUTH command.
type AuthResponse struct {
	Authenticated bool   `json:"authenticated"`
	Identity      string `json:"identity"`
	ExpiresIn     int    `json:"expires_in,omitempty"`
}

// EncodeResponse serializes a Response to JSON with a newline.
func EncodeResponse(resp Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// DecodeRequest parses a JSON request from a byte slice.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	err := json.Unmarshal(data, &req)
	return req, err
}
