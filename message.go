package wsrpc

import (
	"encoding/json"
	"errors"
	"fmt"

	gojson "github.com/goccy/go-json"
)

const jsonRPCVersion = "2.0"

// Request is a JSON-RPC 2.0 request envelope. A nil ID is reserved for
// uncorrelated payloads.
type Request struct {
	ID      *uint64 `json:"id"`
	JSONRPC string  `json:"jsonrpc"`
	Method  string  `json:"method"`
	Params  any     `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response envelope. Event notifications share the
// same shape, carrying the id of the subscription they belong to.
type Response struct {
	ID      *uint64         `json:"id"`
	JSONRPC string          `json:"jsonrpc,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Decode unmarshals the response result into v.
func (r *Response) Decode(v any) error {
	if len(r.Result) == 0 {
		return errors.New("response has no result")
	}
	return gojson.Unmarshal(r.Result, v)
}

// encodeRequest serializes a correlated request.
func encodeRequest(id uint64, method string, params any) ([]byte, error) {
	req := Request{
		ID:      &id,
		JSONRPC: jsonRPCVersion,
		Method:  method,
		Params:  params,
	}
	data, err := gojson.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}
	return data, nil
}

// decodeResponse parses one inbound text frame.
func decodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := gojson.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse frame: %w", err)
	}
	return &resp, nil
}

// notifyParams is the parameter shape of the subscribe/unsubscribe control methods.
type notifyParams struct {
	Notify string `json:"notify"`
}

const (
	methodSubscribe   = "subscribe"
	methodUnsubscribe = "unsubscribe"
)
