package wsrpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRequest(t *testing.T) {
	data, err := encodeRequest(7, "get_block_at_topoheight", map[string]any{"topoheight": 10})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, float64(7), raw["id"])
	assert.Equal(t, "2.0", raw["jsonrpc"])
	assert.Equal(t, "get_block_at_topoheight", raw["method"])
	assert.Equal(t, map[string]any{"topoheight": float64(10)}, raw["params"])
}

func TestEncodeRequest_OmitsNilParams(t *testing.T) {
	data, err := encodeRequest(0, "get_version", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":0,"jsonrpc":"2.0","method":"get_version"}`, string(data))
}

func TestEncodeRequest_NotifyParams(t *testing.T) {
	data, err := encodeRequest(3, methodSubscribe, notifyParams{Notify: "new_block"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":3,"jsonrpc":"2.0","method":"subscribe","params":{"notify":"new_block"}}`, string(data))
}

func TestEncodeRequest_Unmarshalable(t *testing.T) {
	_, err := encodeRequest(1, "bad", map[string]any{"ch": make(chan int)})
	require.Error(t, err)
}

func TestDecodeResponse_Result(t *testing.T) {
	resp, err := decodeResponse([]byte(`{"id":4,"jsonrpc":"2.0","result":{"height":12}}`))
	require.NoError(t, err)
	require.NotNil(t, resp.ID)
	assert.Equal(t, uint64(4), *resp.ID)
	assert.Nil(t, resp.Error)

	var out struct {
		Height int `json:"height"`
	}
	require.NoError(t, resp.Decode(&out))
	assert.Equal(t, 12, out.Height)
}

func TestDecodeResponse_Error(t *testing.T) {
	resp, err := decodeResponse([]byte(`{"id":5,"jsonrpc":"2.0","error":{"code":-32601,"message":"Method not found"}}`))
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32601, resp.Error.Code)
	assert.Equal(t, "Method not found", resp.Error.Message)
	assert.Error(t, resp.Decode(&struct{}{}), "Decode should fail without a result")
}

func TestDecodeResponse_NullID(t *testing.T) {
	resp, err := decodeResponse([]byte(`{"id":null,"result":true}`))
	require.NoError(t, err)
	assert.Nil(t, resp.ID)
}

func TestDecodeResponse_Malformed(t *testing.T) {
	_, err := decodeResponse([]byte(`not json`))
	require.Error(t, err)
}
