package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  any
	}{
		{"small integer", `42`, 42.0},
		{"fraction", `1.5`, 1.5},
		{"exponent", `1e3`, 1000.0},
		{"largest exact integer", `9007199254740992`, 9007199254740992.0},
		{"beyond float precision", `9007199254740993`, json.Number("9007199254740993")},
		{"negative beyond float precision", `-9007199254740993`, json.Number("-9007199254740993")},
		{"beyond int64", `123456789012345678901234567890`, json.Number("123456789012345678901234567890")},
		{"nested", `{"a":[1,{"b":18446744073709551615}]}`, map[string]any{
			"a": []any{1.0, map[string]any{"b": json.Number("18446744073709551615")}},
		}},
		{"null", `null`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeJSON([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := DecodeJSON([]byte(`{} {}`))
	assert.Error(t, err)
	_, err = DecodeJSON([]byte(`{`))
	assert.Error(t, err)
}

func TestNormalizeJSON(t *testing.T) {
	type point struct {
		X int `json:"x"`
	}
	got, err := NormalizeJSON(map[string]any{"p": point{X: 3}, "n": uint64(1) << 60})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"p": map[string]any{"x": 3.0},
		"n": json.Number("1152921504606846976"),
	}, got)

	got, err = NormalizeJSON(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = NormalizeJSON(make(chan int))
	assert.Error(t, err)
}

func TestCloneJSONIsDeep(t *testing.T) {
	src := map[string]any{"list": []any{map[string]any{"k": "v"}}}
	dst := CloneJSON(src).(map[string]any)
	dst["list"].([]any)[0].(map[string]any)["k"] = "changed"
	assert.Equal(t, "v", src["list"].([]any)[0].(map[string]any)["k"])
}
