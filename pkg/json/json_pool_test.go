package json

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeObjectPreservesKeyOrder(t *testing.T) {
	dec := GetDecoder(strings.NewReader(`{"zeta": 1, "alpha": 2.5, "mid": {"x": [1, 2]}}`))

	keys, values, err := DecodeObject(dec)
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, keys)
	assert.Equal(t, int64(1), values["zeta"])
	assert.Equal(t, 2.5, values["alpha"])
	assert.Equal(t, map[string]interface{}{"x": []interface{}{int64(1), int64(2)}}, values["mid"])
}

func TestDecodeObjectRejectsArray(t *testing.T) {
	dec := GetDecoder(strings.NewReader(`[1, 2]`))
	_, _, err := DecodeObject(dec)
	assert.Error(t, err)
}

func TestDecodeObjects(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  [][]string
	}{
		{"array", `[{"b": 1, "a": 2}, {"c": 3}]`, [][]string{{"b", "a"}, {"c"}}},
		{"lines", "{\"b\": 1}\n\n{\"a\": 2}\n", [][]string{{"b"}, {"a"}}},
		{"empty", "  \n", nil},
		{"empty array", "[]", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got [][]string
			err := DecodeObjects(strings.NewReader(tt.input), func(keys []string, _ map[string]interface{}) error {
				got = append(got, keys)
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStreamingEncoderArray(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewStreamingEncoder(&buf, true)
	require.NoError(t, err)

	require.NoError(t, enc.EncodeOrdered([]string{"b", "a"}, []interface{}{1, "x"}))
	require.NoError(t, enc.EncodeOrdered([]string{"b", "a"}, []interface{}{nil, true}))
	require.NoError(t, enc.Close())

	assert.Equal(t, `[{"b":1,"a":"x"},{"b":null,"a":true}]`, buf.String())
}

func TestStreamingEncoderLines(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewStreamingEncoder(&buf, false)
	require.NoError(t, err)

	require.NoError(t, enc.EncodeOrdered([]string{"k"}, []interface{}{"v1"}))
	require.NoError(t, enc.EncodeOrdered([]string{"k"}, []interface{}{"v2"}))
	require.NoError(t, enc.Close())

	assert.Equal(t, "{\"k\":\"v1\"}\n{\"k\":\"v2\"}\n", buf.String())
}

func TestNormalizeFloat(t *testing.T) {
	assert.Equal(t, int64(3), Normalize(3.0))
	assert.Equal(t, 3.5, Normalize(3.5))
	assert.Equal(t, "s", Normalize("s"))
}

func BenchmarkEncodeOrdered(b *testing.B) {
	keys := []string{"id", "name", "value", "tags"}
	values := []interface{}{int64(1), "Test Record", 1.5, []string{"tag1", "tag2"}}
	var buf bytes.Buffer
	enc, _ := NewStreamingEncoder(&buf, false)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		buf.Reset()
		if err := enc.EncodeOrdered(keys, values); err != nil {
			b.Fatal(err)
		}
	}
}
