package factory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sink struct {
	URL     string
	Timeout time.Duration
}

func TestRegistryCreate(t *testing.T) {
	reg := NewRegistry[sink]()
	reg.MustRegister("Influx", func(conf map[string]any) (sink, error) {
		var c struct {
			URL     string        `json:"url"`
			Timeout time.Duration `json:"timeout"`
		}
		if err := Decode(conf, &c); err != nil {
			return sink{}, err
		}
		return sink{URL: c.URL, Timeout: c.Timeout}, nil
	})

	s, err := reg.Create(ModuleConfig{Type: "influx", Conf: map[string]any{"url": "http://db", "timeout": "5s"}})
	require.NoError(t, err)
	assert.Equal(t, sink{URL: "http://db", Timeout: 5 * time.Second}, s)
}

func TestRegistryErrors(t *testing.T) {
	reg := NewRegistry[int]()
	require.NoError(t, reg.Register("b", func(map[string]any) (int, error) { return 1, nil }))
	require.NoError(t, reg.Register("a", func(map[string]any) (int, error) { return 2, nil }))

	assert.Error(t, reg.Register("b", func(map[string]any) (int, error) { return 3, nil }))
	assert.Error(t, reg.Register("c", nil))
	assert.Error(t, reg.Register(" ", func(map[string]any) (int, error) { return 0, nil }))
	assert.Panics(t, func() { reg.MustRegister("a", func(map[string]any) (int, error) { return 0, nil }) })

	assert.Equal(t, []string{"a", "b"}, reg.Names())
	_, err := reg.Create(ModuleConfig{Type: "z"})
	assert.EqualError(t, err, `unknown type "z" (known: a, b)`)
}

func TestDecodeError(t *testing.T) {
	var c struct {
		N int `json:"n"`
	}
	assert.Error(t, Decode(map[string]any{"n": "many"}, &c))
}
