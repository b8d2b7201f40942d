package settings

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoaderDefaults(t *testing.T) {
	cfg, err := Loader{Lookup: envLookup(nil)}.Load()
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr())
	require.Equal(t, 4, cfg.GPIO.VoiceSensor)
	require.Empty(t, cfg.Basic.TuringKey)
	require.Equal(t, 30*time.Millisecond, cfg.Demo.PollEvery.Duration)
}

func TestLoaderFileAndEnv(t *testing.T) {
	files := map[string]string{
		"/etc/snowdemo.json": `{"redis":{"port":6380},"demo":{"pin_url":"http://10.0.0.2/","child_models":["a.pmdl"]}}`,
	}
	loader := Loader{
		Lookup: envLookup(map[string]string{
			"SNOWDEMO_CONFIG":      "/etc/snowdemo.json",
			"SNOWDEMO_TURING_KEY":  " secret ",
			"SNOWDEMO_SENSITIVITY": "0.7",
			"SNOWDEMO_POLL_EVERY":  "50ms",
		}),
		ReadFile: func(path string) ([]byte, error) {
			if b, ok := files[path]; ok {
				return []byte(b), nil
			}
			return nil, os.ErrNotExist
		},
	}
	cfg, err := loader.Load()
	require.NoError(t, err)
	require.Equal(t, 6380, cfg.Redis.Port)
	require.Equal(t, "localhost", cfg.Redis.Host)
	require.Equal(t, "http://10.0.0.2/", cfg.Demo.PinURL)
	require.Equal(t, []string{"a.pmdl"}, cfg.Demo.ChildModels)
	require.Equal(t, "secret", cfg.Basic.TuringKey)
	require.Equal(t, 0.7, cfg.Demo.Sensitivity)
	require.Equal(t, 50*time.Millisecond, cfg.Demo.PollEvery.Duration)
}

func TestLoaderErrors(t *testing.T) {
	_, err := Loader{Lookup: envLookup(map[string]string{"SNOWDEMO_REDIS_PORT": "x"})}.Load()
	require.ErrorContains(t, err, "SNOWDEMO_REDIS_PORT")

	_, err = Loader{Lookup: envLookup(map[string]string{"SNOWDEMO_SENSITIVITY": "2"})}.Load()
	require.ErrorContains(t, err, "sensitivity")

	_, err = Loader{Path: "missing.json", Lookup: envLookup(nil), ReadFile: func(string) ([]byte, error) {
		return nil, os.ErrNotExist
	}}.Load()
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = Loader{Path: "bad.json", Lookup: envLookup(nil), ReadFile: func(string) ([]byte, error) {
		return []byte("{"), nil
	}}.Load()
	require.Error(t, err)
}

func TestErrorForCode(t *testing.T) {
	require.ErrorIs(t, ErrorForCode(3001), ErrQuota)
	require.ErrorIs(t, ErrorForCode(3002), ErrVerify)
	require.ErrorIs(t, ErrorForCode(3003), ErrAPI)
	err := ErrorForCode(42)
	require.ErrorIs(t, err, ErrAPI)
	require.False(t, errors.Is(err, ErrQuota))
}

func TestWeatherText(t *testing.T) {
	w := Default().Weather
	got := w.Tomorrow(map[string]string{
		"min": "3", "max": "12", "txt_d": "晴", "txt_n": "多云", "pop": "10",
	})
	require.Equal(t, "明天的气温是3到12摄氏度，晴转多云，降水概率百分之10。", got)
	require.Equal(t, "当前天气晴，体感温度20摄氏度，空气湿度百分之40。今日温度为{min}到{max}摄氏度，{txt_d}转{txt_n}，降水概率百分之{pop}，空气质量{qlty}。",
		w.Today(map[string]string{"cond": "晴", "fl": "20", "hum": "40"}), "unknown placeholders stay")
}

func TestDurationJSON(t *testing.T) {
	files := map[string]string{
		"ms.json":  `{"demo":{"poll_every":"50ms"},"redis":{"socket_timeout":"2s"}}`,
		"ns.json":  `{"demo":{"poll_every":1000000}}`,
		"bad.json": `{"demo":{"poll_every":"soon"}}`,
	}
	load := func(path string) (Settings, error) {
		return Loader{Path: path, Lookup: envLookup(nil), ReadFile: func(p string) ([]byte, error) {
			return []byte(files[p]), nil
		}}.Load()
	}
	cfg, err := load("ms.json")
	require.NoError(t, err)
	require.Equal(t, 50*time.Millisecond, cfg.Demo.PollEvery.Duration)
	require.Equal(t, 2*time.Second, cfg.Redis.SocketTimeout.Duration)

	cfg, err = load("ns.json")
	require.NoError(t, err)
	require.Equal(t, time.Millisecond, cfg.Demo.PollEvery.Duration)

	_, err = load("bad.json")
	require.Error(t, err)

	b, err := Duration{30 * time.Millisecond}.MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, `"30ms"`, string(b))
}

func TestDefaultChildModelsAreEmbeddings(t *testing.T) {
	for _, m := range Default().Demo.ChildModels {
		require.True(t, strings.HasSuffix(m, "_ref.json"), m)
	}
}
