// Package settings holds the voice assistant configuration and the demo
// command defaults.
package settings

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultLogFormat  = "%(asctime)s %(funcName)s:%(lineno)d [%(levelname)s] %(message)s"
	DefaultPinURL     = "http://192.168.6.107/"
	DefaultWeatherURL = "http://apis.baidu.com/heweather/weather/free"
)

type Settings struct {
	Redis   Redis   `json:"redis"`
	Basic   Basic   `json:"basic"`
	GPIO    GPIO    `json:"gpio"`
	Log     Log     `json:"log"`
	Weather Weather `json:"weather"`
	Demo    Demo    `json:"demo"`
}

type Redis struct {
	Host          string   `json:"host"`
	Port          int      `json:"port"`
	DB            int      `json:"db"`
	SocketTimeout Duration `json:"socket_timeout"`
}

func (r Redis) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

type Basic struct {
	// Location is only used in weather queries.
	Location           string         `json:"location"`
	TuringKey          string         `json:"turing_key"`
	VoiceAPIKey        string         `json:"voice_api_key"`
	VoiceSecret        string         `json:"voice_secret"`
	HappinessThreshold float64        `json:"happiness_threshold"`
	Keywords           []string       `json:"keywords"`
	InputName          string         `json:"input_name"`
	OutputName         string         `json:"output_name"`
	PositiveAnswers    map[int]string `json:"positive_answers"`
	// NegativeAnswers express mood only, they never refuse a command.
	NegativeAnswers map[int]string `json:"negative_answers"`
}

type GPIO struct {
	VoiceSensor int `json:"voice_sensor"`
}

type Log struct {
	Format   string `json:"format"`
	Location string `json:"location"`
	Level    string `json:"level"`
}

type Weather struct {
	APIKey    string `json:"api_key"`
	URL       string `json:"url"`
	TodayText string `json:"today_text"`
	TomoText  string `json:"tomorrow_text"`
}

// Demo configures the hotword demo commands.
type Demo struct {
	PinURL      string   `json:"pin_url"`
	PinNumber   int      `json:"pin_number"`
	DingPath    string   `json:"ding_path"`
	DongPath    string   `json:"dong_path"`
	Sensitivity float64  `json:"sensitivity"`
	PollEvery   Duration `json:"poll_every"`
	ChildModels []string `json:"child_models"`
}

func Default() Settings {
	return Settings{
		Redis: Redis{Host: "localhost", Port: 6379, DB: 0, SocketTimeout: Duration{time.Second}},
		Basic: Basic{
			Location:           "成都",
			HappinessThreshold: 0.6,
			Keywords:           []string{"提醒", "备忘录", "播放", "今天", "明天", "天气", "删除", "最后", "第一条"},
			InputName:          "record.wav",
			OutputName:         "output.wav",
			PositiveAnswers:    map[int]string{1: "你回来了"},
			NegativeAnswers:    map[int]string{1: "每天都来烦我，你什么时候给我找个男朋友"},
		},
		GPIO: GPIO{VoiceSensor: 4},
		Log:  Log{Format: DefaultLogFormat, Location: "./log/raspi_assistant.log", Level: "debug"},
		Weather: Weather{
			URL:       DefaultWeatherURL,
			TodayText: "当前天气{cond}，体感温度{fl}摄氏度，空气湿度百分之{hum}。今日温度为{min}到{max}摄氏度，{txt_d}转{txt_n}，降水概率百分之{pop}，空气质量{qlty}。",
			TomoText:  "明天的气温是{min}到{max}摄氏度，{txt_d}转{txt_n}，降水概率百分之{pop}。",
		},
		Demo: Demo{
			PinURL:      DefaultPinURL,
			PinNumber:   1,
			DingPath:    "resources/ding.wav",
			DongPath:    "resources/dong.wav",
			Sensitivity: 0.5,
			PollEvery:   Duration{30 * time.Millisecond},
			ChildModels: []string{"model/hotword/computer_ref.json", "model/hotword/stop_ref.json"},
		},
	}
}

func (s Settings) Validate() error {
	var errs []error
	if s.Redis.Port <= 0 || s.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("redis port out of range: %d", s.Redis.Port))
	}
	if s.Basic.HappinessThreshold < 0 || s.Basic.HappinessThreshold > 1 {
		errs = append(errs, fmt.Errorf("happiness threshold out of range: %v", s.Basic.HappinessThreshold))
	}
	if s.Demo.Sensitivity < 0 || s.Demo.Sensitivity > 1 {
		errs = append(errs, fmt.Errorf("sensitivity out of range: %v", s.Demo.Sensitivity))
	}
	if s.Demo.PollEvery.Duration <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive: %s", s.Demo.PollEvery))
	}
	if s.GPIO.VoiceSensor < 0 {
		errs = append(errs, fmt.Errorf("negative gpio pin: %d", s.GPIO.VoiceSensor))
	}
	if len(errs) > 0 {
		return fmt.Errorf("settings: %w", errors.Join(errs...))
	}
	return nil
}

// Today renders the current weather text from the API's field values.
func (w Weather) Today(values map[string]string) string {
	return render(w.TodayText, values)
}

// Tomorrow renders the forecast text from the API's field values.
func (w Weather) Tomorrow(values map[string]string) string {
	return render(w.TomoText, values)
}

// render fills the {name} placeholders of a template.
func render(template string, values map[string]string) string {
	pairs := make([]string, 0, 2*len(values))
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
