package llm

import (
	"time"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
)

type ApiType string

const (
	ApiTypeOpenAI ApiType = "openai"
	ApiTypeAzure  ApiType = "azure"
)

const (
	DefaultEngine  = "gpt-4o-mini"
	DefaultBaseURL = "https://api.openai.com/v1"
)

type Settings struct {
	ApiType           ApiType       `yaml:"api_type,omitempty"`
	Engine            string        `yaml:"engine,omitempty"`
	BaseURL           string        `yaml:"base_url,omitempty"`
	APIKey            string        `yaml:"api_key,omitempty"`
	Temperature       *float64      `yaml:"temperature,omitempty"`
	MaxResponseTokens *int          `yaml:"max_response_tokens,omitempty"`
	Timeout           time.Duration `yaml:"timeout,omitempty"`
	// AllowLocalBaseURL permits http and local network base urls.
	AllowLocalBaseURL bool          `yaml:"allow_local_base_url,omitempty"`
}

func NewSettings() *Settings {
	return &Settings{
		ApiType: ApiTypeOpenAI,
		Engine:  DefaultEngine,
		BaseURL: DefaultBaseURL,
		Timeout: 60 * time.Second,
	}
}

func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}

func (s *Settings) Validate() error {
	switch s.ApiType {
	case ApiTypeOpenAI, ApiTypeAzure:
	default:
		return errors.Errorf("unknown api type %q", s.ApiType)
	}
	if s.APIKey == "" {
		return errors.Errorf("no API key for %s", s.ApiType)
	}
	if s.Engine == "" {
		return errors.New("no engine specified")
	}
	if s.ApiType == ApiTypeAzure && s.BaseURL == "" {
		return errors.New("azure requires a base url")
	}
	if s.BaseURL != "" {
		if err := checkBaseURL(s.BaseURL, s.AllowLocalBaseURL); err != nil {
			return err
		}
	}
	return nil
}
