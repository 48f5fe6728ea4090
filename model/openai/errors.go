package openai

import (
	"errors"

	"github.com/openai/openai-go/v2"

	"github.com/cadforge/codepilot/model"
)

// translateError maps an openai-go SDK error into a *model.ProviderError
// tagged with the adapter's configured provider label (openai, deepseek,
// qwen, kimi, ollama, runpod, ...), so downstream classification does not
// need to special-case each OpenAI-compatible backend.
func translateError(provider, operation string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return model.NewProviderError(provider, operation, apiErr.StatusCode, kindForStatus(apiErr.StatusCode), "", apiErr.Message, err)
	}
	return model.NewProviderError(provider, operation, 0, model.ProviderErrorKindUnavailable, "", "", err)
}

func kindForStatus(status int) model.ProviderErrorKind {
	switch {
	case status == 401 || status == 403:
		return model.ProviderErrorKindAuth
	case status == 429:
		return model.ProviderErrorKindRateLimited
	case status == 400 || status == 404 || status == 422:
		return model.ProviderErrorKindInvalidRequest
	case status >= 500:
		return model.ProviderErrorKindUnavailable
	default:
		return model.ProviderErrorKindUnknown
	}
}
