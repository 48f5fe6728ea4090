package anthropic

import (
	"errors"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/cadforge/codepilot/model"
)

// translateError maps an Anthropic SDK error into a *model.ProviderError so
// errclass and retry can classify it without depending on the SDK.
func translateError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return model.NewProviderError("anthropic", operation, apiErr.StatusCode, kindForStatus(apiErr.StatusCode), "", apiErr.Message, err)
	}
	return model.NewProviderError("anthropic", operation, 0, model.ProviderErrorKindUnavailable, "", "", err)
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
