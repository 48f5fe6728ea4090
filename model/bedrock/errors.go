package bedrock

import (
	"errors"

	smithy "github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/cadforge/codepilot/model"
)

// translateError maps an AWS SDK/smithy error into a *model.ProviderError.
func translateError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if isRateLimited(err) {
		return model.NewProviderError("bedrock", operation, 429, model.ProviderErrorKindRateLimited, "ThrottlingException", "", err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		status := 0
		var respErr *smithyhttp.ResponseError
		if errors.As(err, &respErr) {
			status = respErr.HTTPStatusCode()
		}
		return model.NewProviderError("bedrock", operation, status, kindForCode(apiErr.ErrorCode(), status), apiErr.ErrorCode(), apiErr.ErrorMessage(), err)
	}
	return model.NewProviderError("bedrock", operation, 0, model.ProviderErrorKindUnavailable, "", "", err)
}

func kindForCode(code string, status int) model.ProviderErrorKind {
	switch code {
	case "AccessDeniedException", "UnrecognizedClientException":
		return model.ProviderErrorKindAuth
	case "ValidationException", "ModelErrorException":
		return model.ProviderErrorKindInvalidRequest
	case "ServiceUnavailableException", "ModelTimeoutException", "InternalServerException":
		return model.ProviderErrorKindUnavailable
	}
	switch {
	case status == 401 || status == 403:
		return model.ProviderErrorKindAuth
	case status == 400 || status == 422:
		return model.ProviderErrorKindInvalidRequest
	case status >= 500:
		return model.ProviderErrorKindUnavailable
	default:
		return model.ProviderErrorKindUnknown
	}
}
