package s3

import (
	"context"
	"errors"
	"net/http"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/damacus/iron-studio/internal/errs"
)

// mapError translates an aws-sdk-go-v2 error into a *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.KindTimeout, msg, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchBucket", "NoSuchKey", "NotFound":
			return errs.Wrap(errs.KindNotFound, msg, err)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "Forbidden":
			return errs.Wrap(errs.KindPermissionDenied, msg, err)
		case "InvalidObjectName", "KeyTooLongError":
			return errs.Wrap(errs.KindInvalidName, msg, err)
		case "RequestTimeout", "SlowDown":
			return errs.Wrap(errs.KindTimeout, msg, err)
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return errs.Wrap(errs.KindNotFound, msg, err)
		case http.StatusForbidden, http.StatusUnauthorized:
			return errs.Wrap(errs.KindPermissionDenied, msg, err)
		case http.StatusConflict, http.StatusPreconditionFailed:
			return errs.Wrap(errs.KindConflict, msg, err)
		}
		return errs.Wrap(errs.KindUnknown, msg, err)
	}

	if apiErr != nil {
		return errs.Wrap(errs.KindUnknown, msg, err)
	}
	return errs.Wrap(errs.KindConnectionFailed, msg, err)
}
