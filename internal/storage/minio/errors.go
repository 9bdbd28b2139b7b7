package minio

import (
	"context"
	"errors"
	"net/http"

	"github.com/damacus/iron-studio/internal/errs"
	miniogo "github.com/minio/minio-go/v7"
)

// mapError translates a MinIO SDK error into a *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.KindTimeout, msg, err)
	}

	var resp miniogo.ErrorResponse
	if errors.As(err, &resp) {
		switch resp.Code {
		case "NoSuchBucket", "NoSuchKey", "NoSuchUpload":
			return errs.Wrap(errs.KindNotFound, msg, err)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return errs.Wrap(errs.KindPermissionDenied, msg, err)
		case "InvalidObjectName", "KeyTooLongError":
			return errs.Wrap(errs.KindInvalidName, msg, err)
		case "RequestTimeout", "SlowDown":
			return errs.Wrap(errs.KindTimeout, msg, err)
		}

		switch resp.StatusCode {
		case http.StatusNotFound:
			return errs.Wrap(errs.KindNotFound, msg, err)
		case http.StatusForbidden, http.StatusUnauthorized:
			return errs.Wrap(errs.KindPermissionDenied, msg, err)
		case http.StatusConflict, http.StatusPreconditionFailed:
			return errs.Wrap(errs.KindConflict, msg, err)
		}
		return errs.Wrap(errs.KindUnknown, msg, err)
	}

	return errs.Wrap(errs.KindConnectionFailed, msg, err)
}
