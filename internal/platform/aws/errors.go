package aws

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// IsNotFound reports whether err is an EC2 "*.NotFound" or IAM NoSuchEntity error.
func IsNotFound(err error) bool {
	code := errorCode(err)
	return strings.HasSuffix(code, ".NotFound") || code == "NoSuchEntity"
}

// isDependencyViolation reports errors raised while a dependent resource is
// still being torn down. These are retried during destroy.
func isDependencyViolation(err error) bool {
	switch errorCode(err) {
	case "DependencyViolation", "DeleteConflict", "InvalidIPAddress.InUse":
		return true
	}
	return false
}

func isDuplicate(err error) bool {
	code := errorCode(err)
	return code == "InvalidPermission.Duplicate" || code == "RouteAlreadyExists" || code == "Resource.AlreadyAssociated"
}
