/*
Copyright 2024 Fieldsync Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package apierror

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/lib/pq"
)

// Class groups failures by how a write should react to them.
type Class string

const (
	ClassNone          Class = ""
	ClassValidation    Class = "validation"
	ClassAuthorization Class = "authorization"
	ClassConnectivity  Class = "connectivity"
	ClassInternal      Class = "internal"
)

// Classify decides which Class err belongs to. Only ClassConnectivity failures
// may be deferred to the offline queue; everything else is surfaced to the user.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}

	switch CodeOf(err) {
	case ErrConnectivity:
		return ClassConnectivity
	case ErrUnauthorized, ErrForbidden:
		return ClassAuthorization
	case ErrInvalidInput, ErrBadRequest, ErrConflict, ErrNotFound:
		return ClassValidation
	}

	var validationErrs validation.Errors
	if errors.As(err, &validationErrs) {
		return ClassValidation
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return classifyPostgres(pqErr)
	}

	if isConnectivityCause(err) {
		return ClassConnectivity
	}
	return ClassInternal
}

func IsConnectivity(err error) bool {
	return Classify(err) == ClassConnectivity
}

func classifyPostgres(err *pq.Error) Class {
	code := string(err.Code)
	switch {
	case strings.HasPrefix(code, "08"), strings.HasPrefix(code, "53"), strings.HasPrefix(code, "57P"):
		return ClassConnectivity
	case strings.HasPrefix(code, "28"), code == "42501":
		return ClassAuthorization
	case strings.HasPrefix(code, "22"), strings.HasPrefix(code, "23"):
		return ClassValidation
	default:
		return ClassInternal
	}
}

func isConnectivityCause(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	for _, errno := range []syscall.Errno{
		syscall.ECONNREFUSED,
		syscall.ECONNRESET,
		syscall.ECONNABORTED,
		syscall.ENETUNREACH,
		syscall.EHOSTUNREACH,
		syscall.EPIPE,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
