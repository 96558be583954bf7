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

package database

import (
	"errors"
	"strings"

	"github.com/lib/pq"

	"github.com/fieldcrew/fieldsync/internal/apierror"
)

// isClientRefViolation reports a second insert for the same device-local ID.
func isClientRefViolation(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code.Name() == "unique_violation" && strings.Contains(pqErr.Constraint, "client_ref")
}

// wrapError turns a driver error into an APIError whose code tells the caller
// whether the write may be deferred.
func wrapError(err error, message string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return apierror.NewAPIError(apierror.ErrConflict, message+": already exists", err)
	}

	switch apierror.Classify(err) {
	case apierror.ClassConnectivity:
		return apierror.NewAPIError(apierror.ErrConnectivity, message+": data store unreachable", err)
	case apierror.ClassAuthorization:
		return apierror.NewAPIError(apierror.ErrForbidden, message+": not permitted", err)
	case apierror.ClassValidation:
		return apierror.NewAPIError(apierror.ErrInvalidInput, message+": rejected by data store", err)
	default:
		return apierror.NewAPIError(apierror.ErrInternalServer, message, err)
	}
}
