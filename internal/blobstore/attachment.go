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

package blobstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/fieldcrew/fieldsync/internal/apierror"
)

// Attachment is a local file read for upload.
type Attachment struct {
	Data        []byte
	ContentType string
	Extension   string
}

// ReadAttachment loads the file behind a local attachment reference and sniffs
// its content type. A file that no longer exists is a permanent input error.
func ReadAttachment(ref string) (Attachment, error) {
	ref = strings.TrimPrefix(ref, "file://")
	data, err := os.ReadFile(ref)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Attachment{}, apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("attachment %s no longer exists", ref), err)
		}
		return Attachment{}, apierror.NewAPIError(apierror.ErrInternalServer, fmt.Sprintf("failed to read attachment %s", ref), err)
	}

	mtype := mimetype.Detect(data)
	ext := mtype.Extension()
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(ref))
	}
	return Attachment{Data: data, ContentType: mtype.String(), Extension: ext}, nil
}

// ObjectKey is the storage path of an owner's receipt. It depends only on the
// owner and the task creation time, so retrying an upload rewrites the same object.
func ObjectKey(ownerID string, createdAt time.Time, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%s/%d%s", ownerID, createdAt.UnixMilli(), ext)
}
