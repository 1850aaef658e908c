// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package model

import (
	"fmt"

	"github.com/blang/semver"
)

// SchemaVersion is the version of the persisted record format. Records
// written by a newer major version are refused.
var SchemaVersion = semver.MustParse("1.1.0")

// CheckSchemaVersion returns an error if a record stamped with v cannot be
// read by this build. An empty version is treated as the first release.
func CheckSchemaVersion(v string) error {
	if v == "" {
		return nil
	}
	parsed, err := semver.Parse(v)
	if err != nil {
		return fmt.Errorf("invalid schema version %q: %w", v, err)
	}
	if parsed.Major != SchemaVersion.Major {
		return fmt.Errorf("unsupported schema version %s, expected %d.x", parsed, SchemaVersion.Major)
	}
	return nil
}
