// SPDX-License-Identifier: MPL-2.0

package compiler

import "github.com/Masterminds/semver/v3"

// Version is the Cairo compiler version this build targets. The
// standard library distribution is pinned to it, and every package
// without `no-core` receives an implicit `core` dependency at exactly
// this version.
var Version = semver.MustParse("2.8.4")
