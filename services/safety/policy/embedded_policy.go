// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package policy bakes the crisis indicator patterns into the binary
// with go:embed, so the safety rules are immutable at runtime and
// travel with the executable.
package policy

import (
	_ "embed"
)

// CrisisIndicatorPatterns holds the raw byte content of the
// 'crisis_indicator_patterns.yaml' file, populated at compile time.
//
//go:embed crisis_indicator_patterns.yaml
var CrisisIndicatorPatterns []byte
