//go:build tools

// Package tools pins the versions of the linters and scanners used in CI.
package tools

import (
	_ "github.com/golangci/golangci-lint/cmd/golangci-lint"
	_ "golang.org/x/vuln/cmd/govulncheck"
)
