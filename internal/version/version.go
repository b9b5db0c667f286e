// Package version holds the build version, overridden at link time with
// -ldflags "-X github.com/rsdeploy/rsdeploy/internal/version.Version=...".
// Package version 保存构建版本，可在链接时通过 -ldflags 覆盖。
package version

// Version is the current version of rsdeploy
// Version 是 rsdeploy 的当前版本
var Version = "dev"
