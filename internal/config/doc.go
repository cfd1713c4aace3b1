// Package config holds the server configuration and loads it from an HCL
// file.
//
// Every attribute of the file is optional. Values left out keep the
// defaults of Default(), and the merged result is checked with Validate
// before the application starts.
package config
