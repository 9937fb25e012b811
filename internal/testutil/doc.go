// Package testutil provides scripted producers and event builders for tests.
//
// This package is internal and should not be imported by external code.
package testutil
