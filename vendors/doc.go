// Package vendors contains the vendor-strategy implementations of the OAuth2
// token exchange. The set of vendors is closed and selected at construction
// time; nothing in the call stack branches on vendor names.
//
// Subpackages:
//   - quickbooks: Intuit QuickBooks Online (confidential client, Basic auth)
//   - microsoft: Microsoft identity platform (public client, tenant-scoped)
package vendors
