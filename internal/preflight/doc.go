// Package preflight provides readiness checks for the filesystem paths,
// credentials and remote service that exports depend on.
//
// These checks run in two contexts:
//   - The CLI "meetexport status" command runs RunAll and renders every result.
//   - "meetexport export" runs CheckOutputDirectory before fetching anything,
//     so an unwritable destination fails before the first remote call.
//
// Checks that depend on an earlier failing check report themselves as skipped.
package preflight
