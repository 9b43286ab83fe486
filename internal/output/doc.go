// Package output provides color and table rendering for opsbook command
// results.
//
// Colors are automatically enabled for TTY outputs and disabled for
// pipes, redirects, or when the user passes --no-color. The recap uses
// three host colors:
//
//   - Failure (red): the host reported failures or was unreachable
//   - Changed (yellow): the host reported changes and no failures
//   - Success (green): everything else
//
// Tables are rendered borderless in the kubectl style.
package output
