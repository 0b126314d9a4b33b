// Package predicate translates merge conditions into SQL boolean fragments
// for the WHERE clause of ON CONFLICT DO UPDATE.
//
// Fields rooted at the existing-row variable render against the target table
// alias, fields rooted at the incoming-row variable render against EXCLUDED.
// Every binary node is parenthesized, so the output needs no precedence rules.
// Constants are bound as positional parameters rather than spliced into the
// statement text.
package predicate
